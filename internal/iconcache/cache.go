// Package iconcache resolves icons for launcher results and keeps them in an
// expiring LRU so repeated searches do not hit the extractor again.
package iconcache

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/chess10kp/winlaunch/internal/config"
)

// Extractor turns a file path into an icon reference (an icon name or the
// path of an image). Shell icon extraction plugs in here.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtensionExtractor picks a generic icon name from the file extension.
type ExtensionExtractor struct{}

func (ExtensionExtractor) Extract(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return "text-html", nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".exe", ".lnk", ".appref-ms", ".desktop", ".bat", ".cmd":
		return "application-x-executable", nil
	case ".url", ".html", ".htm":
		return "text-html", nil
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".bmp", ".ico":
		return "image-x-generic", nil
	case ".pdf":
		return "application-pdf", nil
	case ".zip", ".7z", ".rar", ".tar", ".gz", ".bz2", ".xz":
		return "application-x-archive", nil
	case ".mp3", ".flac", ".ogg", ".wav":
		return "audio-x-generic", nil
	case ".mp4", ".mkv", ".avi", ".mov":
		return "video-x-generic", nil
	case "":
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return "folder", nil
		}
	}
	return "text-x-generic", nil
}

// Stats holds cache statistics
type Stats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type Cache struct {
	cache     *expirable.LRU[string, string]
	extractor Extractor
	fallback  string
	enabled   bool
	sem       chan struct{}
	hits      atomic.Int64
	misses    atomic.Int64
}

func New(cfg config.IconsConfig, extractor Extractor) *Cache {
	if extractor == nil {
		extractor = ExtensionExtractor{}
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 200
	}
	concurrent := cfg.MaxConcurrentLoads
	if concurrent <= 0 {
		concurrent = 4
	}
	fallback := cfg.FallbackIcon
	if fallback == "" {
		fallback = "application-x-executable"
	}

	return &Cache{
		cache:     expirable.NewLRU[string, string](size, nil, cfg.TTL()),
		extractor: extractor,
		fallback:  fallback,
		enabled:   cfg.EnableIcons,
		sem:       make(chan struct{}, concurrent),
	}
}

// Load returns the icon for path, or the fallback icon when extraction
// fails. Icons disabled in config always yield "".
func (c *Cache) Load(ctx context.Context, path string) string {
	if !c.enabled {
		return ""
	}
	if path == "" {
		return c.fallback
	}

	if icon, ok := c.cache.Get(path); ok {
		c.hits.Add(1)
		return icon
	}
	c.misses.Add(1)

	icon, err := c.extractor.Extract(ctx, path)
	if err != nil || icon == "" {
		log.Printf("[ICON-CACHE] Failed to extract icon for '%s', using fallback: %v", path, err)
		return c.fallback
	}

	c.cache.Add(path, icon)
	return icon
}

// LoadAsync resolves the icon on a background goroutine and hands it to fn.
// At most MaxConcurrentLoads extractions run at once; fn runs on the loading
// goroutine.
func (c *Cache) LoadAsync(path string, fn func(icon string)) {
	if !c.enabled {
		fn("")
		return
	}
	if icon, ok := c.cache.Peek(path); ok {
		c.hits.Add(1)
		fn(icon)
		return
	}

	go func() {
		c.sem <- struct{}{}        // Acquire
		defer func() { <-c.sem }() // Release

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fn(c.Load(ctx, path))
	}()
}

func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	hitRate := float64(0)
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:    c.cache.Len(),
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
	log.Printf("[ICON-CACHE] Cache cleared")
}
