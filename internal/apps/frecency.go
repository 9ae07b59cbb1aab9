package apps

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

type UsageRecord struct {
	LaunchCount    int       `json:"launch_count"`
	LastLaunched   time.Time `json:"last_launched"`
	FirstLaunched  time.Time `json:"first_launched"`
	RecentLaunches []int64   `json:"recent_launches"`
}

func (r *UsageRecord) clone() *UsageRecord {
	c := *r
	c.RecentLaunches = append([]int64(nil), r.RecentLaunches...)
	return &c
}

// FrecencyTracker records application launches and scores them by
// frequency, recency and launch trend.
type FrecencyTracker struct {
	records          map[string]*UsageRecord
	mu               sync.RWMutex
	file             string
	maxRecentEntries int
	halfLife         time.Duration
	now              func() time.Time
}

func NewFrecencyTracker(dataDir string) (*FrecencyTracker, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	tracker := &FrecencyTracker{
		records:          make(map[string]*UsageRecord),
		file:             filepath.Join(dataDir, "frecency.json"),
		maxRecentEntries: 10,
		halfLife:         7 * 24 * time.Hour,
		now:              time.Now,
	}

	if err := tracker.load(); err != nil {
		log.Printf("[FRECENCY] Failed to load frecency data: %v", err)
	}

	return tracker, nil
}

func (f *FrecencyTracker) RecordLaunch(key string) {
	if key == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	record, exists := f.records[key]
	if !exists {
		record = &UsageRecord{FirstLaunched: now}
		f.records[key] = record
	}

	record.LaunchCount++
	record.LastLaunched = now
	record.RecentLaunches = append(record.RecentLaunches, now.Unix())
	if len(record.RecentLaunches) > f.maxRecentEntries {
		record.RecentLaunches = record.RecentLaunches[len(record.RecentLaunches)-f.maxRecentEntries:]
	}

	if err := f.saveLocked(); err != nil {
		log.Printf("[FRECENCY] Failed to save frecency data: %v", err)
	}

	log.Printf("[FRECENCY] Recorded launch for '%s': count=%d", key, record.LaunchCount)
}

func (f *FrecencyTracker) GetFrequencyScore(key string) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	record, exists := f.records[key]
	if !exists {
		return 0
	}
	return float64(record.LaunchCount)
}

// GetFrecencyScore blends launch count, exponential recency decay and launch
// trend. Unknown keys score 0.
func (f *FrecencyTracker) GetFrecencyScore(key string) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	record, exists := f.records[key]
	if !exists {
		return 0
	}
	return f.score(record, f.now())
}

func (f *FrecencyTracker) score(record *UsageRecord, now time.Time) float64 {
	frequencyScore := float64(record.LaunchCount)
	recencyScore := f.calculateRecencyScore(record.LastLaunched, now)
	trendScore := f.calculateTrendScore(record.RecentLaunches)

	return (frequencyScore * 0.4) + (recencyScore * 0.4) + (trendScore * 0.2)
}

// calculateRecencyScore is 100 at launch time and halves every halfLife.
func (f *FrecencyTracker) calculateRecencyScore(lastLaunched, now time.Time) float64 {
	elapsed := now.Sub(lastLaunched)
	if elapsed < 0 {
		elapsed = 0
	}
	halfLives := float64(elapsed) / float64(f.halfLife)
	return 100 * math.Pow(0.5, halfLives)
}

// calculateTrendScore maps the average interval between recent launches to
// 0..100, saturating at ten launches a day.
func (f *FrecencyTracker) calculateTrendScore(recentLaunches []int64) float64 {
	if len(recentLaunches) < 2 {
		return 0
	}

	totalInterval := recentLaunches[len(recentLaunches)-1] - recentLaunches[0]
	if totalInterval <= 0 {
		return 0
	}

	averageInterval := float64(totalInterval) / float64(len(recentLaunches)-1)
	launchesPerDay := 24.0 * 3600.0 / averageInterval
	if launchesPerDay > 10 {
		launchesPerDay = 10
	}

	return (launchesPerDay / 10.0) * 100
}

func (f *FrecencyTracker) GetUsageStats(key string) *UsageRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()

	record, exists := f.records[key]
	if !exists {
		return nil
	}
	return record.clone()
}

func (f *FrecencyTracker) GetAllRecords() map[string]*UsageRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()

	records := make(map[string]*UsageRecord, len(f.records))
	for key, record := range f.records {
		records[key] = record.clone()
	}
	return records
}

func (f *FrecencyTracker) load() error {
	data, err := os.ReadFile(f.file)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[FRECENCY] No existing frecency data file, starting fresh")
			return nil
		}
		return err
	}

	var records map[string]*UsageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal frecency data: %w", err)
	}
	if records == nil {
		records = make(map[string]*UsageRecord)
	}

	f.mu.Lock()
	f.records = records
	f.mu.Unlock()

	log.Printf("[FRECENCY] Loaded %d usage records", len(records))
	return nil
}

func (f *FrecencyTracker) saveLocked() error {
	data, err := json.MarshalIndent(f.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal frecency data: %w", err)
	}

	tempFile := f.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write frecency data: %w", err)
	}
	if err := os.Rename(tempFile, f.file); err != nil {
		return fmt.Errorf("failed to replace frecency data: %w", err)
	}
	return nil
}

func (f *FrecencyTracker) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = make(map[string]*UsageRecord)
	if err := f.saveLocked(); err != nil {
		log.Printf("[FRECENCY] Failed to save frecency data: %v", err)
	}

	log.Printf("[FRECENCY] Cleared all usage records")
}

func (f *FrecencyTracker) Remove(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.records[key]; !ok {
		return
	}
	delete(f.records, key)
	if err := f.saveLocked(); err != nil {
		log.Printf("[FRECENCY] Failed to save frecency data: %v", err)
	}

	log.Printf("[FRECENCY] Removed usage record for '%s'", key)
}

type FrecencyMatch struct {
	Key   string
	Score float64
}

// GetTopKeys returns keys by descending frecency. limit <= 0 returns all.
func (f *FrecencyTracker) GetTopKeys(limit int) []FrecencyMatch {
	f.mu.RLock()
	defer f.mu.RUnlock()

	now := f.now()
	scores := make([]FrecencyMatch, 0, len(f.records))
	for key, record := range f.records {
		scores = append(scores, FrecencyMatch{Key: key, Score: f.score(record, now)})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Key < scores[j].Key
	})

	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores
}
