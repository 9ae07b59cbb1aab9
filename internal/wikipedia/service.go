package wikipedia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/chess10kp/winlaunch/internal/settings"
)

var ErrMalformedResponse = errors.New("malformed opensearch response")

const maxResponseBytes = 1 << 20

type WikipediaSettings struct {
	Language string `json:"language"`
	Limit    int    `json:"limit"`
	// Endpoint replaces https://<language>.wikipedia.org/w/api.php
	Endpoint string `json:"endpoint,omitempty"`
}

func (*WikipediaSettings) SettingsKey() string {
	return "wikipedia"
}

func DefaultSettings() *WikipediaSettings {
	return &WikipediaSettings{
		Language: "en",
		Limit:    10,
	}
}

// Suggestion is one autocomplete result.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Service queries the MediaWiki opensearch API.
type Service struct {
	store      *settings.Service
	settings   *WikipediaSettings
	httpClient *http.Client
}

func NewService(store *settings.Service, s *WikipediaSettings) *Service {
	return &Service{
		store:    store,
		settings: s,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *Service) endpoint() (string, int) {
	var endpoint, language string
	var limit int
	s.store.View(func() {
		endpoint, language, limit = s.settings.Endpoint, s.settings.Language, s.settings.Limit
	})
	if language == "" {
		language = "en"
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", url.PathEscape(language))
	}
	if limit <= 0 {
		limit = 10
	}
	return endpoint, limit
}

// Search returns title suggestions for the query. An empty query returns
// nothing without a request.
func (s *Service) Search(ctx context.Context, query string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	endpoint, limit := s.endpoint()
	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("search", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("namespace", "0")
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "winlaunch")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("[WIKIPEDIA] Request for '%s' failed: %v", query, err)
		return nil, fmt.Errorf("opensearch request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[WIKIPEDIA] Request for '%s' returned %s", query, resp.Status)
		return nil, fmt.Errorf("opensearch returned %s", resp.Status)
	}

	suggestions, err := parseOpenSearch(body)
	if err != nil {
		log.Printf("[WIKIPEDIA] Failed to parse response for '%s': %v", query, err)
		return nil, err
	}

	log.Printf("[WIKIPEDIA] '%s' returned %d suggestions in %v", query, len(suggestions), time.Since(start))
	return suggestions, nil
}

// parseOpenSearch reads [query, titles, descriptions, urls]. The same three
// arrays without the leading query are accepted too.
func parseOpenSearch(body []byte) ([]Suggestion, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}

	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected an array", ErrMalformedResponse)
	}

	parts := root.Array()
	switch {
	case len(parts) == 4 && parts[0].Type == gjson.String:
		parts = parts[1:]
	case len(parts) == 3:
	default:
		return nil, fmt.Errorf("%w: expected 3 or 4 elements, got %d", ErrMalformedResponse, len(parts))
	}

	for i, p := range parts {
		if !p.IsArray() {
			return nil, fmt.Errorf("%w: element %d is not an array", ErrMalformedResponse, i)
		}
	}

	titles, descriptions, urls := parts[0].Array(), parts[1].Array(), parts[2].Array()
	if len(urls) != len(titles) {
		return nil, fmt.Errorf("%w: %d titles but %d urls", ErrMalformedResponse, len(titles), len(urls))
	}

	suggestions := make([]Suggestion, 0, len(titles))
	for i, title := range titles {
		s := Suggestion{Title: title.String(), URL: urls[i].String()}
		if i < len(descriptions) {
			s.Description = descriptions[i].String()
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}
