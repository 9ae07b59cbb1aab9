package apps

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestTracker(t *testing.T) (*FrecencyTracker, string) {
	t.Helper()
	tempDir := t.TempDir()
	tracker, err := NewFrecencyTracker(tempDir)
	if err != nil {
		t.Fatalf("Failed to create frecency tracker: %v", err)
	}
	return tracker, tempDir
}

func TestNewFrecencyTracker(t *testing.T) {
	tracker, tempDir := newTestTracker(t)

	if tracker.file != filepath.Join(tempDir, "frecency.json") {
		t.Errorf("Expected file path %s, got %s", filepath.Join(tempDir, "frecency.json"), tracker.file)
	}
}

func TestFrecencyTracker_RecordLaunch(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.RecordLaunch("firefox")
	tracker.RecordLaunch("firefox")
	tracker.RecordLaunch("chrome")
	tracker.RecordLaunch("")

	stats := tracker.GetUsageStats("firefox")
	if stats == nil {
		t.Fatal("Expected non-nil stats for firefox")
	}
	if stats.LaunchCount != 2 {
		t.Errorf("Expected launch count 2, got %d", stats.LaunchCount)
	}

	if got := tracker.GetFrequencyScore("chrome"); got != 1 {
		t.Errorf("Expected frequency score 1 for chrome, got %f", got)
	}
	if len(tracker.GetAllRecords()) != 2 {
		t.Errorf("Expected empty key to be ignored, got %d records", len(tracker.GetAllRecords()))
	}
}

func TestFrecencyTracker_UnknownKeyScoresZero(t *testing.T) {
	tracker, _ := newTestTracker(t)

	if score := tracker.GetFrecencyScore("missing"); score != 0 {
		t.Errorf("Expected frecency score 0, got %f", score)
	}
	if score := tracker.GetFrequencyScore("missing"); score != 0 {
		t.Errorf("Expected frequency score 0, got %f", score)
	}
}

func TestFrecencyTracker_RecencyDecay(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.RecordLaunch("firefox")
	recentScore := tracker.GetFrecencyScore("firefox")

	tracker.now = func() time.Time { return time.Now().Add(30 * 24 * time.Hour) }
	oldScore := tracker.GetFrecencyScore("firefox")

	if oldScore >= recentScore {
		t.Errorf("Expected old score %f to be less than recent score %f", oldScore, recentScore)
	}
}

func TestFrecencyTracker_RecencyHalvesPerHalfLife(t *testing.T) {
	tracker, _ := newTestTracker(t)
	launched := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{0, 100},
		{7 * 24 * time.Hour, 50},
		{14 * 24 * time.Hour, 25},
	}

	for _, tt := range tests {
		got := tracker.calculateRecencyScore(launched, launched.Add(tt.elapsed))
		if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
			t.Errorf("elapsed %v: expected %f, got %f", tt.elapsed, tt.want, got)
		}
	}
}

func TestFrecencyTracker_CalculateTrendScore(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tests := []struct {
		name     string
		launches []int64
		want     float64
	}{
		{"single launch", []int64{100}, 0},
		{"same second", []int64{100, 100}, 0},
		{"daily", []int64{0, 86400, 172800}, 10},
		{"saturated", []int64{0, 60, 120}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tracker.calculateTrendScore(tt.launches)
			if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
				t.Errorf("Expected trend score %f, got %f", tt.want, got)
			}
		})
	}
}

func TestFrecencyTracker_GetTopKeys(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.RecordLaunch("firefox")
	tracker.RecordLaunch("firefox")
	tracker.RecordLaunch("firefox")
	tracker.RecordLaunch("chrome")
	tracker.RecordLaunch("chrome")
	tracker.RecordLaunch("terminal")

	top := tracker.GetTopKeys(10)
	if len(top) != 3 {
		t.Fatalf("Expected 3 top keys, got %d", len(top))
	}
	if top[0].Key != "firefox" {
		t.Errorf("Expected firefox to be top, got %s", top[0].Key)
	}
	if top[0].Score < top[1].Score || top[1].Score < top[2].Score {
		t.Errorf("Expected descending scores, got %v", top)
	}

	if limited := tracker.GetTopKeys(1); len(limited) != 1 {
		t.Errorf("Expected 1 key with limit, got %d", len(limited))
	}
}

func TestFrecencyTracker_Persistence(t *testing.T) {
	tracker1, tempDir := newTestTracker(t)

	tracker1.RecordLaunch("firefox")
	tracker1.RecordLaunch("firefox")
	tracker1.RecordLaunch("chrome")

	if _, err := os.Stat(filepath.Join(tempDir, "frecency.json")); err != nil {
		t.Fatalf("Expected frecency.json to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "frecency.json.tmp")); !os.IsNotExist(err) {
		t.Errorf("Expected temp file to be renamed away, stat err=%v", err)
	}

	tracker2, err := NewFrecencyTracker(tempDir)
	if err != nil {
		t.Fatalf("Failed to create second tracker: %v", err)
	}

	stats := tracker2.GetUsageStats("firefox")
	if stats == nil {
		t.Fatal("Expected firefox stats to be persisted")
	}
	if stats.LaunchCount != 2 {
		t.Errorf("Expected persisted launch count 2, got %d", stats.LaunchCount)
	}
	if len(stats.RecentLaunches) != 2 {
		t.Errorf("Expected 2 recent launches, got %d", len(stats.RecentLaunches))
	}
}

func TestFrecencyTracker_CorruptFileStartsFresh(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "frecency.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	tracker, err := NewFrecencyTracker(tempDir)
	if err != nil {
		t.Fatalf("Failed to create frecency tracker: %v", err)
	}
	if len(tracker.GetAllRecords()) != 0 {
		t.Error("Expected no records from corrupt file")
	}
}

func TestFrecencyTracker_Remove(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.RecordLaunch("firefox")
	tracker.RecordLaunch("chrome")

	tracker.Remove("firefox")

	if tracker.GetUsageStats("firefox") != nil {
		t.Error("Expected firefox stats to be removed")
	}
	if tracker.GetUsageStats("chrome") == nil {
		t.Error("Expected chrome stats to still exist")
	}
}

func TestFrecencyTracker_Clear(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.RecordLaunch("firefox")
	tracker.RecordLaunch("chrome")
	tracker.Clear()

	if records := tracker.GetAllRecords(); len(records) != 0 {
		t.Errorf("Expected 0 records after clear, got %d", len(records))
	}
}

func TestFrecencyTracker_StatsAreCopies(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.RecordLaunch("firefox")
	stats := tracker.GetUsageStats("firefox")
	stats.LaunchCount = 99
	stats.RecentLaunches[0] = 0

	again := tracker.GetUsageStats("firefox")
	if again.LaunchCount != 1 {
		t.Errorf("Expected launch count 1, got %d", again.LaunchCount)
	}
	if again.RecentLaunches[0] == 0 {
		t.Error("Expected recent launches to be copied")
	}
}

func TestFrecencyTracker_MultipleRecentLaunches(t *testing.T) {
	tracker, _ := newTestTracker(t)

	for i := 0; i < 15; i++ {
		tracker.RecordLaunch("firefox")
	}

	stats := tracker.GetUsageStats("firefox")
	if len(stats.RecentLaunches) != 10 {
		t.Errorf("Expected 10 recent launches, got %d", len(stats.RecentLaunches))
	}
	if stats.LaunchCount != 15 {
		t.Errorf("Expected total launch count 15, got %d", stats.LaunchCount)
	}
}
