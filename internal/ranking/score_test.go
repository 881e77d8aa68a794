package ranking

import (
	"math"
	"testing"
	"time"

	"github.com/leo-hammett/anthist-sub000/internal/content"
)

// TestRecencyWeight tests the creation-age decay.
func TestRecencyWeight(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt time.Time
		expected  float64
	}{
		{
			name:      "created now",
			createdAt: now,
			expected:  1.0,
		},
		{
			name:      "15 days old decays to half",
			createdAt: now.AddDate(0, 0, -15),
			expected:  0.5,
		},
		{
			name:      "30 days old decays to zero",
			createdAt: now.AddDate(0, 0, -30),
			expected:  0.0,
		},
		{
			name:      "60 days old clamps at zero, never negative",
			createdAt: now.AddDate(0, 0, -60),
			expected:  0.0,
		},
		{
			name:      "future timestamp exceeds 1 (not validated here)",
			createdAt: now.AddDate(0, 0, 3),
			expected:  1.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RecencyWeight(tt.createdAt, now)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestCompletionWeight tests the completion-state tiers, including the
// boundary values 0, 0.9, and 1.
func TestCompletionWeight(t *testing.T) {
	tests := []struct {
		name           string
		completionRate float64
		expected       float64
	}{
		{"fresh content gets full boost", 0, 1.0},
		{"barely started is a resume candidate", 0.01, 0.8},
		{"half finished is a resume candidate", 0.5, 0.8},
		{"just under the finished threshold", 0.89, 0.8},
		{"exactly at the finished threshold", 0.9, 0.2},
		{"fully consumed is deprioritized", 1.0, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CompletionWeight(tt.completionRate)
			if result != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestFreshnessWeight tests the never-viewed/revisit boost.
func TestFreshnessWeight(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d float64) *time.Time {
		ts := now.Add(-time.Duration(d * 24 * float64(time.Hour)))
		return &ts
	}

	tests := []struct {
		name         string
		lastViewedAt *time.Time
		expected     float64
	}{
		{"never viewed wins the full boost", nil, 1.0},
		{"viewed just now", daysAgo(0), 0.0},
		{"viewed one day ago", daysAgo(1), (1.0 / 7) * 0.5},
		{"viewed half a week ago", daysAgo(3.5), 0.25},
		{"viewed a week ago caps at half credit", daysAgo(7), 0.5},
		{"viewed a month ago still caps at half credit", daysAgo(30), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FreshnessWeight(tt.lastViewedAt, now)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestTimeMatchWeight tests normalization against the single best hour.
func TestTimeMatchWeight(t *testing.T) {
	tests := []struct {
		name        string
		hours       map[int]float64
		currentHour int
		expected    float64
	}{
		{
			name:        "empty profile scores zero",
			hours:       map[int]float64{},
			currentHour: 14,
			expected:    0,
		},
		{
			name:        "current hour is the best hour",
			hours:       map[int]float64{14: 2.0, 9: 1.0},
			currentHour: 14,
			expected:    1.0,
		},
		{
			name:        "current hour is half the best hour",
			hours:       map[int]float64{14: 2.0, 9: 1.0},
			currentHour: 9,
			expected:    0.5,
		},
		{
			name:        "hour with no activity scores zero",
			hours:       map[int]float64{14: 2.0},
			currentHour: 3,
			expected:    0,
		},
		{
			name:        "sub-1 accumulation is not inflated by the floor",
			hours:       map[int]float64{14: 0.4},
			currentHour: 14,
			expected:    0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &Profile{PreferredHours: tt.hours}
			result := TimeMatchWeight(profile, tt.currentHour)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestScoreContent_FreshContentFloor is the concrete regression from the
// scoring design: fresh, never-viewed content created now scores exactly
// 0.15 + 0 + 0.25 + 0.20 + 0.10 = 0.70 against an empty profile with the
// exploration draw disabled.
func TestScoreContent_FreshContentFloor(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	item := &content.Item{
		ID:        "fresh",
		Type:      content.KindArticle,
		CreatedAt: now,
	}
	profile := BuildProfile(nil)

	score, reason := ScoreContent(item, profile, 14, 2, DefaultWeights(), nil, now)
	if math.Abs(score-0.70) > 0.0001 {
		t.Errorf("expected score 0.70, got %f", score)
	}
	if reason != "Added recently" {
		t.Errorf("expected reason %q, got %q", "Added recently", reason)
	}
}

// TestScoreContent_StaleFinished verifies the decay/deprioritization
// path: old, fully consumed, recently revisited content lands near the
// floor.
func TestScoreContent_StaleFinished(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	lastViewed := now.AddDate(0, 0, -1)
	item := &content.Item{
		ID:             "stale",
		Type:           content.KindArticle,
		CreatedAt:      now.AddDate(0, 0, -60),
		LastViewedAt:   &lastViewed,
		CompletionRate: 1,
	}
	profile := BuildProfile(nil)

	score, reason := ScoreContent(item, profile, 14, 2, DefaultWeights(), nil, now)

	// recency 0, timeMatch 0, completion 0.2*0.25, freshness (1/7)*0.5*0.20,
	// type 0.5*0.20
	expected := 0.2*0.25 + (1.0/7)*0.5*0.20 + 0.5*0.20
	if math.Abs(score-expected) > 0.0001 {
		t.Errorf("expected score %f, got %f", expected, score)
	}
	if reason != "Based on your reading patterns" {
		t.Errorf("expected fallback reason, got %q", reason)
	}
}

// TestScoreContent_Clamp verifies the post-exploration clamp to [0, 1].
func TestScoreContent_Clamp(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	item := &content.Item{
		ID:        "max",
		Type:      content.KindArticle,
		CreatedAt: now,
	}
	// A profile whose best hour is the current hour maximizes timeMatch.
	profile := &Profile{
		PreferredHours:  map[int]float64{14: 3.0},
		PreferredDays:   map[int]float64{},
		TypePreferences: map[string]float64{content.KindArticle: 1.0},
	}

	// Exploration at the top of its range.
	almostOne := func() float64 { return 0.9999 }
	score, _ := ScoreContent(item, profile, 14, 2, DefaultWeights(), almostOne, now)
	if score > 1 {
		t.Errorf("score %f exceeds 1 after clamp", score)
	}
	if score != 1 {
		t.Errorf("expected clamped score 1, got %f", score)
	}
}

// TestReasonPriority tests the fixed priority rule for reason strings.
func TestReasonPriority(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	viewed := now.AddDate(0, 0, -2)

	tests := []struct {
		name     string
		item     content.Item
		expected string
	}{
		{
			name: "partial completion wins over never-viewed",
			item: content.Item{
				CompletionRate: 0.45,
				CreatedAt:      now,
			},
			expected: "Continue where you left off (45% complete)",
		},
		{
			name: "completion percentage is rounded",
			item: content.Item{
				CompletionRate: 0.456,
				CreatedAt:      now,
			},
			expected: "Continue where you left off (46% complete)",
		},
		{
			name: "never viewed and created today",
			item: content.Item{
				CreatedAt: now.Add(-2 * time.Hour),
			},
			expected: "Added recently",
		},
		{
			name: "never viewed and older than a day",
			item: content.Item{
				CreatedAt: now.AddDate(0, 0, -5),
			},
			expected: "Fresh content for you",
		},
		{
			name: "finished and previously viewed falls through",
			item: content.Item{
				CompletionRate: 1,
				CreatedAt:      now.AddDate(0, 0, -5),
				LastViewedAt:   &viewed,
			},
			expected: "Based on your reading patterns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := reasonFor(&tt.item, now)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}
