package ranking

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/leo-hammett/anthist-sub000/internal/content"
	"github.com/leo-hammett/anthist-sub000/internal/engagement"
)

// RankedContent is one entry of a ranking result.
type RankedContent struct {
	ContentID string  `json:"contentId"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// Ranker orders a user's content inventory against their recent
// engagement telemetry. It is stateless and safe for concurrent use:
// every call builds its own profile and touches no shared state.
type Ranker struct {
	weights *Weights
	explore ExploreFunc
	now     func() time.Time
}

// NewRanker creates a Ranker with the given weights and exploration
// source. Nil weights fall back to DefaultWeights; a nil explore source
// falls back to the process-wide uniform generator.
func NewRanker(weights *Weights, explore ExploreFunc) *Ranker {
	if weights == nil {
		weights = DefaultWeights()
	}
	if explore == nil {
		explore = rand.Float64
	}
	return &Ranker{
		weights: weights,
		explore: explore,
		now:     time.Now,
	}
}

// NewDeterministicRanker creates a Ranker with the exploration draw
// disabled and a fixed clock, for reproducible results.
func NewDeterministicRanker(weights *Weights, now time.Time) *Ranker {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Ranker{
		weights: weights,
		explore: func() float64 { return 0 },
		now:     func() time.Time { return now },
	}
}

// Rank builds one engagement profile from the supplied sessions, scores
// every content item independently against it, and returns the full list
// sorted by score descending. Exactly one entry is produced per input
// item; the function never filters, drops, or errors on valid input.
//
// The sort is stable: items with equal scores keep their input order.
// This is a deliberate strengthening for reproducibility; only the
// descending-by-score ordering is part of the contract.
func (r *Ranker) Rank(contents []*content.Item, recentEngagements []*engagement.Event, currentHour, currentDay int) []RankedContent {
	profile := BuildProfile(recentEngagements)
	now := r.now()

	rankings := make([]RankedContent, len(contents))
	for i, item := range contents {
		score, reason := ScoreContent(item, profile, currentHour, currentDay, r.weights, r.explore, now)
		rankings[i] = RankedContent{
			ContentID: item.ID,
			Score:     score,
			Reason:    reason,
		}
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Score > rankings[j].Score
	})

	return rankings
}
