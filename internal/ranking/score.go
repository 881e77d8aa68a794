package ranking

import (
	"fmt"
	"math"
	"time"

	"github.com/leo-hammett/anthist-sub000/internal/content"
)

// Scoring constants for the individual terms.
const (
	// recencyDecayDays is the window over which the recency term decays
	// linearly to 0. Content older than this contributes nothing.
	recencyDecayDays = 30.0

	// revisitRampDays is the window over which previously viewed content
	// regains freshness credit, capped at revisitMaxBoost.
	revisitRampDays = 7.0

	// revisitMaxBoost is the most freshness credit previously viewed
	// content can earn; never-viewed content always gets 1.0.
	revisitMaxBoost = 0.5

	// Completion-state tiers. Partially consumed content is a "resume"
	// candidate; fresh content gets the full boost; content at or past
	// finishedThreshold is treated as finished and deprioritized.
	finishedThreshold    = 0.9
	completionTierResume = 0.8
	completionTierFresh  = 1.0
	completionTierDone   = 0.2
)

// RecencyWeight computes a creation-age score normalized to [0, 1].
// Decays linearly from 1.0 at age zero to 0 at recencyDecayDays; content
// older than the window contributes 0, never negative.
func RecencyWeight(createdAt, now time.Time) float64 {
	ageDays := now.Sub(createdAt).Hours() / 24
	weight := 1 - ageDays/recencyDecayDays
	if weight < 0 {
		return 0
	}
	return weight
}

// TimeMatchWeight computes how well the current hour matches the user's
// engagement pattern, normalizing the current hour's accumulated quality
// score against the user's single best hour. Returns 0 for an empty
// profile (the denominator is floored at 1).
func TimeMatchWeight(profile *Profile, currentHour int) float64 {
	return profile.PreferredHours[currentHour] / profile.MaxHourScore()
}

// CompletionWeight returns the tiered completion-state score:
// full boost for fresh content, a resume boost for partially consumed
// content, and a deprioritizing floor for finished content.
func CompletionWeight(completionRate float64) float64 {
	if completionRate == 0 {
		return completionTierFresh
	}
	if completionRate < finishedThreshold {
		return completionTierResume
	}
	return completionTierDone
}

// FreshnessWeight computes the never-viewed/revisit score. Never-viewed
// content always wins this term with 1.0; previously viewed content earns
// at most half credit, ramping linearly over a week of absence.
func FreshnessWeight(lastViewedAt *time.Time, now time.Time) float64 {
	if lastViewedAt == nil {
		return 1.0
	}
	daysSinceView := now.Sub(*lastViewedAt).Hours() / 24
	ramp := daysSinceView / revisitRampDays
	if ramp > 1 {
		ramp = 1
	}
	return ramp * revisitMaxBoost
}

// ExploreFunc supplies uniform random values in [0, 1). It is injectable
// so deterministic tests can substitute a fixed or zero generator. The
// scorer draws once per content item; draws are never shared across items
// within one ranking call.
type ExploreFunc func() float64

// ScoreContent produces a score in [0, 1] and a reason string for one
// content item against the shared profile and current time context.
// currentDay is accepted for contract parity with the profile's
// PreferredDays accumulation but no day-match term exists in the current
// formula. explore may be nil, which disables the exploration draw.
func ScoreContent(item *content.Item, profile *Profile, currentHour, currentDay int, weights *Weights, explore ExploreFunc, now time.Time) (float64, string) {
	if weights == nil {
		weights = DefaultWeights()
	}
	_ = currentDay

	score := RecencyWeight(item.CreatedAt, now)*weights.Recency +
		TimeMatchWeight(profile, currentHour)*weights.TimeMatch +
		CompletionWeight(item.CompletionRate)*weights.Completion +
		FreshnessWeight(item.LastViewedAt, now)*weights.Freshness +
		profile.TypePreference(item.Type)*weights.TypeMatch

	if explore != nil {
		score += explore() * weights.Exploration
	}

	return clamp01(score), reasonFor(item, now)
}

// reasonFor selects the human-readable explanation by a fixed priority
// rule, independent of the score breakdown. First match wins.
func reasonFor(item *content.Item, now time.Time) string {
	if item.CompletionRate > 0 && item.CompletionRate < finishedThreshold {
		return fmt.Sprintf("Continue where you left off (%d%% complete)",
			int(math.Round(item.CompletionRate*100)))
	}
	if item.LastViewedAt == nil {
		ageDays := now.Sub(item.CreatedAt).Hours() / 24
		if ageDays < 1 {
			return "Added recently"
		}
		return "Fresh content for you"
	}
	return "Based on your reading patterns"
}

// clamp01 clamps a score to the [0, 1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
