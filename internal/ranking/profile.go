package ranking

import (
	"github.com/leo-hammett/anthist-sub000/internal/engagement"
)

// Quality-score term weights and caps for a single session.
const (
	// qualityTimeSpentCapMS caps the time-spent contribution once a
	// session exceeds 10 minutes.
	qualityTimeSpentCapMS = 10 * 60 * 1000

	qualityTimeSpentWeight   = 0.3
	qualityScrollDepthWeight = 0.2
	qualityCompletionWeight  = 0.3
	qualityScrollSpeedWeight = 0.2

	// neutralScrollScore is used when a session carried no scroll data
	// (scrollSpeed == 0): treated as moderately-likely-reading, neither
	// penalized nor rewarded.
	neutralScrollScore = 0.5

	// scrollSpeedFloor is the speed (px/ms) at which the scroll-speed
	// score reaches 0. Slow scrolling indicates careful reading; fast
	// scrolling indicates skimming.
	scrollSpeedFloor = 2.0
)

// Profile summarizes when and how a user engages, aggregated from their
// recent viewing sessions. It is ephemeral: built fresh for each ranking
// call and never persisted.
type Profile struct {
	// PreferredHours maps hour (0-23) to accumulated quality score.
	// Accumulation is intentionally unnormalized so that hours with more
	// total high-quality activity dominate, not just hours with a high
	// average.
	PreferredHours map[int]float64

	// PreferredDays maps day (0-6) to accumulated quality score, same
	// accumulation rule as PreferredHours.
	PreferredDays map[int]float64

	// TypePreferences maps content type to a preference score in [0, 1].
	// Not currently learned from the event stream; every lookup falls
	// through to the neutral default. See TypePreference.
	TypePreferences map[string]float64

	AvgScrollSpeed    float64
	AvgTimeSpent      float64
	AvgCompletionRate float64
}

// defaultTypePreference is returned for any type with no learned
// preference. TypePreferences is declared in the profile shape but is not
// populated from the event stream yet, so in practice every lookup
// returns this neutral value.
const defaultTypePreference = 0.5

// TypePreference returns the preference score for a content type,
// falling back to the neutral default when the type is unknown.
func (p *Profile) TypePreference(contentType string) float64 {
	if score, ok := p.TypePreferences[contentType]; ok {
		return score
	}
	return defaultTypePreference
}

// MaxHourScore returns the accumulated quality score of the user's single
// best hour, floored at 1 to avoid division by zero on an empty profile.
func (p *Profile) MaxHourScore() float64 {
	max := 0.0
	for _, score := range p.PreferredHours {
		if score > max {
			max = score
		}
	}
	if max < 1 {
		return 1
	}
	return max
}

// QualityScore summarizes how engaged a single session was, in [0, 1]
// for well-formed inputs. It is a weighted sum of time spent (capped at
// 10 minutes), scroll depth, session completion rate, and scroll speed.
func QualityScore(event *engagement.Event) float64 {
	timeScore := event.TimeSpent / qualityTimeSpentCapMS
	if timeScore > 1 {
		timeScore = 1
	}

	scrollScore := neutralScrollScore
	if event.ScrollSpeed > 0 {
		scrollScore = 1 - event.ScrollSpeed/scrollSpeedFloor
		if scrollScore < 0 {
			scrollScore = 0
		}
	}

	return timeScore*qualityTimeSpentWeight +
		event.ScrollDepth*qualityScrollDepthWeight +
		event.CompletionRate*qualityCompletionWeight +
		scrollScore*qualityScrollSpeedWeight
}

// BuildProfile aggregates a flat list of viewing sessions into a Profile.
// An empty event list yields empty maps and zero averages, never an error.
// Deterministic given the same input; no side effects.
func BuildProfile(events []*engagement.Event) *Profile {
	profile := &Profile{
		PreferredHours:  make(map[int]float64),
		PreferredDays:   make(map[int]float64),
		TypePreferences: make(map[string]float64),
	}

	if len(events) == 0 {
		return profile
	}

	var sumScrollSpeed, sumTimeSpent, sumCompletion float64
	for _, event := range events {
		quality := QualityScore(event)
		profile.PreferredHours[event.TimeOfDay] += quality
		profile.PreferredDays[event.DayOfWeek] += quality

		sumScrollSpeed += event.ScrollSpeed
		sumTimeSpent += event.TimeSpent
		sumCompletion += event.CompletionRate
	}

	count := float64(len(events))
	profile.AvgScrollSpeed = sumScrollSpeed / count
	profile.AvgTimeSpent = sumTimeSpent / count
	profile.AvgCompletionRate = sumCompletion / count

	return profile
}
