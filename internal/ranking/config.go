package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights defines the term weights for the content scoring formula.
// The five term weights sum to 1.0; Exploration is additive on top of the
// weighted sum (a uniform random draw in [0, Exploration) per item) and
// the final score is clamped to [0, 1].
type Weights struct {
	Recency     float64 `json:"recency"`     // Weight for creation-age decay (default: 0.15)
	TimeMatch   float64 `json:"time_match"`  // Weight for time-of-day preference match (default: 0.20)
	Completion  float64 `json:"completion"`  // Weight for completion-state tier (default: 0.25)
	Freshness   float64 `json:"freshness"`   // Weight for never-viewed/revisit boost (default: 0.20)
	TypeMatch   float64 `json:"type_match"`  // Weight for content-type preference (default: 0.20)
	Exploration float64 `json:"exploration"` // Upper bound of the additive exploration draw (default: 0.05)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configurations
}

// DefaultWeights returns the default scoring weight configuration.
//
// Formula: score = (recency * 0.15) + (time_match * 0.20) +
// (completion * 0.25) + (freshness * 0.20) + (type_match * 0.20)
// + uniform(0, 0.05), clamped to [0, 1].
//   - Completion state carries the largest weight so unfinished and fresh
//     content surfaces ahead of finished content
//   - Time-of-day match, freshness and type preference share equal weight
//   - Recency decays linearly to zero over 30 days
//   - The exploration draw lets occasionally under-favored content surface
func DefaultWeights() *Weights {
	return &Weights{
		Recency:     0.15,
		TimeMatch:   0.20,
		Completion:  0.25,
		Freshness:   0.20,
		TypeMatch:   0.20,
		Exploration: 0.05,
	}
}

// LoadCalibration loads scoring weights from a JSON calibration file.
// If the file doesn't exist or can't be read, returns default weights with
// an error. Partial configurations are merged with defaults for graceful
// degradation.
func LoadCalibration(filePath string) (*Weights, error) {
	// Return defaults if no file path provided
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	// Merge loaded weights with defaults to handle partial configurations
	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with default weights.
// Only non-zero values from the override are applied, which allows partial
// overrides in the calibration file. A weight therefore cannot be
// calibrated to exactly zero through the file.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	// Guard against nil base to avoid panics; fall back to defaults.
	if base == nil {
		return DefaultWeights()
	}

	// If there is no override provided, return a copy of the base.
	if override == nil {
		result := *base
		return &result
	}

	result := *base // Copy base

	if override.Recency != 0 {
		result.Recency = override.Recency
	}
	if override.TimeMatch != 0 {
		result.TimeMatch = override.TimeMatch
	}
	if override.Completion != 0 {
		result.Completion = override.Completion
	}
	if override.Freshness != 0 {
		result.Freshness = override.Freshness
	}
	if override.TypeMatch != 0 {
		result.TypeMatch = override.TypeMatch
	}
	if override.Exploration != 0 {
		result.Exploration = override.Exploration
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.Recency != defaults.Recency {
		overrides = append(overrides, fmt.Sprintf("recency: %.2f -> %.2f",
			defaults.Recency, loaded.Recency))
	}
	if loaded.TimeMatch != defaults.TimeMatch {
		overrides = append(overrides, fmt.Sprintf("time_match: %.2f -> %.2f",
			defaults.TimeMatch, loaded.TimeMatch))
	}
	if loaded.Completion != defaults.Completion {
		overrides = append(overrides, fmt.Sprintf("completion: %.2f -> %.2f",
			defaults.Completion, loaded.Completion))
	}
	if loaded.Freshness != defaults.Freshness {
		overrides = append(overrides, fmt.Sprintf("freshness: %.2f -> %.2f",
			defaults.Freshness, loaded.Freshness))
	}
	if loaded.TypeMatch != defaults.TypeMatch {
		overrides = append(overrides, fmt.Sprintf("type_match: %.2f -> %.2f",
			defaults.TypeMatch, loaded.TypeMatch))
	}
	if loaded.Exploration != defaults.Exploration {
		overrides = append(overrides, fmt.Sprintf("exploration: %.2f -> %.2f",
			defaults.Exploration, loaded.Exploration))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
