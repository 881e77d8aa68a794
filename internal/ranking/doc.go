// Package ranking implements the content feed scoring engine: a pure,
// stateless computation that turns a user's content inventory and recent
// engagement telemetry into an ordered, explained ranking.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	ranker := ranking.NewRanker(weights, nil)
//	now := time.Now()
//	rankings := ranker.Rank(items, recentEvents, now.Hour(), int(now.Weekday()))
//
// The engine runs in two stages. First it aggregates the supplied viewing
// sessions into an ephemeral engagement profile: each session contributes
// a quality score (time spent, scroll depth, completion, scroll speed) to
// the hour and weekday it happened in, and simple averages are kept for
// scroll speed, time spent, and completion. Then every content item is
// scored independently against that one shared profile: recency decay,
// time-of-day match, completion-state tier, never-viewed/revisit boost,
// and type preference, plus a small uniform exploration draw so that
// occasionally under-favored content still surfaces.
//
// Weight Functions:
//
// All weight functions return values in the [0, 1] range and are designed
// to be composable. The profile is recomputed from scratch on every call;
// nothing is persisted and there is no shared mutable state, so a single
// Ranker is safe to use from many requests concurrently.
//
// Calibration:
//
// The calibration system allows deploy-time tuning of scoring weights via
// JSON configuration files loaded at startup. This enables A/B testing
// and optimization without code changes (but requires a redeploy or
// restart to pick up new configuration).
package ranking
