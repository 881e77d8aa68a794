package engagement

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// CaptureStats tracks cumulative statistics for telemetry capture.
// All operations are thread-safe using atomic counters.
type CaptureStats struct {
	accepted int64 // Events accepted and stored
	rejected int64 // Events rejected at the boundary (validation)
}

// NewCaptureStats creates a new CaptureStats instance.
func NewCaptureStats() *CaptureStats {
	return &CaptureStats{}
}

// RecordAccepted adds n to the accepted counter.
func (s *CaptureStats) RecordAccepted(n int) {
	atomic.AddInt64(&s.accepted, int64(n))
}

// RecordRejected adds n to the rejected counter.
func (s *CaptureStats) RecordRejected(n int) {
	atomic.AddInt64(&s.rejected, int64(n))
}

// Accepted returns the total number of accepted events.
func (s *CaptureStats) Accepted() int64 {
	return atomic.LoadInt64(&s.accepted)
}

// Rejected returns the total number of rejected events.
func (s *CaptureStats) Rejected() int64 {
	return atomic.LoadInt64(&s.rejected)
}

// Total returns the total number of events seen (accepted + rejected).
func (s *CaptureStats) Total() int64 {
	return s.Accepted() + s.Rejected()
}

// Reset resets all counters to zero.
func (s *CaptureStats) Reset() {
	atomic.StoreInt64(&s.accepted, 0)
	atomic.StoreInt64(&s.rejected, 0)
}

// String returns a human-readable summary of the statistics.
func (s *CaptureStats) String() string {
	return fmt.Sprintf("accepted=%d rejected=%d total=%d", s.Accepted(), s.Rejected(), s.Total())
}

// LogSummary logs a summary of capture statistics at INFO level.
func (s *CaptureStats) LogSummary(logger *slog.Logger) {
	logger.Info("engagement capture statistics",
		"accepted", s.Accepted(),
		"rejected", s.Rejected(),
		"total", s.Total(),
	)
}
