package jobs

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPeriodic_RunsImmediatelyAndStops(t *testing.T) {
	var runs atomic.Int64
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		RunPeriodic(JobTypeIdempotencyCleanup, time.Hour, nil, stop, func() error {
			runs.Add(1)
			return nil
		})
		close(done)
	}()

	// The first run happens before the first tick.
	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunPeriodic did not return after stop")
	}

	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
}

func TestRunPeriodic_Ticks(t *testing.T) {
	var runs atomic.Int64
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		RunPeriodic(JobTypeIdempotencyCleanup, 20*time.Millisecond, nil, stop, func() error {
			runs.Add(1)
			return nil
		})
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline", runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(stop)
	<-done
}
