package jobs

import (
	"log/slog"
	"time"
)

// Job is a unit of background work. The returned error marks the run as
// failed in the metrics; the runner keeps going either way.
type Job func() error

// RunPeriodic executes job at the given interval until stop is closed,
// recording each run in metrics under jobType. The job runs once
// immediately on start. Metrics may be nil, in which case runs are only
// logged. This function blocks and should typically be run in a goroutine.
func RunPeriodic(jobType string, interval time.Duration, metrics *Metrics, stop <-chan struct{}, job Job) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce(jobType, metrics, job)

	for {
		select {
		case <-ticker.C:
			runOnce(jobType, metrics, job)
		case <-stop:
			slog.Info("stopping periodic job", "job_type", jobType)
			return
		}
	}
}

func runOnce(jobType string, metrics *Metrics, job Job) {
	start := time.Now()
	err := job()
	elapsed := time.Since(start)

	if metrics != nil {
		metrics.ObserveJobDuration(jobType, elapsed.Seconds())
		if err != nil {
			metrics.IncJobsTotal(jobType, StatusFailure)
			metrics.IncJobErrors(jobType)
		} else {
			metrics.IncJobsTotal(jobType, StatusSuccess)
		}
	}

	if err != nil {
		slog.Error("background job failed", "job_type", jobType, "error", err)
	}
}
