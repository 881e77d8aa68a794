package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// ProfilingConfig configures the pprof middleware.
type ProfilingConfig struct {
	// Enabled exposes /debug/pprof/* routes. Development only; the
	// middleware refuses to activate in production regardless.
	Enabled bool

	// Environment is the deployment environment name, used as a second
	// guard against enabling profiling where it must not run.
	Environment string
}

// Profiling exposes the net/http/pprof handlers under /debug/pprof/*
// when enabled. Profiles reveal memory contents and runtime internals,
// so the middleware is a pass-through unless Enabled is set and the
// environment is not production.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}

		if config.Environment == "production" || config.Environment == "prod" {
			slog.Error("refusing to enable profiling in production",
				"environment", config.Environment,
			)
			return next
		}

		slog.Warn("profiling endpoints enabled",
			"environment", config.Environment,
			"endpoints", "/debug/pprof/*",
		)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/debug/pprof") {
				next.ServeHTTP(w, r)
				return
			}

			switch r.URL.Path {
			case "/debug/pprof/cmdline":
				pprof.Cmdline(w, r)
			case "/debug/pprof/profile":
				pprof.Profile(w, r)
			case "/debug/pprof/symbol":
				pprof.Symbol(w, r)
			case "/debug/pprof/trace":
				pprof.Trace(w, r)
			default:
				// Index also serves the named profiles (heap,
				// goroutine, block, mutex, allocs, threadcreate).
				pprof.Index(w, r)
			}
		})
	}
}

// ProfilingStatus reports the profiling configuration as JSON, for
// verifying a deployment has profiling off.
func ProfilingStatus(config ProfilingConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "disabled"
		if config.Enabled {
			status = "enabled"
		}

		payload := struct {
			ProfilingEnabled bool     `json:"profiling_enabled"`
			Environment      string   `json:"environment"`
			Status           string   `json:"status"`
			Endpoints        []string `json:"endpoints"`
		}{
			ProfilingEnabled: config.Enabled,
			Environment:      config.Environment,
			Status:           status,
			Endpoints: []string{
				"/debug/pprof/",
				"/debug/pprof/profile",
				"/debug/pprof/heap",
				"/debug/pprof/goroutine",
				"/debug/pprof/block",
				"/debug/pprof/mutex",
				"/debug/pprof/threadcreate",
				"/debug/pprof/allocs",
				"/debug/pprof/cmdline",
				"/debug/pprof/symbol",
				"/debug/pprof/trace",
			},
		}

		body, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			slog.Error("failed to write profiling status response", "error", err)
		}
	}
}
