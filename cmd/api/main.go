// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/leo-hammett/anthist-sub000/internal/api"
	"github.com/leo-hammett/anthist-sub000/internal/auth"
	"github.com/leo-hammett/anthist-sub000/internal/config"
	"github.com/leo-hammett/anthist-sub000/internal/content"
	"github.com/leo-hammett/anthist-sub000/internal/db"
	"github.com/leo-hammett/anthist-sub000/internal/engagement"
	"github.com/leo-hammett/anthist-sub000/internal/extract"
	"github.com/leo-hammett/anthist-sub000/internal/health"
	"github.com/leo-hammett/anthist-sub000/internal/idempotency"
	"github.com/leo-hammett/anthist-sub000/internal/jobs"
	"github.com/leo-hammett/anthist-sub000/internal/middleware"
	"github.com/leo-hammett/anthist-sub000/internal/ranking"
	"github.com/leo-hammett/anthist-sub000/internal/storage"
	"github.com/leo-hammett/anthist-sub000/internal/tracing"
)

const serviceName = "anthist-api"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Anthist API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, cfgErrs := config.Load(*configPath)
	if cfg == nil {
		for _, err := range cfgErrs {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	// A missing DATABASE_URL outside production means in-memory repositories.
	// Everything else is fatal.
	fatal := false
	for _, err := range cfgErrs {
		if errors.Is(err, config.ErrMissingDatabaseURL) && cfg.Env != "production" {
			logger.Warn("DATABASE_URL not set, using in-memory repositories")
			continue
		}
		logger.Error("invalid configuration", "error", err)
		fatal = true
	}
	if fatal {
		os.Exit(1)
	}

	summary := cfg.LogSummary()
	args := make([]any, 0, len(summary)*2)
	for key, value := range summary {
		args = append(args, key, value)
	}
	logger.Info("configuration loaded", args...)

	// Tracing
	traceProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Repositories
	var (
		contentRepo    content.Repository
		engagementRepo engagement.Repository
		dbChecker      api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer sqlDB.Close()

		contentRepo = content.NewPostgresRepository(sqlDB, logger)
		engagementRepo = engagement.NewPostgresRepository(sqlDB, logger)
		dbChecker = health.NewDBChecker(sqlDB)
	} else {
		contentRepo = content.NewInMemoryRepository()
		engagementRepo = engagement.NewInMemoryRepository()
	}

	// Rate limit store: Redis when configured, in-memory otherwise
	var (
		rateStore    middleware.RateLimitStore
		redisChecker api.HealthChecker
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		rateStore = middleware.NewRedisRateLimitStore(redisClient)
		redisChecker = health.NewRedisChecker(redisClient)
	} else {
		rateStore = middleware.NewInMemoryRateLimitStore()
	}

	// Auth
	var jwtService *auth.JWTService
	if cfg.JWTPreviousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		jwtService = auth.NewJWTService(cfg.JWTSecret)
	}

	// Ranking weights, optionally calibrated from file
	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("ranking calibration not applied", "error", err)
	}
	ranker := ranking.NewRanker(weights, nil)

	// Object storage (optional)
	var storageService *storage.Service
	if cfg.StorageBucketName != "" {
		storageService, err = storage.NewService(storage.ServiceConfig{
			BucketName:      cfg.StorageBucketName,
			AccessKeyID:     cfg.StorageAccessKeyID,
			SecretAccessKey: cfg.StorageSecretAccessKey,
			Endpoint:        cfg.StorageEndpoint,
			MaxSizeMB:       cfg.StorageMaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to initialize storage service", "error", err)
			os.Exit(1)
		}
	}

	// Extraction service client
	extractor := extract.NewClient(cfg.ExtractorURL)
	var extractorChecker api.HealthChecker
	if cfg.ExtractorURL != "" {
		extractorChecker = health.NewExtractorChecker(cfg.ExtractorURL)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	metrics := middleware.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(registry); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}

	// Count fail-open events on the shared limiter
	if redisStore, ok := rateStore.(*middleware.RedisRateLimitStore); ok {
		redisStore.WithMetrics(metrics)
	}

	// Idempotency keys for engagement batch retries
	idempotencyRepo := idempotency.NewInMemoryRepository()
	cleanupStop := make(chan struct{})
	go jobs.RunPeriodic(jobs.JobTypeIdempotencyCleanup, 10*time.Minute, jobMetrics, cleanupStop, func() error {
		_, err := idempotency.CleanupOldKeys(idempotencyRepo, idempotency.DefaultExpiry)
		return err
	})

	// Handlers
	captureStats := engagement.NewCaptureStats()
	contentHandlers := api.NewContentHandlers(contentRepo)
	documentHandlers := api.NewDocumentHandlers(contentRepo, extractor)
	engagementHandlers := api.NewEngagementHandlers(engagementRepo, captureStats)
	importHandlers := api.NewImportHandlers(contentRepo)
	rankHandlers := api.NewRankHandlers(ranker)
	feedHandlers := api.NewFeedHandlers(contentRepo, engagementRepo, ranker)
	authHandlers := api.NewAuthHandlers(jwtService, cfg.DeviceKey)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:        dbChecker,
		RedisChecker:     redisChecker,
		ExtractorChecker: extractorChecker,
		MetricsEnabled:   true,
	})

	mux := http.NewServeMux()

	// Probes and metrics
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Token endpoints get the tighter auth limit
	authLimit := middleware.RateLimiter(rateStore, middleware.DefaultAuthLimit(), middleware.IPKeyFunc(), metrics)
	mux.Handle("/auth/token", authLimit(http.HandlerFunc(authHandlers.IssueToken)))
	mux.Handle("/auth/refresh", authLimit(http.HandlerFunc(authHandlers.RefreshToken)))

	// Stateless ranking; the caller supplies all inputs
	rankLimit := middleware.RateLimiter(rateStore, middleware.DefaultRankLimit(), middleware.IPKeyFunc(), metrics)
	mux.Handle("/rank", rankLimit(http.HandlerFunc(rankHandlers.Rank)))

	requireAuth := middleware.Auth(jwtService)

	mux.Handle("/feed", requireAuth(http.HandlerFunc(feedHandlers.GetFeed)))

	mux.Handle("/contents", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			contentHandlers.CreateContent(w, r)
		case http.MethodGet:
			contentHandlers.ListContents(w, r)
		default:
			writeMethodNotAllowed(w, r)
		}
	})))

	mux.Handle("/contents/", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/contents/"), "/")
		if len(parts) >= 2 && parts[1] != "" {
			switch {
			case parts[1] == "progress" && r.Method == http.MethodPost:
				contentHandlers.UpdateProgress(w, r)
			case parts[1] == "document" && r.Method == http.MethodGet:
				documentHandlers.GetDocument(w, r)
			default:
				writeNotFound(w, r)
			}
			return
		}
		switch r.Method {
		case http.MethodGet:
			contentHandlers.GetContent(w, r)
		case http.MethodPatch:
			contentHandlers.UpdateContent(w, r)
		case http.MethodDelete:
			contentHandlers.DeleteContent(w, r)
		default:
			writeMethodNotAllowed(w, r)
		}
	})))

	// Batch capture is retried by mobile clients, so it runs behind the
	// idempotency middleware.
	idempotent := middleware.Idempotency(idempotencyRepo, map[string]bool{"/engagements": true})
	mux.Handle("/engagements", requireAuth(idempotent(http.HandlerFunc(engagementHandlers.CaptureBatch))))
	mux.Handle("/engagements/stream", requireAuth(http.HandlerFunc(engagementHandlers.CaptureStream)))

	mux.Handle("/imports/bookmarks", requireAuth(http.HandlerFunc(importHandlers.ImportBookmarks)))

	if storageService != nil {
		uploadHandlers := api.NewUploadHandlers(storageService)
		mux.Handle("/uploads/sign", requireAuth(http.HandlerFunc(uploadHandlers.SignUpload)))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeNotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"anthist-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// pprof endpoints, development only
	var root http.Handler = mux
	if cfg.Env == "development" {
		root = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(root)
	}

	// Middleware chain, outermost first:
	// RequestID -> Logging -> Tracing -> HTTPMetrics -> CORS -> global rate limit
	globalLimit := middleware.RateLimiter(rateStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), metrics)
	cors := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           3600,
	})
	handler := middleware.RequestID(
		middleware.Logging(logger)(
			middleware.Tracing(serviceName)(
				middleware.HTTPMetrics(metrics)(
					cors(globalLimit(root))))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(cleanupStop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	captureStats.LogSummary(logger)

	if err := traceProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeBadRequest)
	api.WriteError(w, ctx, http.StatusMethodNotAllowed, api.ErrCodeBadRequest, "Method not allowed")
}
