// Package main is the entry point for the opportunity feed API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/venzalabs/oppfeed/internal/api"
	"github.com/venzalabs/oppfeed/internal/config"
	"github.com/venzalabs/oppfeed/internal/db"
	"github.com/venzalabs/oppfeed/internal/eligibility"
	"github.com/venzalabs/oppfeed/internal/feed"
	"github.com/venzalabs/oppfeed/internal/health"
	"github.com/venzalabs/oppfeed/internal/middleware"
	"github.com/venzalabs/oppfeed/internal/ranking"
	"github.com/venzalabs/oppfeed/internal/tracing"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Opportunity Feed API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := cfg.LogSummary()
	logger.Info("configuration loaded",
		"port", summary["port"],
		"env", summary["env"],
		"database_url", summary["database_url"],
		"redis_addr", summary["redis_addr"],
		"rank_calibration_path", summary["rank_calibration_path"],
		"otlp_endpoint", summary["otlp_endpoint"])

	ctx := context.Background()

	// Tracing is active only when an OTLP endpoint is configured.
	traceProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "oppfeed-api",
		Enabled:      cfg.OTLPEndpoint != "",
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Ranking weights, optionally recalibrated from file.
	weights := ranking.DefaultWeights()
	if cfg.RankCalibrationPath != "" {
		weights, err = ranking.LoadCalibration(cfg.RankCalibrationPath)
		if err != nil {
			logger.Error("failed to load rank calibration", "path", cfg.RankCalibrationPath, "error", err)
			os.Exit(1)
		}
	}

	// Metrics registry shared by every component.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpMetrics := middleware.NewMetrics()
	feedMetrics := feed.NewMetrics()
	eligMetrics := eligibility.NewMetrics()
	for _, m := range []interface {
		Register(prometheus.Registerer) error
	}{httpMetrics, feedMetrics, eligMetrics} {
		if err := m.Register(registry); err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	// Feed repository: PostgreSQL when configured, in-memory otherwise.
	var (
		repo      feed.Repository
		dbChecker api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		repo = feed.NewPostgresRepository(conn)
		dbChecker = health.NewDBChecker(conn)
	} else {
		logger.Warn("no DATABASE_URL configured, using in-memory repository")
		repo = feed.NewInMemoryRepository()
	}

	// Eligibility cache: optional Redis.
	var (
		scorer       api.EligibilityScorer
		redisChecker api.HealthChecker
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		scorer = eligibility.NewCachedScorer(client, eligMetrics)
		redisChecker = health.NewRedisChecker(client)
	} else {
		logger.Warn("no REDIS_ADDR configured, eligibility results will not be cached")
	}

	pager := feed.NewPager(repo, feedMetrics)

	mux := buildRoutes(routeDeps{
		feed:        api.NewFeedHandlers(pager),
		eligibility: api.NewEligibilityHandlers(scorer),
		rank:        api.NewRankHandlers(weights),
		health: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:    dbChecker,
			RedisChecker: redisChecker,
		}),
		metricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	// Middleware chain: RequestID -> Logging -> HTTPMetrics -> routes, with
	// OTel spans around the whole thing.
	var handler http.Handler = mux
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)
	handler = otelhttp.NewHandler(handler, "oppfeed-api")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// routeDeps carries the handlers buildRoutes wires onto the mux.
type routeDeps struct {
	feed           *api.FeedHandlers
	eligibility    *api.EligibilityHandlers
	rank           *api.RankHandlers
	health         *api.HealthHandlers
	metricsHandler http.Handler
}

// buildRoutes assembles the route table. Split from main so tests can
// exercise the real routing without starting a listener.
func buildRoutes(deps routeDeps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/feed", deps.feed.GetFeed)
	mux.HandleFunc("/v1/eligibility", deps.eligibility.ScoreEligibility)
	mux.HandleFunc("/v1/rank", deps.rank.ScoreRank)
	mux.HandleFunc("/health", deps.health.Health)
	mux.HandleFunc("/ready", deps.health.Ready)
	mux.Handle("/metrics", deps.metricsHandler)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"oppfeed-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	return mux
}
