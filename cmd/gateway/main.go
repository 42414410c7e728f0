package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/breaker"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/cache"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/catalog"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/handlers"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/ledger"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/providers"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/ratelimit"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/router"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/telemetry"
	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/config"
	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/database"
	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/redis"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if cfg.Env == "development" {
		log.SetLevel(logrus.DebugLevel)
	}

	log.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Env}).Info("starting LLM orchestrator gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	// Initialize Redis
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	// Model catalog
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load model catalog")
		}
	}
	log.WithField("models", len(cat.Models())).Info("loaded model catalog")

	// Orchestration components
	tracker := ratelimit.NewTracker()
	breakers := breaker.NewSet(breaker.Options{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
	})
	led := ledger.New(cat,
		ledger.WithDailyBudget(cfg.DailyBudgetUSD),
		ledger.WithMonthlyBudget(cfg.MonthlyBudgetUSD),
		ledger.WithStore(db),
	)

	promSink := telemetry.NewPrometheusSink(prometheus.DefaultRegisterer)
	sink := telemetry.MultiSink{telemetry.NewLogSink(log), promSink}

	providerMgr := providers.NewManager(cfg)
	rt := router.New(cat, tracker, breakers, led, providerMgr, sink, log)
	log.Info("initialized request router")

	cacheService := cache.New(redisClient)

	policy := router.Policy{
		MaxRetries:  cfg.MaxRetries,
		MaxWait:     cfg.MaxWait,
		BackoffBase: cfg.BackoffBase,
	}

	chatHandler := handlers.NewChatHandler(rt, providerMgr, led, cacheService, db, policy, log)
	usageHandler := handlers.NewUsageHandler(led)
	middleware := handlers.NewMiddleware(db, redisClient, cfg.DefaultTier)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Minute))
	r.Use(middleware.CORSMiddleware)

	// Health check and metrics (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes (with auth and rate limiting)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.RateLimitMiddleware)

		r.Post("/chat/completions", chatHandler.HandleChatCompletion)
		r.Get("/usage", usageHandler.HandleUsage)
	})

	// HTTP server. Read/write timeouts leave room for the router's
	// wait-on-primary backoff, which can legitimately sit out minutes.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown error")
	}

	log.Info("server stopped")
}
