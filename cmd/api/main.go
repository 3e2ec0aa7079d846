package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/autolumiku/dealership-ai-platform/internal/ai"
	"github.com/autolumiku/dealership-ai-platform/internal/api/router"
	appconfig "github.com/autolumiku/dealership-ai-platform/internal/config"
	"github.com/autolumiku/dealership-ai-platform/internal/conversation"
	"github.com/autolumiku/dealership-ai-platform/internal/engine"
	"github.com/autolumiku/dealership-ai-platform/internal/http/handlers"
	"github.com/autolumiku/dealership-ai-platform/internal/identity"
	"github.com/autolumiku/dealership-ai-platform/internal/messaging"
	"github.com/autolumiku/dealership-ai-platform/internal/observability/metrics"
	"github.com/autolumiku/dealership-ai-platform/internal/tenancy"
	"github.com/autolumiku/dealership-ai-platform/internal/upload"
	"github.com/autolumiku/dealership-ai-platform/internal/vehicle"
	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dealership-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	defer func() { _ = db.Close() }()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)

	convStore := conversation.NewStore(db)
	window := conversation.NewRecentWindow(redisClient).WithMaxEntries(cfg.PhotoLookbackLimit)
	roster := identity.NewRoster(identity.NewSQLRosterSource(db), logger).WithTTL(cfg.RosterCacheTTL)
	catalog := vehicle.NewCatalog(db)
	dupes := vehicle.NewDupeChecker(redisClient).WithWindow(cfg.DuplicateWindow)

	uploads := upload.NewWorkflow(catalog, dupes, window, logger).
		WithPhotoLimits(cfg.MinUploadPhotos, cfg.MaxUploadPhotos).
		WithLookback(cfg.PhotoLookbackWindow)

	gateway, err := messaging.NewGatewayClient(messaging.GatewayConfig{
		BaseURL: cfg.GatewayBaseURL,
		APIKey:  cfg.GatewayAPIKey,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build gateway client", "error", err)
		os.Exit(1)
	}
	dispatcher := messaging.NewDispatcher(gateway, logger).
		WithRetry(cfg.DispatchMaxAttempts, cfg.DispatchBaseDelay).
		WithMediaPacing(cfg.MediaSendMinInterval).
		WithMetrics(engineMetrics)

	eng := engine.New(convStore, roster, uploads, catalog, dispatcher, logger).
		WithWindow(window).
		WithMetrics(engineMetrics).
		WithEscalator(conversation.NewEscalator(logger).
			WithNegotiationLimit(cfg.NegotiationLimitPct).
			WithErrorLimit(cfg.EscalationErrorLimit))

	if cfg.AIAPIKey != "" {
		aiClient, err := ai.NewClient(ai.Config{
			BaseURL:   cfg.AIBaseURL,
			APIKey:    cfg.AIAPIKey,
			Model:     cfg.AIModelID,
			MaxTokens: cfg.AIMaxTokens,
		}, logger)
		if err != nil {
			logger.Error("failed to build AI client", "error", err)
			os.Exit(1)
		}
		eng.WithResponder(conversation.NewResponder(aiClient, logger).WithTimeout(cfg.AITimeout))
	} else {
		logger.Warn("AI delegate not configured; canned replies only")
	}

	webhook := handlers.NewGatewayWebhookHandler(eng, tenancy.NewAccountDirectory(db), cfg.GatewayWebhookSecret, logger)
	health := handlers.NewHealthHandler(db, redisClient)

	r := router.New(&router.Config{
		Logger:         logger,
		GatewayWebhook: webhook,
		Health:         health,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
