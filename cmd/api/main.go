package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/agenda-agent/cmd/mainconfig"
	"github.com/wolfman30/agenda-agent/internal/api/router"
	"github.com/wolfman30/agenda-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/agenda-agent/internal/config"
	"github.com/wolfman30/agenda-agent/internal/conversation"
	"github.com/wolfman30/agenda-agent/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/agenda-agent/internal/http/middleware"
	"github.com/wolfman30/agenda-agent/internal/observability/metrics"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting agenda agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := bootstrap.BuildDatabase(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Warn("redis disabled; dedup, settings cache and sweep lease fall back to postgres")
	} else {
		defer redisClient.Close()
	}

	awsClients, err := mainconfig.LoadAWSClients(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	metricsHandler, agentMetrics := setupMetrics()

	agent, err := bootstrap.BuildAgent(cfg, bootstrap.AgentDeps{
		Pool:  db.Pool,
		SQL:   db.SQL,
		Redis: redisClient,
		LLM: conversation.NewOpenAIClient(conversation.LLMConfig{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Timeout: cfg.LLMTimeout,
		}),
		Email:   bootstrap.BuildEmailSender(cfg, awsClients.SES, logger),
		Archive: awsClients.Archive,
		Metrics: agentMetrics,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build agent", "error", err)
		os.Exit(1)
	}

	// Setup router
	r := router.New(&router.Config{
		Logger:          logger,
		WhatsAppWebhook: handlers.NewWhatsAppWebhookHandler(agent.Pipeline, logger),
		Admin:           handlers.NewAdminHandler(agent.Settings, agent.Conversations, agent.Sweep, logger),
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  metricsHandler,
		Readiness:       readinessChecks(db.Pool.Ping, redisClient),
		WebhookLimiter:  httpmiddleware.NewRateLimiter(ctx, cfg.WebhookRateLimit, cfg.WebhookRateBurst),
	})
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes disabled")
	}

	srv := newServer(cfg, r)

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// In-flight webhooks may still be pacing reply chunks.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	stop()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// newServer sizes timeouts for synchronous webhooks: one request covers the
// model call plus humanized chunk delivery.
func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
}

func setupMetrics() (http.Handler, *metrics.AgentMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewAgentMetrics(reg)
}

func readinessChecks(pingDB func(context.Context) error, redisClient *redis.Client) []router.ReadinessCheck {
	checks := []router.ReadinessCheck{{Name: "postgres", Check: pingDB}}
	if redisClient != nil {
		checks = append(checks, router.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	return checks
}
