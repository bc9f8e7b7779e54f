// Command complaint-sweeper runs the complaint sweep on its own schedule so
// API replicas can be scaled without multiplying sweep work.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/agenda-agent/cmd/mainconfig"
	"github.com/wolfman30/agenda-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/agenda-agent/internal/config"
	"github.com/wolfman30/agenda-agent/internal/conversation"
	"github.com/wolfman30/agenda-agent/internal/observability/metrics"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).With("component", "complaint-sweeper")
	logger.Info("starting complaint sweeper",
		"env", cfg.Env,
		"interval", cfg.ComplaintSweepInterval.String(),
		"inactivity", cfg.ComplaintInactivity.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.BuildDatabase(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Warn("redis disabled; sweep lease not enforced across replicas")
	} else {
		defer redisClient.Close()
	}

	awsClients, err := mainconfig.LoadAWSClients(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	sweep, err := bootstrap.BuildComplaintSweep(cfg, bootstrap.AgentDeps{
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
		Metrics: metrics.NewAgentMetrics(reg),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build complaint sweep", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           opsRouter(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", "error", err)
		}
	}()

	if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("complaint sweeper stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("complaint sweeper stopped")
}

func opsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}
