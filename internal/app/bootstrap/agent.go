package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/wolfman30/agenda-agent/internal/archive"
	appconfig "github.com/wolfman30/agenda-agent/internal/config"
	"github.com/wolfman30/agenda-agent/internal/conversation"
	"github.com/wolfman30/agenda-agent/internal/notify"
	"github.com/wolfman30/agenda-agent/internal/observability/metrics"
	"github.com/wolfman30/agenda-agent/internal/scheduling"
	"github.com/wolfman30/agenda-agent/internal/support"
	"github.com/wolfman30/agenda-agent/internal/whatsapp"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// ChatClient is the chat completion surface shared by the orchestrator and the sweep.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AgentDeps carries the infrastructure handles the agent is assembled from.
type AgentDeps struct {
	Pool    scheduling.PgxPool
	SQL     *sql.DB
	Redis   *redis.Client
	LLM     ChatClient
	Email   notify.EmailSender
	Archive *archive.Store
	// Transport overrides the WhatsApp HTTP client built from config.
	Transport whatsapp.Transport
	Metrics   *metrics.AgentMetrics
	Logger    *logging.Logger
}

// Agent is the assembled conversational agent plus the pieces the HTTP and
// sweeper binaries expose directly.
type Agent struct {
	Pipeline      *conversation.Pipeline
	Settings      *scheduling.SettingsCache
	Conversations *conversation.Store
	Notifier      *notify.Service
	Sweep         *support.ComplaintSweep
}

// BuildEmailSender picks the operator alert channel. "auto" prefers SendGrid,
// then SES, then the logging stub.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}
	sendgridReady := strings.TrimSpace(cfg.SendGridAPIKey) != "" && strings.TrimSpace(cfg.SendGridFromEmail) != ""
	sesReady := sesClient != nil && strings.TrimSpace(cfg.SESFromEmail) != ""

	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	switch {
	case (provider == "sendgrid" || provider == "auto" || provider == "") && sendgridReady:
		logger.Info("email notifications via sendgrid", "from", cfg.SendGridFromEmail)
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case (provider == "ses" || provider == "auto" || provider == "") && sesReady:
		logger.Info("email notifications via ses", "from", cfg.SESFromEmail)
		return notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	if provider != "stub" && provider != "auto" && provider != "" {
		logger.Warn("email provider not configured; using stub", "provider", provider)
	}
	return notify.NewStubEmailSender(logger)
}

// contacts resolves alert recipients from the cached settings and the company row.
type contacts struct {
	settings *scheduling.SettingsCache
	repo     *scheduling.Repository
}

func (c contacts) AgentSettings(ctx context.Context, tenantID string) (scheduling.AgentSettings, error) {
	return c.settings.AgentSettings(ctx, tenantID)
}

func (c contacts) Company(ctx context.Context, tenantID string) (scheduling.Company, error) {
	return c.repo.Company(ctx, tenantID)
}

// core holds the stores shared by the pipeline and the sweep.
type core struct {
	repo     *scheduling.Repository
	settings *scheduling.SettingsCache
	store    *conversation.Store
	notifier *notify.Service
	logger   *logging.Logger
}

func buildCore(cfg *appconfig.Config, deps AgentDeps) (*core, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.Pool == nil || deps.SQL == nil {
		return nil, fmt.Errorf("bootstrap: database is required")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("bootstrap: llm client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	repo := scheduling.NewRepository(deps.Pool)
	settings := scheduling.NewSettingsCache(repo, deps.Redis, cfg.SettingsCacheTTL, logger)
	return &core{
		repo:     repo,
		settings: settings,
		store:    conversation.NewStore(deps.Pool),
		notifier: notify.NewService(deps.Email, contacts{settings: settings, repo: repo}, logger),
		logger:   logger,
	}, nil
}

func (c *core) sweep(cfg *appconfig.Config, deps AgentDeps) *support.ComplaintSweep {
	sweepDeps := support.SweepDeps{
		Conversations: c.store,
		Tickets:       support.NewTicketStore(deps.SQL, c.logger),
		LLM:           deps.LLM,
		Notifier:      c.notifier,
		Timezones:     c.settings,
		Redis:         deps.Redis,
		Metrics:       deps.Metrics,
		Logger:        c.logger,
	}
	if deps.Archive != nil {
		sweepDeps.Archive = deps.Archive
	}
	return support.NewComplaintSweep(sweepDeps, support.SweepConfig{
		Interval:   cfg.ComplaintSweepInterval,
		Inactivity: cfg.ComplaintInactivity,
		BatchSize:  cfg.ComplaintSweepBatch,
		Model:      cfg.LLMModel,
	})
}

// BuildComplaintSweep wires only the complaint sweep, for the standalone sweeper.
func BuildComplaintSweep(cfg *appconfig.Config, deps AgentDeps) (*support.ComplaintSweep, error) {
	c, err := buildCore(cfg, deps)
	if err != nil {
		return nil, err
	}
	return c.sweep(cfg, deps), nil
}

// BuildAgent wires the inbound pipeline and the complaint sweep from config.
func BuildAgent(cfg *appconfig.Config, deps AgentDeps) (*Agent, error) {
	c, err := buildCore(cfg, deps)
	if err != nil {
		return nil, err
	}
	logger := c.logger

	transport := deps.Transport
	if transport == nil {
		client, err := whatsapp.New(whatsapp.Config{
			BaseURL:    cfg.WhatsAppAPIURL,
			Timeout:    cfg.WhatsAppTimeout,
			MaxRetries: cfg.WhatsAppMaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: whatsapp client: %w", err)
		}
		transport = client
	}

	calendar := scheduling.NewCalendar(c.repo, nil)
	events := conversation.NewEventLogger(logger)

	tools := conversation.NewToolExecutor(c.repo, calendar, c.store, c.store, c.notifier, logger)
	orchestrator := conversation.NewOrchestrator(deps.LLM, tools, conversation.OrchestratorConfig{
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
	}, events, deps.Metrics, logger)

	dispatcher := whatsapp.NewDispatcher(transport, cfg.HumanizeReplies, logger,
		whatsapp.WithChunkObserver(deps.Metrics.ObserveOutbound))

	pipeline := conversation.NewPipeline(conversation.PipelineDeps{
		Settings:     c.settings,
		Store:        c.store,
		Locker:       conversation.NewLocker(),
		Dedup:        conversation.NewDedupGuard(c.store, deps.Redis, logger),
		Detector:     conversation.NewComplaintDetector(logger),
		Assembler:    conversation.NewAssembler(c.store, c.repo, logger),
		Orchestrator: orchestrator,
		Dispatcher:   dispatcher,
		Events:       events,
		Metrics:      deps.Metrics,
		Logger:       logger,
		DefaultToken: cfg.WhatsAppDefaultToken,
	})

	return &Agent{
		Pipeline:      pipeline,
		Settings:      c.settings,
		Conversations: c.store,
		Notifier:      c.notifier,
		Sweep:         c.sweep(cfg, deps),
	}, nil
}
