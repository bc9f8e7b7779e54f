package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/agenda-agent/internal/archive"
	"github.com/wolfman30/agenda-agent/internal/conversation"
	"github.com/wolfman30/agenda-agent/internal/notify"
	"github.com/wolfman30/agenda-agent/internal/observability/metrics"
	"github.com/wolfman30/agenda-agent/internal/scheduling"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

const (
	defaultSweepInterval = time.Minute
	defaultInactivity    = 10 * time.Minute
	defaultSweepBatch    = 50
	sweepLeaseKey        = "complaint-sweep:lease"
)

const extractionPrompt = `Você analisa conversas de WhatsApp entre um cliente e o atendimento de uma empresa.
O cliente fez uma reclamação. Leia a transcrição e responda SOMENTE com um objeto JSON:
{"summary": "resumo objetivo da reclamação em até 3 frases",
 "category": "SERVICE_QUALITY | DELAY | BILLING | STAFF_CONDUCT | GENERAL",
 "severity": "low | medium | high",
 "client_name": "nome do cliente se ele se identificou, senão vazio"}`

// ConversationSource is the slice of the conversation store the sweep reads and updates.
type ConversationSource interface {
	ComplaintPendingTenants(ctx context.Context, cutoff time.Time) ([]string, error)
	ListComplaintPending(ctx context.Context, tenantID string, cutoff time.Time, limit int) ([]conversation.Conversation, error)
	Transcript(ctx context.Context, tenantID string, conversationID uuid.UUID) ([]conversation.Message, error)
	SetClientName(ctx context.Context, tenantID string, id uuid.UUID, name string) error
	ClearIntent(ctx context.Context, tenantID string, id uuid.UUID) error
}

type ticketWriter interface {
	Record(ctx context.Context, in Ticket) (*Ticket, bool, error)
	SetArchiveKey(ctx context.Context, tenantID string, id uuid.UUID, key string) error
}

type transcriptArchiver interface {
	Enabled() bool
	ArchiveTicket(ctx context.Context, record *archive.TicketRecord) (string, error)
}

// TicketNotifier alerts staff about a recorded ticket.
type TicketNotifier interface {
	NotifyTicket(ctx context.Context, alert notify.TicketAlert) error
}

// TimezoneSource resolves the tenant's calendar for ticket dating.
type TimezoneSource interface {
	AgentSettings(ctx context.Context, tenantID string) (scheduling.AgentSettings, error)
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// SweepConfig tunes the complaint sweep.
type SweepConfig struct {
	Interval   time.Duration
	Inactivity time.Duration
	BatchSize  int
	Model      string
}

// SweepDeps wires the complaint sweep.
type SweepDeps struct {
	Conversations ConversationSource
	Tickets       ticketWriter
	LLM           chatClient
	Archive       transcriptArchiver
	Notifier      TicketNotifier
	Timezones     TimezoneSource
	Redis         *redis.Client
	Metrics       *metrics.AgentMetrics
	Logger        *logging.Logger
}

// SweepStats summarizes one sweep pass.
type SweepStats struct {
	LeaseHeld bool
	Scanned   int
	Created   int
	Enriched  int
	Failed    int
}

// Extraction is the structured reading of a complaint transcript.
type Extraction struct {
	Summary    string
	Category   string
	Severity   string
	ClientName string
}

// ComplaintSweep turns conversations flagged complaint_pending into tickets
// once the client has gone quiet.
type ComplaintSweep struct {
	deps  SweepDeps
	cfg   SweepConfig
	owner string
	now   func() time.Time
}

// NewComplaintSweep builds the sweep. Archive, Notifier, Timezones and Redis are optional.
func NewComplaintSweep(deps SweepDeps, cfg SweepConfig) *ComplaintSweep {
	if deps.Conversations == nil || deps.Tickets == nil || deps.LLM == nil {
		panic("support: complaint sweep dependencies required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Inactivity <= 0 {
		cfg.Inactivity = defaultInactivity
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatch
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &ComplaintSweep{deps: deps, cfg: cfg, owner: uuid.NewString(), now: time.Now}
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *ComplaintSweep) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.deps.Logger.Error("complaint sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep pass. A conversation that fails keeps its
// complaint_pending intent and is retried on the next pass.
func (s *ComplaintSweep) RunOnce(ctx context.Context) (SweepStats, error) {
	ctx, span := ticketTracer.Start(ctx, "support.complaint_sweep")
	defer span.End()

	var stats SweepStats
	if !s.acquireLease(ctx) {
		s.deps.Logger.Debug("complaint sweep lease held elsewhere, skipping tick")
		return stats, nil
	}
	stats.LeaseHeld = true

	cutoff := s.now().Add(-s.cfg.Inactivity)
	tenants, err := s.deps.Conversations.ComplaintPendingTenants(ctx, cutoff)
	if err != nil {
		return stats, fmt.Errorf("support: list complaint tenants: %w", err)
	}

	for _, tenantID := range tenants {
		convs, err := s.deps.Conversations.ListComplaintPending(ctx, tenantID, cutoff, s.cfg.BatchSize)
		if err != nil {
			s.deps.Logger.Error("list complaint conversations failed", "tenant_id", tenantID, "error", err)
			stats.Failed++
			continue
		}
		loc := s.location(ctx, tenantID)
		for _, conv := range convs {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Scanned++
			created, err := s.process(ctx, conv, loc)
			switch {
			case err != nil:
				stats.Failed++
				s.deps.Metrics.ObserveTicket("failed")
				s.deps.Logger.Error("complaint extraction failed",
					"tenant_id", tenantID, "conversation_id", conv.ID, "error", err)
			case created:
				stats.Created++
			default:
				stats.Enriched++
			}
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.scanned", stats.Scanned),
		attribute.Int("sweep.failed", stats.Failed),
	)
	if stats.Scanned > 0 {
		s.deps.Logger.Info("complaint sweep finished",
			"scanned", stats.Scanned, "created", stats.Created,
			"enriched", stats.Enriched, "failed", stats.Failed)
	}
	return stats, nil
}

// acquireLease claims the tick for this process. Without Redis every process sweeps.
func (s *ComplaintSweep) acquireLease(ctx context.Context) bool {
	if s.deps.Redis == nil {
		return true
	}
	ttl := s.cfg.Interval - time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := s.deps.Redis.SetNX(ctx, sweepLeaseKey, s.owner, ttl).Result()
	if err != nil {
		s.deps.Logger.Warn("complaint sweep lease unavailable, sweeping anyway", "error", err)
		return true
	}
	return ok
}

func (s *ComplaintSweep) location(ctx context.Context, tenantID string) *time.Location {
	if s.deps.Timezones == nil {
		return time.UTC
	}
	settings, err := s.deps.Timezones.AgentSettings(ctx, tenantID)
	if err != nil {
		return time.UTC
	}
	return scheduling.Location(settings.Timezone)
}

func (s *ComplaintSweep) process(ctx context.Context, conv conversation.Conversation, loc *time.Location) (bool, error) {
	log := s.deps.Logger.With("tenant_id", conv.TenantID, "conversation_id", conv.ID)

	msgs, err := s.deps.Conversations.Transcript(ctx, conv.TenantID, conv.ID)
	if err != nil {
		return false, err
	}
	if len(msgs) == 0 {
		return false, s.deps.Conversations.ClearIntent(ctx, conv.TenantID, conv.ID)
	}

	ext, err := s.Extract(ctx, msgs)
	if err != nil {
		return false, err
	}

	day := conv.LastMessageAt
	if day.IsZero() {
		day = s.now()
	}
	ticket, created, err := s.deps.Tickets.Record(ctx, Ticket{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		Phone:          conv.Phone,
		ClientName:     firstNonEmpty(ext.ClientName, conv.ClientName),
		Category:       ext.Category,
		Severity:       ext.Severity,
		Summary:        ext.Summary,
		TicketDate:     day.In(loc).Format("2006-01-02"),
	})
	if err != nil {
		return false, err
	}

	if s.deps.Archive != nil && s.deps.Archive.Enabled() {
		key, err := s.deps.Archive.ArchiveTicket(ctx, archiveRecord(ticket, msgs))
		if err != nil {
			log.Warn("transcript archive failed", "error", err)
		} else if key != "" {
			if err := s.deps.Tickets.SetArchiveKey(ctx, conv.TenantID, ticket.ID, key); err != nil {
				log.Warn("failed to store archive key", "error", err)
			}
			ticket.ArchiveKey = key
		}
	}

	if ext.ClientName != "" && conv.ClientName == "" {
		if err := s.deps.Conversations.SetClientName(ctx, conv.TenantID, conv.ID, ext.ClientName); err != nil {
			log.Warn("failed to store client name", "error", err)
		}
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyTicket(ctx, notify.TicketAlert{
			TicketID:    ticket.ID,
			TenantID:    ticket.TenantID,
			Phone:       ticket.Phone,
			ClientName:  ticket.ClientName,
			Category:    ticket.Category,
			Severity:    ticket.Severity,
			Summary:     ticket.Summary,
			Occurrences: ticket.Occurrences,
			ArchiveKey:  ticket.ArchiveKey,
			Created:     created,
		}); err != nil {
			log.Warn("ticket alert failed", "error", err)
		}
	}

	if err := s.deps.Conversations.ClearIntent(ctx, conv.TenantID, conv.ID); err != nil {
		return created, err
	}

	action := "enriched"
	if created {
		action = "created"
	}
	s.deps.Metrics.ObserveTicket(action)
	return created, nil
}

// Extract asks the model for a structured reading of the transcript.
func (s *ComplaintSweep) Extract(ctx context.Context, msgs []conversation.Message) (Extraction, error) {
	resp, err := s.deps.LLM.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: renderTranscript(msgs)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", conversation.ErrLLMUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Extraction{}, fmt.Errorf("%w: empty choices", conversation.ErrLLMUnavailable)
	}
	return ParseExtraction(resp.Choices[0].Message.Content)
}

// ErrBadExtraction means the model reply could not be read as a complaint.
var ErrBadExtraction = errors.New("support: unreadable complaint extraction")

// ParseExtraction reads the model's JSON reply, tolerating code fences.
func ParseExtraction(content string) (Extraction, error) {
	raw := strings.TrimSpace(content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return Extraction{}, ErrBadExtraction
	}
	doc := gjson.Parse(raw)
	ext := Extraction{
		Summary:    strings.TrimSpace(doc.Get("summary").String()),
		Category:   NormalizeCategory(doc.Get("category").String()),
		Severity:   NormalizeSeverity(doc.Get("severity").String()),
		ClientName: strings.TrimSpace(doc.Get("client_name").String()),
	}
	if ext.Summary == "" {
		return Extraction{}, ErrBadExtraction
	}
	return ext, nil
}

func renderTranscript(msgs []conversation.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		who := "Cliente"
		if m.Direction == conversation.DirectionOutgoing {
			who = "Atendente"
		}
		sb.WriteString(fmt.Sprintf("[%s] %s: %s\n", m.CreatedAt.Format("02/01 15:04"), who, m.Content))
	}
	return sb.String()
}

func archiveRecord(t *Ticket, msgs []conversation.Message) *archive.TicketRecord {
	out := make([]archive.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, archive.Message{Direction: m.Direction, Content: m.Content, Timestamp: m.CreatedAt})
	}
	return &archive.TicketRecord{
		TicketID:       t.ID.String(),
		TenantID:       t.TenantID,
		ConversationID: t.ConversationID.String(),
		PhoneHash:      archive.HashPhone(t.Phone),
		Category:       t.Category,
		Severity:       t.Severity,
		Summary:        t.Summary,
		Messages:       out,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
