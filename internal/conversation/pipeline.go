package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/agenda-agent/internal/observability/metrics"
	"github.com/wolfman30/agenda-agent/internal/scheduling"
	"github.com/wolfman30/agenda-agent/internal/whatsapp"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// Skip reasons produced after normalization.
const (
	SkipDisabled  = "disabled"
	SkipHandoff   = "handoff"
	SkipDuplicate = "duplicate"
)

// Result statuses.
const (
	ResultSkipped    = "skipped"
	ResultReplied    = "replied"
	ResultSendFailed = "send_failed"
)

// Result describes what the pipeline did with one inbound event.
type Result struct {
	Status         string
	Skipped        string
	ConversationID uuid.UUID
	Reply          string
	Chunks         []string
}

// SettingsSource gates processing per tenant.
type SettingsSource interface {
	AgentSettings(ctx context.Context, tenantID string) (scheduling.AgentSettings, error)
}

type pipelineStore interface {
	FindOrCreateActive(ctx context.Context, tenantID, phone string) (Conversation, bool, error)
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	TouchActivity(ctx context.Context, tenantID string, id uuid.UUID) error
	SetIntent(ctx context.Context, tenantID string, id uuid.UUID, intent string) error
}

type responder interface {
	Respond(ctx context.Context, b *Bundle, incoming string) (*Reply, error)
}

type replyDispatcher interface {
	Dispatch(ctx context.Context, inst whatsapp.Instance, phone, reply string) ([]string, error)
}

// PipelineDeps wires the pipeline stages.
type PipelineDeps struct {
	Settings     SettingsSource
	Store        pipelineStore
	Locker       *Locker
	Dedup        *DedupGuard
	Detector     *ComplaintDetector
	Assembler    *Assembler
	Orchestrator responder
	Dispatcher   replyDispatcher
	Events       *EventLogger
	Metrics      *metrics.AgentMetrics
	Logger       *logging.Logger
	// DefaultToken authenticates sends for tenants without their own instance token.
	DefaultToken string
}

// Pipeline is the single entry point for inbound WhatsApp messages:
// gate, lock, conversation, dedup, record, context, model, record, dispatch.
type Pipeline struct {
	deps PipelineDeps
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Settings == nil || deps.Store == nil || deps.Dedup == nil || deps.Assembler == nil ||
		deps.Orchestrator == nil || deps.Dispatcher == nil {
		panic("conversation: pipeline dependencies required")
	}
	if deps.Locker == nil {
		deps.Locker = NewLocker()
	}
	if deps.Detector == nil {
		deps.Detector = NewComplaintDetector(deps.Logger)
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Events == nil {
		deps.Events = NewEventLogger(deps.Logger)
	}
	return &Pipeline{deps: deps}
}

// Process handles one normalized inbound event. Filtered events come back as a
// skipped Result with a nil error; a non-nil error means nothing was answered.
func (p *Pipeline) Process(ctx context.Context, evt whatsapp.InboundEvent) (res Result, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "conversation.pipeline")
	defer span.End()
	span.SetAttributes(attribute.String("agent.tenant_id", evt.TenantID))

	log := p.deps.Logger.With("tenant_id", evt.TenantID, "phone", evt.Phone)
	ctx = logging.WithContext(ctx, log)
	defer func() {
		status := res.Status
		if err != nil {
			status = "error"
			span.RecordError(err)
		} else if res.Skipped != "" {
			status = "skipped_" + res.Skipped
		}
		p.deps.Metrics.ObserveInbound(status, time.Since(start).Seconds())
	}()

	settings, err := p.deps.Settings.AgentSettings(ctx, evt.TenantID)
	if err != nil {
		return Result{}, fmt.Errorf("conversation: load agent settings: %w", err)
	}
	if !settings.Enabled {
		return Result{Status: ResultSkipped, Skipped: SkipDisabled}, nil
	}

	unlock := p.deps.Locker.Lock(evt.TenantID, evt.Phone)
	defer unlock()

	conv, created, err := p.deps.Store.FindOrCreateActive(ctx, evt.TenantID, evt.Phone)
	if err != nil {
		return Result{}, err
	}
	convID := conv.ID.String()
	log = log.With("conversation_id", convID)
	ctx = logging.WithContext(ctx, log)

	if conv.HandoffRequested || conv.Status == StatusHandoff {
		return Result{Status: ResultSkipped, Skipped: SkipHandoff, ConversationID: conv.ID}, nil
	}

	dup, err := p.deps.Dedup.IsDuplicate(ctx, evt.TenantID, conv.ID, evt.Text)
	if err != nil {
		return Result{}, err
	}
	if dup {
		p.deps.Events.DuplicateSkipped(ctx, convID, evt.TenantID)
		return Result{Status: ResultSkipped, Skipped: SkipDuplicate, ConversationID: conv.ID}, nil
	}

	if _, err := p.deps.Store.AppendMessage(ctx, Message{
		ConversationID: conv.ID,
		TenantID:       evt.TenantID,
		Direction:      DirectionIncoming,
		MessageType:    MessageTypeText,
		Content:        evt.Text,
	}); err != nil {
		return Result{}, err
	}
	if err := p.deps.Store.TouchActivity(ctx, evt.TenantID, conv.ID); err != nil {
		return Result{}, err
	}
	p.deps.Events.MessageReceived(ctx, convID, evt.TenantID, evt.Text, created)

	if complaint := p.deps.Detector.DetectComplaint(ctx, evt.Text); complaint.Detected && conv.CurrentIntent != IntentComplaintPending {
		if err := p.deps.Store.SetIntent(ctx, evt.TenantID, conv.ID, IntentComplaintPending); err != nil {
			log.Warn("failed to flag complaint", "error", err)
		} else {
			p.deps.Events.ComplaintFlagged(ctx, convID, evt.TenantID, complaint.Type, complaint.Confidence)
		}
	}

	bundle, err := p.deps.Assembler.Assemble(ctx, conv, scheduling.Location(settings.Timezone))
	if err != nil {
		return Result{}, err
	}

	reply, err := p.deps.Orchestrator.Respond(ctx, bundle, evt.Text)
	if err != nil {
		p.deps.Events.ErrorOccurred(ctx, convID, evt.TenantID, "orchestrate", err)
		return Result{}, err
	}

	if _, err := p.deps.Store.AppendMessage(ctx, Message{
		ConversationID: conv.ID,
		TenantID:       evt.TenantID,
		Direction:      DirectionOutgoing,
		MessageType:    MessageTypeText,
		Content:        reply.Text,
	}); err != nil {
		return Result{}, err
	}

	inst := whatsapp.Instance{Name: settings.InstanceName, Token: settings.InstanceToken}
	if inst.Token == "" {
		inst.Token = p.deps.DefaultToken
	}
	chunks, sendErr := p.deps.Dispatcher.Dispatch(ctx, inst, evt.Phone, reply.Text)
	res = Result{Status: ResultReplied, ConversationID: conv.ID, Reply: reply.Text, Chunks: chunks}
	if sendErr != nil {
		log.Error("reply dispatch failed", "error", sendErr, "chunks_sent", len(chunks))
		p.deps.Events.ErrorOccurred(ctx, convID, evt.TenantID, "dispatch", sendErr)
		res.Status = ResultSendFailed
		return res, nil
	}
	p.deps.Events.ReplySent(ctx, convID, evt.TenantID, len(chunks), len(reply.Text))
	return res, nil
}
