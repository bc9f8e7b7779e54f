package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/agenda-agent/internal/scheduling"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

const (
	historyLimit  = 20
	upcomingLimit = 10
)

type historyReader interface {
	RecentMessages(ctx context.Context, tenantID string, conversationID uuid.UUID, limit int) ([]Message, error)
}

// SchedulingReader is the read side of the scheduling data the agent grounds on.
type SchedulingReader interface {
	UpcomingAppointments(ctx context.Context, tenantID, phone, fromDate string, limit int) ([]scheduling.Appointment, error)
	Company(ctx context.Context, tenantID string) (scheduling.Company, error)
	ActiveServices(ctx context.Context, tenantID string) ([]scheduling.Service, error)
	BusinessHours(ctx context.Context, tenantID string) ([]scheduling.BusinessHours, error)
	KnowledgeBase(ctx context.Context, tenantID string) ([]scheduling.KnowledgeEntry, error)
	Settings(ctx context.Context, tenantID string) (scheduling.SchedulingSettings, error)
}

// Bundle is the bounded context handed to the orchestrator.
type Bundle struct {
	TenantID       string
	ConversationID uuid.UUID
	Phone          string
	ClientName     string
	Today          string
	Location       *time.Location
	History        []Message
	Upcoming       []scheduling.Appointment
	Company        scheduling.Company
	Services       []scheduling.Service
	Hours          []scheduling.BusinessHours
	Knowledge      []scheduling.KnowledgeEntry
	Settings       scheduling.SchedulingSettings
}

// IsFirstTurn reports whether the customer has no earlier messages. The
// message being answered is already stored, so one incoming row still counts.
func (b *Bundle) IsFirstTurn() bool {
	return len(b.priorHistory()) == 0
}

// priorHistory drops the trailing copy of the message being answered.
func (b *Bundle) priorHistory() []Message {
	h := b.History
	if n := len(h); n > 0 && h[n-1].Direction == DirectionIncoming {
		return h[:n-1]
	}
	return h
}

// Assembler loads a Bundle with concurrent reads.
type Assembler struct {
	history historyReader
	sched   SchedulingReader
	logger  *logging.Logger
	now     func() time.Time
}

func NewAssembler(history historyReader, sched SchedulingReader, logger *logging.Logger) *Assembler {
	if history == nil || sched == nil {
		panic("conversation: assembler dependencies required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Assembler{history: history, sched: sched, logger: logger, now: time.Now}
}

// Assemble gathers history and business data for one turn. Only a history read
// failure is fatal; every other read degrades to its zero value.
func (a *Assembler) Assemble(ctx context.Context, conv Conversation, loc *time.Location) (*Bundle, error) {
	ctx, span := tracer.Start(ctx, "conversation.assemble_context")
	defer span.End()
	span.SetAttributes(attribute.String("agent.tenant_id", conv.TenantID))

	if loc == nil {
		loc = time.UTC
	}
	log := logging.FromContext(ctx, a.logger)
	b := &Bundle{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		Phone:          conv.Phone,
		ClientName:     conv.ClientName,
		Today:          a.now().In(loc).Format("2006-01-02"),
		Location:       loc,
		Settings:       scheduling.DefaultSettings,
	}
	tenant := conv.TenantID

	var (
		wg         sync.WaitGroup
		historyErr error
	)
	degrade := func(part string, err error) {
		if err != nil && !errors.Is(err, scheduling.ErrNotFound) {
			log.Warn("context fetch degraded", "part", part, "error", err)
		}
	}

	wg.Add(7)
	go func() {
		defer wg.Done()
		b.History, historyErr = a.history.RecentMessages(ctx, tenant, conv.ID, historyLimit)
	}()
	go func() {
		defer wg.Done()
		appts, err := a.sched.UpcomingAppointments(ctx, tenant, conv.Phone, b.Today, upcomingLimit)
		degrade("upcoming_appointments", err)
		b.Upcoming = appts
	}()
	go func() {
		defer wg.Done()
		company, err := a.sched.Company(ctx, tenant)
		degrade("company", err)
		b.Company = company
	}()
	go func() {
		defer wg.Done()
		services, err := a.sched.ActiveServices(ctx, tenant)
		degrade("services", err)
		b.Services = services
	}()
	go func() {
		defer wg.Done()
		hours, err := a.sched.BusinessHours(ctx, tenant)
		degrade("business_hours", err)
		b.Hours = hours
	}()
	go func() {
		defer wg.Done()
		kb, err := a.sched.KnowledgeBase(ctx, tenant)
		degrade("knowledge_base", err)
		b.Knowledge = kb
	}()
	go func() {
		defer wg.Done()
		settings, err := a.sched.Settings(ctx, tenant)
		if err != nil {
			degrade("scheduling_settings", err)
			return
		}
		b.Settings = settings
	}()
	wg.Wait()

	if historyErr != nil {
		span.RecordError(historyErr)
		return nil, fmt.Errorf("conversation: load history: %w", historyErr)
	}
	return b, nil
}
