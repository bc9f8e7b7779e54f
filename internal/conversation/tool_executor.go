package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/agenda-agent/internal/scheduling"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// Fallback replies used when the model calls a tool without writing any text.
const (
	replyConfirmed       = "Agendamento confirmado!"
	replyCanceled        = "Agendamento cancelado."
	replyHandoff         = "Transferindo para atendente!"
	replyToolFailed      = "Não consegui concluir essa ação agora. Pode conferir os dados para eu tentar de novo?"
	replyGeneric         = "Desculpe, não entendi. Pode me contar de outra forma como posso ajudar?"
	replyRescheduledTmpl = "Remarcado para %s %s"
)

// AppointmentMutator is the write side of the scheduling data reachable from tools.
type AppointmentMutator interface {
	SetAppointmentStatus(ctx context.Context, tenantID string, id uuid.UUID, status string) (int64, error)
	ServiceDuration(ctx context.Context, tenantID string, appointmentID uuid.UUID) (int, error)
	Reschedule(ctx context.Context, tenantID string, id uuid.UUID, date, start, end string) (int64, error)
}

// AvailabilityChecker lists free slot starts for a date.
type AvailabilityChecker interface {
	Available(ctx context.Context, tenantID, date string) ([]string, error)
}

type handoffStore interface {
	RequestHandoff(ctx context.Context, tenantID string, id uuid.UUID) error
}

type actionLogger interface {
	LogAgentAction(ctx context.Context, entry ActionLog) error
}

// HandoffNotifier alerts staff that a conversation needs a human.
type HandoffNotifier interface {
	NotifyHandoff(ctx context.Context, tenantID, phone string, conversationID uuid.UUID) error
}

// ToolResult is the outcome of executing one ToolCall.
type ToolResult struct {
	Name     string
	Args     map[string]any
	OK       bool
	Fallback string
	Err      error
}

// ToolExecutor runs decoded tool calls against tenant-scoped data.
type ToolExecutor struct {
	appointments AppointmentMutator
	calendar     AvailabilityChecker
	handoff      handoffStore
	actions      actionLogger
	notifier     HandoffNotifier
	logger       *logging.Logger
}

func NewToolExecutor(appointments AppointmentMutator, calendar AvailabilityChecker, handoff handoffStore, actions actionLogger, notifier HandoffNotifier, logger *logging.Logger) *ToolExecutor {
	if appointments == nil || calendar == nil || handoff == nil || actions == nil {
		panic("conversation: tool executor dependencies required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ToolExecutor{
		appointments: appointments,
		calendar:     calendar,
		handoff:      handoff,
		actions:      actions,
		notifier:     notifier,
		logger:       logger,
	}
}

// Execute runs call for the bundle's tenant and always writes an audit row,
// whatever the outcome.
func (e *ToolExecutor) Execute(ctx context.Context, b *Bundle, call ToolCall) ToolResult {
	res := ToolResult{Name: call.ToolName(), Args: call.Args()}
	res.Fallback, res.Err = e.run(ctx, b, call)
	res.OK = res.Err == nil
	if !res.OK {
		res.Fallback = replyToolFailed
	}

	details := map[string]any{"arguments": res.Args, "success": res.OK}
	if res.Err != nil {
		details["error"] = res.Err.Error()
	}
	if err := e.actions.LogAgentAction(ctx, ActionLog{
		TenantID:       b.TenantID,
		ConversationID: b.ConversationID,
		Action:         res.Name,
		Details:        details,
	}); err != nil {
		logging.FromContext(ctx, e.logger).Error("failed to log agent action", "action", res.Name, "error", err)
	}
	return res
}

func (e *ToolExecutor) run(ctx context.Context, b *Bundle, call ToolCall) (string, error) {
	switch c := call.(type) {
	case ConfirmAppointment:
		if err := e.setStatus(ctx, b.TenantID, c.AppointmentID, scheduling.StatusConfirmed); err != nil {
			return "", err
		}
		return replyConfirmed, nil
	case CancelAppointment:
		if err := e.setStatus(ctx, b.TenantID, c.AppointmentID, scheduling.StatusCanceled); err != nil {
			return "", err
		}
		return replyCanceled, nil
	case RescheduleAppointment:
		return e.reschedule(ctx, b.TenantID, c)
	case CheckAvailability:
		slots, err := e.calendar.Available(ctx, b.TenantID, c.Date)
		if err != nil {
			return "", err
		}
		return availabilityReply(c.Date, slots), nil
	case RequestHandoff:
		if err := e.handoff.RequestHandoff(ctx, b.TenantID, b.ConversationID); err != nil {
			return "", err
		}
		if e.notifier != nil {
			if err := e.notifier.NotifyHandoff(ctx, b.TenantID, b.Phone, b.ConversationID); err != nil {
				logging.FromContext(ctx, e.logger).Warn("handoff notification failed", "error", err)
			}
		}
		return replyHandoff, nil
	case UnknownTool:
		return "", fmt.Errorf("conversation: rejected tool call %q: %s", c.Name, c.Reason)
	default:
		return "", fmt.Errorf("conversation: unsupported tool %T", call)
	}
}

func (e *ToolExecutor) setStatus(ctx context.Context, tenantID string, id uuid.UUID, status string) error {
	n, err := e.appointments.SetAppointmentStatus(ctx, tenantID, id, status)
	if err != nil {
		return err
	}
	if n == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}

func (e *ToolExecutor) reschedule(ctx context.Context, tenantID string, c RescheduleAppointment) (string, error) {
	minutes, err := e.appointments.ServiceDuration(ctx, tenantID, c.AppointmentID)
	if err != nil {
		return "", err
	}
	end, err := scheduling.EndTimeFor(c.NewTime, minutes)
	if err != nil {
		return "", err
	}
	n, err := e.appointments.Reschedule(ctx, tenantID, c.AppointmentID, c.NewDate, c.NewTime, end)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", scheduling.ErrNotFound
	}
	return fmt.Sprintf(replyRescheduledTmpl, displayDate(c.NewDate), c.NewTime), nil
}

func availabilityReply(date string, slots []string) string {
	if len(slots) == 0 {
		return fmt.Sprintf("Não há horários disponíveis em %s.", displayDate(date))
	}
	if len(slots) > scheduling.MaxSurfacedSlots {
		slots = slots[:scheduling.MaxSurfacedSlots]
	}
	return fmt.Sprintf("Horários disponíveis em %s: %s", displayDate(date), strings.Join(slots, ", "))
}

// displayDate renders YYYY-MM-DD as DD/MM/YYYY.
func displayDate(date string) string {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return d.Format("02/01/2006")
}

// isNotFound reports a tool failure caused by an id outside the tenant.
func isNotFound(err error) bool {
	return errors.Is(err, scheduling.ErrNotFound)
}
