package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/agenda-agent/internal/scheduling"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// ContactSource resolves who to alert for a tenant.
type ContactSource interface {
	AgentSettings(ctx context.Context, tenantID string) (scheduling.AgentSettings, error)
	Company(ctx context.Context, tenantID string) (scheduling.Company, error)
}

// TicketAlert is the summary of a complaint ticket sent to staff.
type TicketAlert struct {
	TicketID    uuid.UUID
	TenantID    string
	Phone       string
	ClientName  string
	Category    string
	Severity    string
	Summary     string
	Occurrences int
	ArchiveKey  string
	Created     bool
}

// Service sends operator alerts for a tenant: human handoff requests and
// complaint tickets.
type Service struct {
	email    EmailSender
	contacts ContactSource
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates a notification service. A nil sender falls back to the stub.
func NewService(email EmailSender, contacts ContactSource, logger *logging.Logger) *Service {
	if contacts == nil {
		panic("notify: contact source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	return &Service{
		email:    email,
		contacts: contacts,
		logger:   logger,
		now:      time.Now,
	}
}

// recipient returns the tenant's notification address and display name.
// An empty address means the tenant opted out of e-mail alerts.
func (s *Service) recipient(ctx context.Context, tenantID string) (email, companyName string, err error) {
	settings, err := s.contacts.AgentSettings(ctx, tenantID)
	if err != nil {
		return "", "", fmt.Errorf("notify: load agent settings: %w", err)
	}
	email = strings.TrimSpace(settings.NotificationEmail)
	if email == "" {
		return "", "", nil
	}
	if company, err := s.contacts.Company(ctx, tenantID); err == nil {
		companyName = company.Name
	}
	return email, companyName, nil
}

// NotifyHandoff alerts staff that a client asked for a human.
func (s *Service) NotifyHandoff(ctx context.Context, tenantID, phone string, conversationID uuid.UUID) error {
	to, companyName, err := s.recipient(ctx, tenantID)
	if err != nil {
		return err
	}
	if to == "" {
		s.logger.Debug("notify: no notification email, skipping handoff alert", "tenant_id", tenantID)
		return nil
	}

	subject := fmt.Sprintf("Atendimento humano solicitado - %s", phone)
	var sb strings.Builder
	if companyName != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", companyName))
	}
	sb.WriteString("Um cliente pediu para falar com um atendente no WhatsApp.\n\n")
	sb.WriteString(fmt.Sprintf("Telefone: %s\n", phone))
	sb.WriteString(fmt.Sprintf("Conversa: %s\n", conversationID))
	sb.WriteString(fmt.Sprintf("Horário: %s\n\n", s.now().Format("02/01/2006 15:04")))
	sb.WriteString("O assistente não responderá mais a esta conversa.")

	if err := s.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: sb.String(), TenantID: tenantID, Kind: KindHandoff}); err != nil {
		return fmt.Errorf("notify: send handoff alert: %w", err)
	}
	s.logger.Info("handoff alert sent", "tenant_id", tenantID, "conversation_id", conversationID)
	return nil
}

// NotifyTicket alerts staff about a new or enriched complaint ticket.
func (s *Service) NotifyTicket(ctx context.Context, alert TicketAlert) error {
	to, companyName, err := s.recipient(ctx, alert.TenantID)
	if err != nil {
		return err
	}
	if to == "" {
		return nil
	}

	subject, body := formatTicketEmail(alert, companyName)
	if err := s.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: body, TenantID: alert.TenantID, Kind: KindTicket}); err != nil {
		return fmt.Errorf("notify: send ticket alert: %w", err)
	}
	s.logger.Info("ticket alert sent", "tenant_id", alert.TenantID, "ticket_id", alert.TicketID, "created", alert.Created)
	return nil
}

func formatTicketEmail(a TicketAlert, companyName string) (subject, body string) {
	verb := "Nova reclamação"
	if !a.Created {
		verb = "Reclamação atualizada"
	}
	subject = fmt.Sprintf("[%s] %s - %s", strings.ToUpper(a.Severity), verb, a.Category)

	var sb strings.Builder
	if companyName != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", companyName))
	}
	sb.WriteString(fmt.Sprintf("Ticket: %s\n", a.TicketID))
	sb.WriteString(fmt.Sprintf("Categoria: %s\n", a.Category))
	sb.WriteString(fmt.Sprintf("Gravidade: %s\n", a.Severity))
	sb.WriteString(fmt.Sprintf("Telefone: %s\n", a.Phone))
	if a.ClientName != "" {
		sb.WriteString(fmt.Sprintf("Cliente: %s\n", a.ClientName))
	}
	if a.Occurrences > 1 {
		sb.WriteString(fmt.Sprintf("Ocorrências hoje: %d\n", a.Occurrences))
	}
	sb.WriteString("\n--- Resumo ---\n")
	sb.WriteString(a.Summary)
	sb.WriteString("\n")
	if a.ArchiveKey != "" {
		sb.WriteString(fmt.Sprintf("\nTranscrição arquivada em: %s\n", a.ArchiveKey))
	}
	return subject, sb.String()
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
