package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/agenda-agent/pkg/logging"
)

var tracer = otel.Tracer("agenda.internal.notify")

const defaultFromName = "Agenda"

// Alert kinds, used to tag outgoing mail for provider-side filtering.
const (
	KindHandoff = "handoff"
	KindTicket  = "complaint_ticket"
)

// EmailSender delivers one operator alert.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one operator alert e-mail.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // plain text
	HTML    string // optional
	// TenantID and Kind are attached as provider metadata, never rendered.
	TenantID string
	Kind     string
}

func senderName(name string) string {
	if strings.TrimSpace(name) == "" {
		return defaultFromName
	}
	return name
}

// SendGridSender delivers alerts through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  senderName(cfg.FromName),
		logger:    logger,
	}
}

// buildMessage renders msg as a v3 mail with the alert kind as category and
// the tenant as a custom arg.
func (s *SendGridSender) buildMessage(msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	if msg.TenantID != "" {
		p.SetCustomArg("tenant_id", msg.TenantID)
	}
	m.AddPersonalizations(p)

	m.AddContent(mail.NewContent("text/plain", msg.Body))
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	if msg.Kind != "" {
		m.AddCategories(msg.Kind)
	}
	return m
}

// Send delivers msg via SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	ctx, span := tracer.Start(ctx, "notify.sendgrid")
	defer span.End()
	span.SetAttributes(attribute.String("notify.kind", msg.Kind))

	response, err := s.client.SendWithContext(ctx, s.buildMessage(msg))
	if err != nil {
		span.RecordError(err)
		s.logger.Error("sendgrid send failed", "error", err, "tenant_id", msg.TenantID, "kind", msg.Kind)
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected alert", "status", response.StatusCode, "body", truncate(response.Body, 200),
			"tenant_id", msg.TenantID, "kind", msg.Kind)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("alert sent via sendgrid", "tenant_id", msg.TenantID, "kind", msg.Kind, "status", response.StatusCode)
	return nil
}

// StubEmailSender logs alerts instead of sending them and keeps the last few
// for inspection.
type StubEmailSender struct {
	logger *logging.Logger
	mu     sync.Mutex
	sent   []EmailMessage
}

const stubKeep = 20

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	if len(s.sent) > stubKeep {
		s.sent = s.sent[len(s.sent)-stubKeep:]
	}
	s.mu.Unlock()
	logging.FromContext(ctx, s.logger).Info("email disabled; alert not sent",
		"tenant_id", msg.TenantID, "kind", msg.Kind, "subject", msg.Subject, "body_preview", truncate(msg.Body, 80))
	return nil
}

// Sent returns a copy of the retained alerts, oldest first.
func (s *StubEmailSender) Sent() []EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EmailMessage(nil), s.sent...)
}
