package notify

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// sesAPI is the SES call used by SESSender.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers alerts through Amazon SES v2.
type SESSender struct {
	client    sesAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	FromEmail string
	FromName  string
}

// NewSESSender returns nil when client is nil.
func NewSESSender(client *sesv2.Client, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	return newSESSender(client, cfg, logger)
}

func newSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SESSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  senderName(cfg.FromName),
		logger:    logger,
	}
}

// SES tag values accept only ASCII letters, digits, '_', '-', '.' and '@'.
var sesTagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_.@-]`)

func sesTags(msg EmailMessage) []types.MessageTag {
	var tags []types.MessageTag
	if msg.Kind != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("kind"), Value: aws.String(sesTagUnsafe.ReplaceAllString(msg.Kind, "_"))})
	}
	if msg.TenantID != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("tenant_id"), Value: aws.String(sesTagUnsafe.ReplaceAllString(msg.TenantID, "_"))})
	}
	return tags
}

func utf8Content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func (s *SESSender) buildInput(msg EmailMessage) *sesv2.SendEmailInput {
	body := &types.Body{}
	if msg.Body != "" {
		body.Text = utf8Content(msg.Body)
	}
	if msg.HTML != "" {
		body.Html = utf8Content(msg.HTML)
	}
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8Content(msg.Subject), Body: body},
		},
		EmailTags: sesTags(msg),
	}
}

// Send delivers msg via SES.
func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}
	ctx, span := tracer.Start(ctx, "notify.ses")
	defer span.End()
	span.SetAttributes(attribute.String("notify.kind", msg.Kind))

	output, err := s.client.SendEmail(ctx, s.buildInput(msg))
	if err != nil {
		span.RecordError(err)
		s.logger.Error("SES send failed", "error", err, "tenant_id", msg.TenantID, "kind", msg.Kind)
		return fmt.Errorf("notify: SES send: %w", err)
	}

	s.logger.Info("alert sent via SES", "tenant_id", msg.TenantID, "kind", msg.Kind, "message_id", aws.ToString(output.MessageId))
	return nil
}

var _ EmailSender = (*SESSender)(nil)
