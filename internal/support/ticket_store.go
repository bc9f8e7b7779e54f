package support

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/agenda-agent/pkg/logging"
)

var ticketTracer = otel.Tracer("agenda.internal.support")

// Ticket categories extracted from complaint transcripts.
const (
	CategoryServiceQuality = "SERVICE_QUALITY"
	CategoryDelay          = "DELAY"
	CategoryBilling        = "BILLING"
	CategoryStaffConduct   = "STAFF_CONDUCT"
	CategoryGeneral        = "GENERAL"
)

// Ticket severities, lowest first.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

var severityRank = map[string]int{SeverityLow: 1, SeverityMedium: 2, SeverityHigh: 3}

// Ticket is one complaint record per (tenant, phone, day), enriched as more
// complaints from the same client arrive that day.
type Ticket struct {
	ID             uuid.UUID
	TenantID       string
	ConversationID uuid.UUID
	Phone          string
	ClientName     string
	Category       string
	Severity       string
	Summary        string
	ArchiveKey     string
	Occurrences    int
	TicketDate     string // YYYY-MM-DD in the tenant's calendar
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TicketStore persists complaint tickets.
type TicketStore struct {
	db     *sql.DB
	logger *logging.Logger
	now    func() time.Time
}

// NewTicketStore creates a ticket store over a database/sql handle.
func NewTicketStore(db *sql.DB, logger *logging.Logger) *TicketStore {
	if db == nil {
		panic("support: sql db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TicketStore{db: db, logger: logger, now: time.Now}
}

const ticketColumns = `id, tenant_id, conversation_id, phone, COALESCE(client_name, ''), category,
	severity, summary, COALESCE(archive_key, ''), occurrences, to_char(ticket_date, 'YYYY-MM-DD'),
	created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*Ticket, error) {
	var t Ticket
	if err := row.Scan(&t.ID, &t.TenantID, &t.ConversationID, &t.Phone, &t.ClientName, &t.Category,
		&t.Severity, &t.Summary, &t.ArchiveKey, &t.Occurrences, &t.TicketDate,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// FindForDay returns the ticket for (tenant, phone, day) or nil when none exists.
func (s *TicketStore) FindForDay(ctx context.Context, tenantID, phone, day string) (*Ticket, error) {
	query := `SELECT ` + ticketColumns + `
		FROM complaint_tickets
		WHERE tenant_id = $1 AND phone = $2 AND ticket_date = $3`
	t, err := scanTicket(s.db.QueryRowContext(ctx, query, tenantID, phone, day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("support: find ticket: %w", err)
	}
	return t, nil
}

// Record stores an extracted complaint: the day's existing ticket for the
// phone is enriched, otherwise a new ticket is inserted. The existence check
// and the write share a transaction with the row locked.
func (s *TicketStore) Record(ctx context.Context, in Ticket) (*Ticket, bool, error) {
	ctx, span := ticketTracer.Start(ctx, "support.ticket.record")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent.tenant_id", in.TenantID),
		attribute.String("ticket.category", in.Category),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("support: begin ticket tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `SELECT ` + ticketColumns + `
		FROM complaint_tickets
		WHERE tenant_id = $1 AND phone = $2 AND ticket_date = $3
		FOR UPDATE`
	existing, err := scanTicket(tx.QueryRowContext(ctx, query, in.TenantID, in.Phone, in.TicketDate))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("support: lock ticket: %w", err)
	}

	now := s.now().UTC()
	var out *Ticket
	created := existing == nil
	if created {
		out = &in
		out.ID = uuid.New()
		out.Occurrences = 1
		out.CreatedAt, out.UpdatedAt = now, now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO complaint_tickets (
				id, tenant_id, conversation_id, phone, client_name, category, severity,
				summary, occurrences, ticket_date, created_at, updated_at
			) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12)`,
			out.ID, out.TenantID, out.ConversationID, out.Phone, out.ClientName, out.Category, out.Severity,
			out.Summary, out.Occurrences, out.TicketDate, out.CreatedAt, out.UpdatedAt,
		)
		if err != nil {
			return nil, false, fmt.Errorf("support: insert ticket: %w", err)
		}
	} else {
		out = mergeTicket(existing, in)
		out.UpdatedAt = now
		_, err = tx.ExecContext(ctx, `
			UPDATE complaint_tickets
			SET conversation_id = $1, client_name = NULLIF($2, ''), category = $3, severity = $4,
				summary = $5, occurrences = $6, updated_at = $7
			WHERE id = $8 AND tenant_id = $9`,
			out.ConversationID, out.ClientName, out.Category, out.Severity,
			out.Summary, out.Occurrences, out.UpdatedAt, out.ID, out.TenantID,
		)
		if err != nil {
			return nil, false, fmt.Errorf("support: update ticket: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("support: commit ticket: %w", err)
	}

	s.logger.Info("complaint ticket recorded",
		"tenant_id", out.TenantID,
		"ticket_id", out.ID,
		"created", created,
		"category", out.Category,
		"severity", out.Severity,
		"occurrences", out.Occurrences,
	)
	return out, created, nil
}

// SetArchiveKey stores where the ticket's transcript was archived.
func (s *TicketStore) SetArchiveKey(ctx context.Context, tenantID string, id uuid.UUID, key string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE complaint_tickets SET archive_key = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4`,
		key, s.now().UTC(), id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("support: set archive key: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("support: ticket %s not found", id)
	}
	return nil
}

// mergeTicket enriches an existing ticket with a new extraction.
func mergeTicket(existing *Ticket, in Ticket) *Ticket {
	out := *existing
	out.ConversationID = in.ConversationID
	out.Occurrences++
	if in.ClientName != "" {
		out.ClientName = in.ClientName
	}
	if out.Category == CategoryGeneral && in.Category != "" {
		out.Category = in.Category
	}
	if severityRank[in.Severity] > severityRank[out.Severity] {
		out.Severity = in.Severity
	}
	if s := strings.TrimSpace(in.Summary); s != "" && !strings.Contains(out.Summary, s) {
		out.Summary = strings.TrimSpace(out.Summary + "\n" + s)
	}
	return &out
}

// NormalizeCategory maps free-form model output onto a known category.
func NormalizeCategory(v string) string {
	switch c := strings.ToUpper(strings.TrimSpace(v)); c {
	case CategoryServiceQuality, CategoryDelay, CategoryBilling, CategoryStaffConduct, CategoryGeneral:
		return c
	default:
		return CategoryGeneral
	}
}

// NormalizeSeverity maps free-form model output onto a known severity.
func NormalizeSeverity(v string) string {
	s := strings.ToLower(strings.TrimSpace(v))
	if _, ok := severityRank[s]; ok {
		return s
	}
	return SeverityMedium
}
