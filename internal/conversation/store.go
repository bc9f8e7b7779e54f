package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PgxPool is the subset of pgxpool.Pool used by the store.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store owns conversation, message and agent action rows.
type Store struct {
	pool PgxPool
	now  func() time.Time
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &Store{pool: pool, now: time.Now}
}

const conversationColumns = `id, tenant_id, phone, status, handoff_requested,
	COALESCE(current_intent, ''), COALESCE(client_name, ''), last_message_at, created_at`

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.TenantID, &c.Phone, &c.Status, &c.HandoffRequested,
		&c.CurrentIntent, &c.ClientName, &c.LastMessageAt, &c.CreatedAt)
	return c, err
}

// FindOrCreateActive returns the open conversation for (tenant, phone),
// creating an active one when none exists. Open means active or handed off, so a
// handoff keeps capturing the customer's messages until staff close it.
// created reports whether a row was inserted. A concurrent insert that loses the
// race on the open-conversation unique index re-reads the winner.
func (s *Store) FindOrCreateActive(ctx context.Context, tenantID, phone string) (Conversation, bool, error) {
	conv, err := s.openConversation(ctx, tenantID, phone)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Conversation{}, false, err
	}

	query := `
		INSERT INTO conversations (id, tenant_id, phone, status, handoff_requested, last_message_at, created_at)
		VALUES ($1, $2, $3, 'active', false, $4, $4)
		RETURNING ` + conversationColumns
	conv, err = scanConversation(s.pool.QueryRow(ctx, query, uuid.New(), tenantID, phone, s.now().UTC()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			existing, findErr := s.openConversation(ctx, tenantID, phone)
			if findErr != nil {
				return Conversation{}, false, findErr
			}
			return existing, false, nil
		}
		return Conversation{}, false, fmt.Errorf("conversation: create conversation: %w", err)
	}
	return conv, true, nil
}

func (s *Store) openConversation(ctx context.Context, tenantID, phone string) (Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = $1 AND phone = $2 AND status IN ('active', 'handoff')
		ORDER BY created_at DESC
		LIMIT 1
	`
	conv, err := scanConversation(s.pool.QueryRow(ctx, query, tenantID, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("conversation: find open: %w", err)
	}
	return conv, nil
}

// Get loads a conversation by id.
func (s *Store) Get(ctx context.Context, tenantID string, id uuid.UUID) (Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1 AND tenant_id = $2`
	conv, err := scanConversation(s.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("conversation: get: %w", err)
	}
	return conv, nil
}

func (s *Store) exec(ctx context.Context, action, query string, args ...any) error {
	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("conversation: %s: %w", action, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchActivity sets last_message_at to now.
func (s *Store) TouchActivity(ctx context.Context, tenantID string, id uuid.UUID) error {
	return s.exec(ctx, "touch activity",
		`UPDATE conversations SET last_message_at = $3 WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, s.now().UTC())
}

// RequestHandoff moves the conversation to the terminal handoff state.
func (s *Store) RequestHandoff(ctx context.Context, tenantID string, id uuid.UUID) error {
	return s.exec(ctx, "request handoff",
		`UPDATE conversations SET handoff_requested = true, status = 'handoff' WHERE id = $1 AND tenant_id = $2`,
		id, tenantID)
}

// SetIntent records the conversation's current intent.
func (s *Store) SetIntent(ctx context.Context, tenantID string, id uuid.UUID, intent string) error {
	return s.exec(ctx, "set intent",
		`UPDATE conversations SET current_intent = $3 WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, intent)
}

// ClearIntent resets current_intent to NULL.
func (s *Store) ClearIntent(ctx context.Context, tenantID string, id uuid.UUID) error {
	return s.exec(ctx, "clear intent",
		`UPDATE conversations SET current_intent = NULL WHERE id = $1 AND tenant_id = $2`,
		id, tenantID)
}

// SetClientName stores the customer's name once it is known.
func (s *Store) SetClientName(ctx context.Context, tenantID string, id uuid.UUID, name string) error {
	return s.exec(ctx, "set client name",
		`UPDATE conversations SET client_name = $3 WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, name)
}

// AppendMessage inserts a transcript row and returns it with id and timestamp set.
func (s *Store) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.MessageType == "" {
		msg.MessageType = MessageTypeText
	}
	msg.CreatedAt = s.now().UTC()
	query := `
		INSERT INTO messages (id, conversation_id, tenant_id, direction, message_type, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.pool.Exec(ctx, query, msg.ID, msg.ConversationID, msg.TenantID,
		msg.Direction, msg.MessageType, msg.Content, msg.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("conversation: append message: %w", err)
	}
	return msg, nil
}

// RecentMessages returns the last limit messages in chronological order.
func (s *Store) RecentMessages(ctx context.Context, tenantID string, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, conversation_id, tenant_id, direction, message_type, content, created_at
		FROM messages
		WHERE conversation_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, conversationID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: recent messages: %w", err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Transcript returns every message of a conversation, oldest first.
func (s *Store) Transcript(ctx context.Context, tenantID string, conversationID uuid.UUID) ([]Message, error) {
	query := `
		SELECT id, conversation_id, tenant_id, direction, message_type, content, created_at
		FROM messages
		WHERE conversation_id = $1 AND tenant_id = $2
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, conversationID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("conversation: transcript: %w", err)
	}
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.TenantID, &m.Direction,
			&m.MessageType, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate messages: %w", err)
	}
	return out, nil
}

// HasRecentIncoming reports whether an incoming message with identical content
// was stored for the conversation within window.
func (s *Store) HasRecentIncoming(ctx context.Context, tenantID string, conversationID uuid.UUID, content string, window time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE conversation_id = $1 AND tenant_id = $2
				AND direction = 'incoming' AND content = $3 AND created_at >= $4
		)
	`
	var exists bool
	since := s.now().UTC().Add(-window)
	if err := s.pool.QueryRow(ctx, query, conversationID, tenantID, content, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("conversation: recent incoming: %w", err)
	}
	return exists, nil
}

// LogAgentAction writes an audit row for a tool invocation.
func (s *Store) LogAgentAction(ctx context.Context, entry ActionLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("conversation: marshal action details: %w", err)
	}
	query := `
		INSERT INTO agent_action_logs (id, tenant_id, conversation_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.pool.Exec(ctx, query, uuid.New(), entry.TenantID, entry.ConversationID,
		entry.Action, details, s.now().UTC()); err != nil {
		return fmt.Errorf("conversation: log agent action: %w", err)
	}
	return nil
}

// ComplaintPendingTenants lists tenants holding at least one complaint that has
// been idle since before cutoff.
func (s *Store) ComplaintPendingTenants(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT tenant_id
		FROM conversations
		WHERE current_intent = 'complaint_pending' AND last_message_at < $1
		ORDER BY tenant_id
	`
	rows, err := s.pool.Query(ctx, query, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("conversation: complaint tenants: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("conversation: scan tenant: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListComplaintPending returns a tenant's complaint conversations idle since before cutoff.
func (s *Store) ListComplaintPending(ctx context.Context, tenantID string, cutoff time.Time, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = $1 AND current_intent = 'complaint_pending' AND last_message_at < $2
		ORDER BY last_message_at ASC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, tenantID, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: list complaint pending: %w", err)
	}
	defer rows.Close()
	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("conversation: scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate conversations: %w", err)
	}
	return out, nil
}
