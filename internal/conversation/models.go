package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Conversation statuses.
const (
	StatusActive  = "active"
	StatusHandoff = "handoff"
	StatusClosed  = "closed"
)

// Message directions.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

const (
	MessageTypeText  = "text"
	MessageTypeAudio = "audio"
)

// IntentComplaintPending marks a conversation whose complaint has not been
// turned into a ticket yet.
const IntentComplaintPending = "complaint_pending"

var (
	ErrNotFound       = errors.New("conversation: not found")
	ErrLLMUnavailable = errors.New("conversation: llm unavailable")
)

// Conversation is the thread between one tenant and one customer phone.
type Conversation struct {
	ID               uuid.UUID
	TenantID         string
	Phone            string
	Status           string
	HandoffRequested bool
	CurrentIntent    string
	ClientName       string
	LastMessageAt    time.Time
	CreatedAt        time.Time
}

// Message is an append-only transcript entry.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	TenantID       string
	Direction      string
	MessageType    string
	Content        string
	CreatedAt      time.Time
}

// ActionLog records one tool invocation for audit.
type ActionLog struct {
	TenantID       string
	ConversationID uuid.UUID
	Action         string
	Details        map[string]any
}
