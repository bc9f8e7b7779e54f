package archive

import "time"

// TicketRecord is the transcript snapshot archived next to a complaint ticket.
type TicketRecord struct {
	Version        string    `json:"version"` // "1.0"
	TicketID       string    `json:"ticket_id"`
	TenantID       string    `json:"tenant_id"`
	ConversationID string    `json:"conversation_id"`
	PhoneHash      string    `json:"phone_hash"` // sha256 of phone
	ArchivedAt     time.Time `json:"archived_at"`
	Category       string    `json:"category"`
	Severity       string    `json:"severity"`
	Summary        string    `json:"summary"`
	MessageCount   int       `json:"message_count"`
	Messages       []Message `json:"messages"`
}

// Message is a single conversation turn.
type Message struct {
	Direction string    `json:"direction"` // incoming|outgoing
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ManifestEntry is one JSONL line in a tenant's monthly manifest.
type ManifestEntry struct {
	TicketID       string `json:"ticket_id"`
	ConversationID string `json:"conversation_id"`
	S3Key          string `json:"s3_key"`
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	ArchivedAt     string `json:"archived_at"`
	MessageCount   int    `json:"message_count"`
}
