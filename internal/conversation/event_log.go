package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// ConversationEvent represents a structured event in the conversation lifecycle.
// All events share the same base fields for easy filtering/grep.
type ConversationEvent struct {
	Time           string         `json:"time"`
	Event          string         `json:"event"`
	ConversationID string         `json:"conversation_id"`
	TenantID       string         `json:"tenant_id"`
	Data           map[string]any `json:"data,omitempty"`
}

// EventLogger emits one JSON record per pipeline decision point:
//
//	grep '"event":"tool_executed"' /var/log/agent.log
//	grep '"conversation_id":"3f0c..."' /var/log/agent.log
type EventLogger struct {
	logger *logging.Logger
}

func NewEventLogger(logger *logging.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Log emits a structured conversation event. The request-scoped logger in ctx
// wins over the one given at construction.
func (e *EventLogger) Log(ctx context.Context, event, convID, tenantID string, data map[string]any) {
	if e == nil {
		return
	}
	logger := logging.FromContext(ctx, e.logger)
	evt := ConversationEvent{
		Time:           time.Now().UTC().Format(time.RFC3339Nano),
		Event:          event,
		ConversationID: convID,
		TenantID:       tenantID,
		Data:           data,
	}
	b, _ := json.Marshal(evt)
	logger.Info(string(b))
}

func (e *EventLogger) MessageReceived(ctx context.Context, convID, tenantID, message string, newConversation bool) {
	msg := message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	e.Log(ctx, "message_received", convID, tenantID, map[string]any{
		"message":          msg,
		"new_conversation": newConversation,
	})
}

func (e *EventLogger) DuplicateSkipped(ctx context.Context, convID, tenantID string) {
	e.Log(ctx, "duplicate_skipped", convID, tenantID, nil)
}

func (e *EventLogger) ComplaintFlagged(ctx context.Context, convID, tenantID string, complaintType ComplaintType, confidence float64) {
	e.Log(ctx, "complaint_flagged", convID, tenantID, map[string]any{
		"type":       complaintType,
		"confidence": confidence,
	})
}

func (e *EventLogger) LLMResponseGenerated(ctx context.Context, convID, tenantID string, durationMs int64, toolCalls, tokens int) {
	e.Log(ctx, "llm_response_generated", convID, tenantID, map[string]any{
		"duration_ms": durationMs,
		"tool_calls":  toolCalls,
		"tokens":      tokens,
	})
}

func (e *EventLogger) ToolExecuted(ctx context.Context, convID, tenantID string, res ToolResult) {
	data := map[string]any{
		"tool":    res.Name,
		"args":    res.Args,
		"success": res.OK,
	}
	if res.Err != nil {
		data["error"] = res.Err.Error()
	}
	e.Log(ctx, "tool_executed", convID, tenantID, data)
}

func (e *EventLogger) HandoffRequested(ctx context.Context, convID, tenantID string) {
	e.Log(ctx, "handoff_requested", convID, tenantID, nil)
}

func (e *EventLogger) OutputGuardTriggered(ctx context.Context, convID, tenantID string, reasons []string, blocked bool) {
	e.Log(ctx, "output_guard_triggered", convID, tenantID, map[string]any{
		"reasons": reasons,
		"blocked": blocked,
	})
}

func (e *EventLogger) ReplySent(ctx context.Context, convID, tenantID string, chunks, bodyLen int) {
	e.Log(ctx, "reply_sent", convID, tenantID, map[string]any{
		"chunks":   chunks,
		"body_len": bodyLen,
	})
}

func (e *EventLogger) ErrorOccurred(ctx context.Context, convID, tenantID, step string, err error) {
	e.Log(ctx, "error", convID, tenantID, map[string]any{
		"step":  step,
		"error": err.Error(),
	})
}
