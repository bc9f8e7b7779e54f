package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/agenda-agent/internal/conversation"
	"github.com/wolfman30/agenda-agent/internal/support"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

type settingsInvalidator interface {
	Invalidate(ctx context.Context, tenantID string) error
}

type transcriptReader interface {
	Get(ctx context.Context, tenantID string, id uuid.UUID) (conversation.Conversation, error)
	Transcript(ctx context.Context, tenantID string, conversationID uuid.UUID) ([]conversation.Message, error)
}

type sweepRunner interface {
	RunOnce(ctx context.Context) (support.SweepStats, error)
}

// AdminHandler serves operator endpoints behind AdminJWT.
type AdminHandler struct {
	settings settingsInvalidator
	convs    transcriptReader
	sweep    sweepRunner
	logger   *logging.Logger
}

// NewAdminHandler wires the admin endpoints; a nil dependency disables its route with 501.
func NewAdminHandler(settings settingsInvalidator, convs transcriptReader, sweep sweepRunner, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{settings: settings, convs: convs, sweep: sweep, logger: logger}
}

// InvalidateSettings drops the tenant's cached agent settings so a toggle applies immediately.
func (h *AdminHandler) InvalidateSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings cache not configured")
		return
	}
	tenantID := chi.URLParam(r, "tenantID")
	if err := h.settings.Invalidate(r.Context(), tenantID); err != nil {
		h.logger.Error("settings invalidate failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to invalidate settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type transcriptMessage struct {
	Direction string    `json:"direction"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcript returns a conversation's full message history.
func (h *AdminHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	if h.convs == nil {
		writeError(w, http.StatusNotImplemented, "conversation store not configured")
		return
	}
	tenantID := chi.URLParam(r, "tenantID")
	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, err := h.convs.Get(r.Context(), tenantID, convID)
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("conversation lookup failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	msgs, err := h.convs.Transcript(r.Context(), tenantID, convID)
	if err != nil {
		h.logger.Error("transcript lookup failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	out := make([]transcriptMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, transcriptMessage{Direction: m.Direction, Type: m.MessageType, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id":   conv.ID,
		"phone":             conv.Phone,
		"status":            conv.Status,
		"handoff_requested": conv.HandoffRequested,
		"current_intent":    conv.CurrentIntent,
		"messages":          out,
	})
}

// RunComplaintSweep triggers one sweep pass outside the schedule.
func (h *AdminHandler) RunComplaintSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweep == nil {
		writeError(w, http.StatusNotImplemented, "complaint sweep not configured")
		return
	}
	stats, err := h.sweep.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("manual complaint sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "complaint sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lease_held": stats.LeaseHeld,
		"scanned":    stats.Scanned,
		"created":    stats.Created,
		"enriched":   stats.Enriched,
		"failed":     stats.Failed,
	})
}
