package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/agenda-agent/internal/conversation"
	"github.com/wolfman30/agenda-agent/internal/tenancy"
	"github.com/wolfman30/agenda-agent/internal/whatsapp"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

const maxWebhookBody = 1 << 20

type inboundProcessor interface {
	Process(ctx context.Context, evt whatsapp.InboundEvent) (conversation.Result, error)
}

// WhatsAppWebhookHandler receives provider webhooks for a tenant's WhatsApp instance.
type WhatsAppWebhookHandler struct {
	pipeline inboundProcessor
	logger   *logging.Logger
}

func NewWhatsAppWebhookHandler(pipeline inboundProcessor, logger *logging.Logger) *WhatsAppWebhookHandler {
	if pipeline == nil {
		panic("handlers: whatsapp pipeline required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{pipeline: pipeline, logger: logger}
}

// tenantFromRequest accepts the tenant as a path segment or a ?tenant= query value.
func tenantFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(chi.URLParam(r, "tenantID")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("tenant"))
}

// Handle acknowledges filtered events with 200 so the provider does not retry
// them. Only a missing tenant is a client error.
func (h *WhatsAppWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromRequest(r)
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "missing tenant id")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("failed to read whatsapp webhook body", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "skipped": whatsapp.SkipBadJSON})
		return
	}

	norm := whatsapp.Normalize(tenantID, body)
	if norm.Skipped() {
		h.logger.Debug("whatsapp webhook skipped", "tenant_id", tenantID, "reason", norm.SkipReason)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "skipped": norm.SkipReason})
		return
	}

	// A provider disconnect must not cut a reply short once the message is recorded.
	ctx := tenancy.WithTenantID(context.WithoutCancel(r.Context()), tenantID)
	res, err := h.pipeline.Process(ctx, norm.Event)
	if err != nil {
		h.logger.Error("whatsapp pipeline failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	if res.Skipped != "" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "skipped": res.Skipped})
		return
	}

	resp := map[string]any{"ok": true, "reply": res.Reply}
	if res.Status == conversation.ResultSendFailed {
		resp["delivery"] = res.Status
	}
	writeJSON(w, http.StatusOK, resp)
}
