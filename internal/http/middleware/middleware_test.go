package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/agenda-agent/pkg/logging"
)

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 1, 2)
	rl.now = func() time.Time { return now }

	if !rl.Allow("k") || !rl.Allow("k") {
		t.Fatalf("burst should be allowed")
	}
	if rl.Allow("k") {
		t.Fatalf("third request should be limited")
	}
	if !rl.Allow("other") {
		t.Fatalf("keys must not share buckets")
	}
	now = now.Add(time.Second)
	if !rl.Allow("k") {
		t.Fatalf("bucket should refill after one second")
	}
}

func TestRateLimit_PerTenant(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := NewRateLimiter(ctx, 0.001, 1)
	r := chi.NewRouter()
	r.With(RateLimit(limiter, nil, nil)).Post("/webhooks/whatsapp/{tenantID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	do := func(path string) int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		return rec.Code
	}
	if code := do("/webhooks/whatsapp/tenant-a"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := do("/webhooks/whatsapp/tenant-a"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := do("/webhooks/whatsapp/tenant-b"); code != http.StatusOK {
		t.Fatalf("other tenant should not be limited, got %d", code)
	}
}

func TestRateLimit_AcknowledgesThrottledWebhook(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := NewRateLimiter(ctx, 0.001, 1)
	var handled int
	r := chi.NewRouter()
	r.With(RateLimit(limiter, WebhookKey, AcknowledgeRateLimited)).Post("/webhooks/whatsapp/{tenantID}", func(w http.ResponseWriter, r *http.Request) {
		handled++
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/tenant-a", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
		if i == 1 {
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["ok"] != true || body["skipped"] != "rate_limited" {
				t.Fatalf("unexpected throttled body %v", body)
			}
		}
	}
	if handled != 1 {
		t.Fatalf("expected throttled request to skip the handler, handled=%d", handled)
	}
}

func TestWebhookKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp?tenant=tenant-q", nil)
	if got := WebhookKey(req); got != "tenant:tenant-q" {
		t.Fatalf("unexpected key %q", got)
	}
	req = httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", nil)
	req.Header.Set("X-Real-Ip", "10.0.0.9")
	if got := WebhookKey(req); got != "ip:10.0.0.9" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestRequestLogger_ScopesLoggerAndRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info")

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context(), nil).Info("inside handler")
		w.WriteHeader(http.StatusAccepted)
	}))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/tenant-a", nil)
	req.Header.Set("X-Request-ID", "req-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var inner, done map[string]any
	if err := json.Unmarshal(lines[0], &inner); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal(lines[1], &done); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inner["request_id"] != "req-123" {
		t.Fatalf("handler log missing request id: %v", inner)
	}
	if done["status"] != float64(http.StatusAccepted) {
		t.Fatalf("unexpected status field: %v", done)
	}
}
