package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("HUMANIZE_REPLIES", "")
	t.Setenv("COMPLAINT_INACTIVITY", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.LLMModel != "gpt-4o-mini" {
		t.Fatalf("expected default model, got %s", cfg.LLMModel)
	}
	if !cfg.HumanizeReplies {
		t.Fatalf("expected humanized replies enabled by default")
	}
	if cfg.ComplaintInactivity != 10*time.Minute {
		t.Fatalf("expected default complaint inactivity, got %s", cfg.ComplaintInactivity)
	}
	if cfg.EmailProvider != "auto" {
		t.Fatalf("expected auto email provider, got %s", cfg.EmailProvider)
	}
	if cfg.WhatsAppMaxRetries != 1 {
		t.Fatalf("expected one whatsapp retry by default, got %d", cfg.WhatsAppMaxRetries)
	}
	if cfg.SettingsCacheTTL != time.Minute {
		t.Fatalf("expected default settings cache ttl, got %s", cfg.SettingsCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("WHATSAPP_API_URL", "https://evo.example.com/")
	t.Setenv("HUMANIZE_REPLIES", "false")
	t.Setenv("WEBHOOK_RATE_LIMIT", "2.5")
	t.Setenv("COMPLAINT_SWEEP_INTERVAL", "90s")
	t.Setenv("COMPLAINT_SWEEP_BATCH", "7")
	t.Setenv("EMAIL_PROVIDER", " SES ")
	t.Setenv("WHATSAPP_MAX_RETRIES", "0")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.WhatsAppAPIURL != "https://evo.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.WhatsAppAPIURL)
	}
	if cfg.HumanizeReplies {
		t.Fatalf("expected humanized replies disabled")
	}
	if cfg.WebhookRateLimit != 2.5 {
		t.Fatalf("expected rate limit override, got %v", cfg.WebhookRateLimit)
	}
	if cfg.ComplaintSweepInterval != 90*time.Second {
		t.Fatalf("expected sweep interval override, got %s", cfg.ComplaintSweepInterval)
	}
	if cfg.ComplaintSweepBatch != 7 {
		t.Fatalf("expected sweep batch override, got %d", cfg.ComplaintSweepBatch)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected ses provider, got %s", cfg.EmailProvider)
	}
	if cfg.WhatsAppMaxRetries != 0 {
		t.Fatalf("expected retries disabled, got %d", cfg.WhatsAppMaxRetries)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("WEBHOOK_RATE_BURST", "lots")
	t.Setenv("LLM_TIMEOUT", "soon")
	t.Setenv("REDIS_TLS", "maybe")
	cfg := Load()
	if cfg.WebhookRateBurst != 40 {
		t.Fatalf("expected default burst, got %d", cfg.WebhookRateBurst)
	}
	if cfg.LLMTimeout != 45*time.Second {
		t.Fatalf("expected default llm timeout, got %s", cfg.LLMTimeout)
	}
	if cfg.RedisTLS {
		t.Fatalf("expected redis tls default false")
	}
}
