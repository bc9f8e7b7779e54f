package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// LLM inference provider (OpenAI-compatible chat completions)
	LLMAPIKey    string
	LLMBaseURL   string
	LLMModel     string
	LLMTimeout   time.Duration
	LLMMaxTokens int

	// WhatsApp transport provider
	WhatsAppAPIURL       string
	WhatsAppDefaultToken string
	WhatsAppTimeout      time.Duration
	WhatsAppMaxRetries   int
	HumanizeReplies      bool

	// Webhook protection
	WebhookRateLimit float64
	WebhookRateBurst int

	// Admin API (HMAC JWT); empty disables the /admin routes
	AdminJWTSecret string

	// Agent settings cache in Redis
	SettingsCacheTTL time.Duration

	// Complaint extraction sweep
	ComplaintSweepInterval time.Duration
	ComplaintInactivity    time.Duration
	ComplaintSweepBatch    int

	// AWS (SES e-mail, S3 transcript archive)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ArchiveBucket       string

	// E-mail notifications
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		LLMAPIKey:    getEnv("LLM_API_KEY", ""),
		LLMBaseURL:   getEnv("LLM_BASE_URL", ""),
		LLMModel:     getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:   getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		LLMMaxTokens: getEnvAsInt("LLM_MAX_TOKENS", 400),

		WhatsAppAPIURL:       strings.TrimRight(getEnv("WHATSAPP_API_URL", ""), "/"),
		WhatsAppDefaultToken: getEnv("WHATSAPP_DEFAULT_TOKEN", ""),
		WhatsAppTimeout:      getEnvAsDuration("WHATSAPP_TIMEOUT", 15*time.Second),
		WhatsAppMaxRetries:   getEnvAsInt("WHATSAPP_MAX_RETRIES", 1),
		HumanizeReplies:      getEnvAsBool("HUMANIZE_REPLIES", true),

		WebhookRateLimit: getEnvAsFloat("WEBHOOK_RATE_LIMIT", 20),
		WebhookRateBurst: getEnvAsInt("WEBHOOK_RATE_BURST", 40),

		AdminJWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),
		SettingsCacheTTL: getEnvAsDuration("SETTINGS_CACHE_TTL", 60*time.Second),

		ComplaintSweepInterval: getEnvAsDuration("COMPLAINT_SWEEP_INTERVAL", 5*time.Minute),
		ComplaintInactivity:    getEnvAsDuration("COMPLAINT_INACTIVITY", 10*time.Minute),
		ComplaintSweepBatch:    getEnvAsInt("COMPLAINT_SWEEP_BATCH", 50),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Agenda"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
