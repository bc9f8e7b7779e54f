package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/agenda-agent/pkg/logging"
)

const defaultSettingsTTL = 60 * time.Second

type settingsLoader interface {
	AgentSettings(ctx context.Context, tenantID string) (AgentSettings, error)
}

// SettingsCache fronts agent settings with Redis. Every webhook reads the
// settings, so a short TTL keeps toggles responsive without a Postgres hit per
// message. Redis failures fall through to the loader.
type SettingsCache struct {
	source settingsLoader
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewSettingsCache(source settingsLoader, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *SettingsCache {
	if source == nil {
		panic("scheduling: settings source required")
	}
	if ttl <= 0 {
		ttl = defaultSettingsTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SettingsCache{source: source, redis: redisClient, ttl: ttl, logger: logger}
}

func (c *SettingsCache) key(tenantID string) string {
	return fmt.Sprintf("agent:settings:%s", tenantID)
}

// AgentSettings returns the cached settings, loading and caching them on a miss.
func (c *SettingsCache) AgentSettings(ctx context.Context, tenantID string) (AgentSettings, error) {
	if c.redis == nil {
		return c.source.AgentSettings(ctx, tenantID)
	}

	data, err := c.redis.Get(ctx, c.key(tenantID)).Bytes()
	switch {
	case err == nil:
		var cached AgentSettings
		if jerr := json.Unmarshal(data, &cached); jerr == nil {
			return cached, nil
		}
		c.logger.Warn("discarding corrupt cached agent settings", "tenant_id", tenantID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("agent settings cache read failed", "tenant_id", tenantID, "error", err)
	}

	settings, err := c.source.AgentSettings(ctx, tenantID)
	if err != nil {
		return AgentSettings{}, err
	}
	if data, err := json.Marshal(settings); err == nil {
		if err := c.redis.Set(ctx, c.key(tenantID), data, c.ttl).Err(); err != nil {
			c.logger.Warn("agent settings cache write failed", "tenant_id", tenantID, "error", err)
		}
	}
	return settings, nil
}

// Invalidate drops the cached settings for a tenant.
func (c *SettingsCache) Invalidate(ctx context.Context, tenantID string) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, c.key(tenantID)).Err(); err != nil {
		return fmt.Errorf("scheduling: invalidate settings: %w", err)
	}
	return nil
}
