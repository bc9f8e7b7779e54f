package conversation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// DedupWindow is how long an identical incoming message counts as a redelivery.
const DedupWindow = 15 * time.Second

type recentIncomingChecker interface {
	HasRecentIncoming(ctx context.Context, tenantID string, conversationID uuid.UUID, content string, window time.Duration) (bool, error)
}

// DedupGuard rejects webhook redeliveries of a message already seen.
// The message table is authoritative; the Redis claim catches two deliveries
// racing each other before either row exists. Redis is optional.
type DedupGuard struct {
	store  recentIncomingChecker
	redis  *redis.Client
	logger *logging.Logger
}

func NewDedupGuard(store recentIncomingChecker, redisClient *redis.Client, logger *logging.Logger) *DedupGuard {
	if store == nil {
		panic("conversation: dedup store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DedupGuard{store: store, redis: redisClient, logger: logger}
}

// IsDuplicate reports whether content was already received for the conversation
// within DedupWindow. Any match wins.
func (g *DedupGuard) IsDuplicate(ctx context.Context, tenantID string, conversationID uuid.UUID, content string) (bool, error) {
	seen, err := g.store.HasRecentIncoming(ctx, tenantID, conversationID, content, DedupWindow)
	if err != nil {
		return false, err
	}
	if seen {
		return true, nil
	}
	if g.redis == nil {
		return false, nil
	}
	claimed, err := g.redis.SetNX(ctx, dedupKey(conversationID, content), 1, DedupWindow).Result()
	if err != nil {
		logging.FromContext(ctx, g.logger).Warn("dedup claim failed, using store check only", "error", err)
		return false, nil
	}
	return !claimed, nil
}

func dedupKey(conversationID uuid.UUID, content string) string {
	sum := sha256.Sum256([]byte(conversationID.String() + "|" + content))
	return "dedup:msg:" + hex.EncodeToString(sum[:])
}
