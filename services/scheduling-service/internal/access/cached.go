package access

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Checker is the decision source wrapped by CachedChecker.
type Checker interface {
	CanAccess(ctx context.Context, candidateID, staffEmail string) (bool, error)
}

// CachedChecker memoizes decisions in Redis. Redis failures fall through to the inner
// checker; they never deny access on their own.
type CachedChecker struct {
	inner  Checker
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewCachedChecker(inner Checker, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedChecker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedChecker{inner: inner, rdb: rdb, ttl: ttl, prefix: "acl", logger: logger}
}

func (c *CachedChecker) key(candidateID, staffEmail string) string {
	return c.prefix + ":" + candidateID + ":" + strings.ToLower(strings.TrimSpace(staffEmail))
}

func (c *CachedChecker) CanAccess(ctx context.Context, candidateID, staffEmail string) (bool, error) {
	key := c.key(candidateID, staffEmail)
	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == "1", nil
	case err != redis.Nil:
		c.logger.Warn("access cache read failed", "key", key, "err", err)
	}

	allowed, err := c.inner.CanAccess(ctx, candidateID, staffEmail)
	if err != nil {
		return false, err
	}
	val := "0"
	if allowed {
		val = "1"
	}
	if err := c.rdb.Set(ctx, key, val, c.ttl).Err(); err != nil {
		c.logger.Warn("access cache write failed", "key", key, "err", err)
	}
	return allowed, nil
}

// Invalidate drops a cached decision, e.g. after an assignment change.
func (c *CachedChecker) Invalidate(ctx context.Context, candidateID, staffEmail string) error {
	return c.rdb.Del(ctx, c.key(candidateID, staffEmail)).Err()
}
