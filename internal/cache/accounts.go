// Package cache is a redis-backed read-through layer in front of account
// point reads. A miss or a redis outage always falls through to the store;
// entries are invalidated synchronously on every write path and carry a TTL
// as a backstop.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/mertakgul/payflow/internal/metrics"
	"github.com/mertakgul/payflow/internal/models"
	"github.com/redis/go-redis/v9"
)

type Loader func(ctx context.Context) (*models.Account, error)

type Accounts struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAccounts(rdb *redis.Client, ttl time.Duration) *Accounts {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Accounts{rdb: rdb, ttl: ttl}
}

func key(userID int64) string { return "acct:" + strconv.FormatInt(userID, 10) }

// GetOrLoad returns the cached record if present, otherwise invokes the
// loader and stores its result. A nil loader result (no such account) is
// never cached.
func (c *Accounts) GetOrLoad(ctx context.Context, userID int64, load Loader) (*models.Account, error) {
	if c == nil || c.rdb == nil {
		return load(ctx)
	}

	b, err := c.rdb.Get(ctx, key(userID)).Bytes()
	if err == nil {
		var a models.Account
		if jsonErr := json.Unmarshal(b, &a); jsonErr == nil {
			metrics.CacheHits.Inc()
			return &a, nil
		}
		// corrupt entry, drop it and reload
		_ = c.rdb.Del(ctx, key(userID)).Err()
	} else if !errors.Is(err, redis.Nil) {
		slog.Debug("account cache read", "user_id", userID, "err", err)
	}
	metrics.CacheMisses.Inc()

	a, err := load(ctx)
	if err != nil || a == nil {
		return a, err
	}
	if b, err := json.Marshal(a); err == nil {
		if err := c.rdb.Set(ctx, key(userID), b, c.ttl).Err(); err != nil {
			slog.Debug("account cache write", "user_id", userID, "err", err)
		}
	}
	return a, nil
}

// Invalidate removes the entry for a user. Callers run it before
// acknowledging a write; if redis is unreachable the entry expires by TTL
// and the failure is logged, not surfaced.
func (c *Accounts) Invalidate(ctx context.Context, userID int64) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key(userID)).Err(); err != nil {
		slog.Warn("account cache invalidate", "user_id", userID, "err", err)
	}
}
