package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure so callers can
// distinguish infrastructure trouble from a negative lookup.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	keyPrefix = "authcore:revoked:"
	indexKey  = "authcore:revoked:index"
)

// Store is a Redis-backed revocation list. Each entry lives under its own
// key with a TTL matching the token expiry, so Redis reclaims dead entries
// on its own; a ZSET scored by expiry lets PurgeExpired sweep the index
// explicitly. Safe for concurrent use.
type Store struct {
	client *redis.Client
}

// NewStore wraps an existing Redis client. The caller owns the client's
// lifecycle.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Add records entry. Idempotent: re-adding an already revoked token
// succeeds. An entry whose ExpiresAt is already in the past is a no-op
// since the token it would block can no longer verify anyway.
func (s *Store) Add(ctx context.Context, entry Entry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+entry.TokenID, strconv.FormatUint(uint64(entry.UserID), 10), ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(entry.ExpiresAt.UnixMilli()),
		Member: entry.TokenID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Contains reports whether tokenID is revoked.
func (s *Store) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// PurgeExpired removes index entries whose expiry is strictly before now
// and returns how many were swept. The per-token keys expire on their own
// TTLs; this call only trims the ZSET index. Entries expiring at or after
// now are never touched.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	max := "(" + strconv.FormatInt(now.UnixMilli(), 10)
	removed, err := s.client.ZRemRangeByScore(ctx, indexKey, "-inf", max).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(removed), nil
}
