package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
)

// CacheKeyPrefix namespaces every cache key written by this service.
const CacheKeyPrefix = "assignment-sync:"

// cacheEntry wraps every stored payload so entries written by other
// processes or older builds can be told apart from real data.
type cacheEntry struct {
	StoredAt time.Time       `json:"stored_at"`
	Payload  json.RawMessage `json:"payload"`
}

// CacheRepository stores JSON payloads in Redis. A nil client behaves as an
// always-empty cache.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger, now: time.Now}
}

// Get decodes the cached payload into dest. Unreadable entries are evicted
// and reported as a miss.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, CacheKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := decodeEntry(raw, dest); err != nil {
		r.logger.Warn("evicting unreadable cache entry", zap.String("key", key), zap.Error(err))
		if delErr := r.client.Del(ctx, CacheKeyPrefix+key).Err(); delErr != nil {
			r.logger.Debug("cache eviction failed", zap.String("key", key), zap.Error(delErr))
		}
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set stores value under key for ttl.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := encodeEntry(value, r.now())
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, CacheKeyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func encodeEntry(value interface{}, storedAt time.Time) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cacheEntry{StoredAt: storedAt.UTC(), Payload: payload})
}

func decodeEntry(raw []byte, dest interface{}) error {
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return err
	}
	if entry.StoredAt.IsZero() || len(entry.Payload) == 0 {
		return errors.New("missing cache envelope")
	}
	return json.Unmarshal(entry.Payload, dest)
}
