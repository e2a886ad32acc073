package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finpulse/internal/core"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "finpulse:analytics:"

// RedisStore keeps entries as JSON values that Redis expires on its own.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

type redisEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// WithClock sets the clock the remaining lifetime of an entry is measured from
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

func redisKey(k core.CacheKey) string {
	return fmt.Sprintf("%s%d:%s", redisKeyPrefix, k.UserID, k.Key)
}

func (s *RedisStore) GetEntry(ctx context.Context, key core.CacheKey) (core.CacheEntry, bool, error) {
	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.CacheEntry{}, false, nil
	}
	if err != nil {
		return core.CacheEntry{}, false, err
	}
	var re redisEntry
	if err := json.Unmarshal(raw, &re); err != nil {
		return core.CacheEntry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return core.CacheEntry{UserID: key.UserID, Key: key.Key, Data: re.Data, ExpiresAt: re.ExpiresAt}, true, nil
}

func (s *RedisStore) PutEntry(ctx context.Context, e core.CacheEntry) error {
	k := redisKey(e.CacheKey())
	ttl := e.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.client.Del(ctx, k).Err()
	}
	payload, err := json.Marshal(redisEntry{Data: e.Data, ExpiresAt: e.ExpiresAt})
	if err != nil {
		return err
	}
	return s.client.SetArgs(ctx, k, payload, redis.SetArgs{TTL: ttl}).Err()
}

func (s *RedisStore) DeleteEntry(ctx context.Context, key core.CacheKey) error {
	return s.client.Del(ctx, redisKey(key)).Err()
}
