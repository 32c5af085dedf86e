package verify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps codes in Redis with native TTL expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(phoneKey string) string {
	return "verify:" + phoneKey
}

func (s *RedisStore) Put(ctx context.Context, phoneKey, code string, ttl time.Duration) error {
	return s.client.Set(ctx, redisKey(phoneKey), code, ttl).Err()
}

func (s *RedisStore) Consume(ctx context.Context, phoneKey, code string) (bool, error) {
	stored, err := s.client.Get(ctx, redisKey(phoneKey)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored != code {
		return false, nil
	}
	if err := s.client.Del(ctx, redisKey(phoneKey)).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// MemStore is the in-process fallback for redis-less deployments and
// tests.
type MemStore struct {
	mu    sync.Mutex
	codes map[string]memEntry
}

type memEntry struct {
	code    string
	expires time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{codes: make(map[string]memEntry)}
}

func (s *MemStore) Put(_ context.Context, phoneKey, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phoneKey] = memEntry{code: code, expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemStore) Consume(_ context.Context, phoneKey, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[phoneKey]
	if !ok || time.Now().After(entry.expires) {
		delete(s.codes, phoneKey)
		return false, nil
	}
	if entry.code != code {
		return false, nil
	}
	delete(s.codes, phoneKey)
	return true, nil
}
