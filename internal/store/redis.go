package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/identity-service/internal/domain"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// CacheSession stores a session snapshot for ttl.
func (s *RedisStore) CacheSession(ctx context.Context, sess *domain.SessionWithUser, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.Session.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("caching session: %w", err)
	}
	return nil
}

// CachedSession returns the cached snapshot for token, or nil on a miss.
func (s *RedisStore) CachedSession(ctx context.Context, token string) (*domain.SessionWithUser, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cached session: %w", err)
	}

	var sess domain.SessionWithUser
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding cached session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) EvictSessions(ctx context.Context, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = sessionKey(t)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("evicting sessions: %w", err)
	}
	return nil
}
