package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/identity-service/internal/domain"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisFromClient(client), mr
}

func TestSessionCache_RoundTrip(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	sess := &domain.SessionWithUser{
		Session: domain.Session{ID: "s1", Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)},
		User:    domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser},
	}

	require.NoError(t, rs.CacheSession(ctx, sess, time.Minute))

	got, err := rs.CachedSession(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.User.ID)
	assert.True(t, sess.Session.ExpiresAt.Equal(got.Session.ExpiresAt))
}

func TestSessionCache_MissAndExpiry(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()

	got, err := rs.CachedSession(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	sess := &domain.SessionWithUser{Session: domain.Session{Token: "tok"}}
	require.NoError(t, rs.CacheSession(ctx, sess, time.Minute))

	mr.FastForward(2 * time.Minute)

	got, err = rs.CachedSession(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionCache_Evict(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, tok := range []string{"a", "b"} {
		require.NoError(t, rs.CacheSession(ctx, &domain.SessionWithUser{Session: domain.Session{Token: tok}}, time.Minute))
	}

	require.NoError(t, rs.EvictSessions(ctx, "a", "b"))
	require.NoError(t, rs.EvictSessions(ctx))

	for _, tok := range []string{"a", "b"} {
		got, err := rs.CachedSession(ctx, tok)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}
