package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "session:42", sessionKey(42))
	assert.Equal(t, "blacklist:abc", blacklistKey("abc"))
}

func TestRevoke_ExpiredTokenSkipped(t *testing.T) {
	// 已过期的Token无需写入黑名单，不会访问Redis
	s := NewSessionStore(nil)
	assert.NoError(t, s.Revoke(context.Background(), "jti", 0))
	assert.NoError(t, s.Revoke(context.Background(), "jti", -time.Second))
}

// 需要本地Redis：BIBLIOTECA_TEST_REDIS_ADDR=localhost:6379
func TestSessionStore_Redis(t *testing.T) {
	addr := os.Getenv("BIBLIOTECA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BIBLIOTECA_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		_ = client.Close()
	})

	s := NewSessionStore(client)

	require.NoError(t, s.SaveSession(ctx, 7, map[string]interface{}{"ip": "127.0.0.1", "role": "utente"}, time.Minute))
	got, err := s.GetSession(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", got["ip"])

	require.NoError(t, s.DeleteSession(ctx, 7))
	_, err = s.GetSession(ctx, 7)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}
