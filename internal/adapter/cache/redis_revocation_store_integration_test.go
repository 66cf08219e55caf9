//go:build integration

package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/decisionlog/internal/adapter/cache"
)

func TestRedisRevocationStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Fatal("REDIS_ADDR must be set for integration tests")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := cache.NewRedisRevocationStore(client)
	token := uuid.NewString()

	revoked, err := store.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, token, time.Now().Add(time.Minute)))
	revoked, err = store.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.True(t, revoked)

	ttl, err := client.TTL(ctx, cache.RevocationKey(token)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)

	expired := uuid.NewString()
	require.NoError(t, store.Revoke(ctx, expired, time.Now().Add(-time.Minute)))
	revoked, err = store.IsRevoked(ctx, expired)
	require.NoError(t, err)
	require.False(t, revoked)
}
