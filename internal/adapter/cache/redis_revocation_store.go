package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/decisionlog/internal/repository"
)

const revokedPrefix = "revoked:"

// RedisRevocationStore implements RevocationStore backed by Redis. Keys
// expire together with the token they block.
type RedisRevocationStore struct {
	client redis.UniversalClient
}

var _ repository.RevocationStore = (*RedisRevocationStore)(nil)

// NewRedisRevocationStore constructs a Redis-backed revocation store.
func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// RevocationKey is the Redis key for token. Raw tokens are never stored.
func RevocationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revokedPrefix + hex.EncodeToString(sum[:])
}

// Revoke blocks token until the given time.
func (s *RedisRevocationStore) Revoke(ctx context.Context, token string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, RevocationKey(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("persist revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether token was revoked and has not expired yet.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, RevocationKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("load revocation: %w", err)
	}
	return n > 0, nil
}
