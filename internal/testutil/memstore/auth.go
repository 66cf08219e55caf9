package memstore

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/config"
	"github.com/smallbiznis/decisionlog/internal/jwt"
	"github.com/smallbiznis/decisionlog/internal/localauth"
	"github.com/smallbiznis/decisionlog/internal/password"
)

// TestSecret signs tokens issued by AuthBackend.
const TestSecret = "memstore-test-secret-at-least-32-bytes-long"

// TestBaseURL is the auth base URL used by AuthBackend.
const TestBaseURL = "http://decisionlog.test"

// FastHashing keeps argon2 cheap in tests.
var FastHashing = password.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 16, SaltLen: 8}

// AuthBackend returns a local auth backend over the store together with a
// verifier that accepts its tokens.
func (s *Store) AuthBackend() (*localauth.Backend, *jwt.Verifier, error) {
	cfg := config.Config{
		SupabaseURL:       TestBaseURL,
		JWTSecret:         TestSecret,
		AccessTokenTTL:    time.Hour,
		RefreshTokenTTL:   24 * time.Hour,
		RefreshTokenBytes: 32,
	}

	generator, err := jwt.NewGenerator([]byte(cfg.JWTSecret), cfg.Issuer(), cfg.AccessTokenTTL)
	if err != nil {
		return nil, nil, err
	}
	verifier := jwt.NewVerifier(cfg.JWTSecret, cfg.SupabaseURL, nil)

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, nil, err
	}

	backend, err := localauth.New(
		s.Identities(),
		s.RefreshTokens(),
		password.NewHasher(FastHashing),
		generator,
		verifier,
		node,
		cfg,
		zap.NewNop(),
	)
	if err != nil {
		return nil, nil, err
	}
	return backend, verifier, nil
}
