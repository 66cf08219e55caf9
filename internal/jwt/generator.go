package jwt

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Generator signs HS256 access tokens for the local auth backend. Tokens
// carry the same issuer and audience the Verifier expects.
type Generator struct {
	signer    jose.Signer
	issuer    string
	accessTTL time.Duration
}

// NewGenerator constructs a JWT generator.
func NewGenerator(secret []byte, issuer string, accessTTL time.Duration) (*Generator, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("new signer: %w", err)
	}
	return &Generator{signer: signer, issuer: issuer, accessTTL: accessTTL}, nil
}

// AccessTTL is the lifetime of issued tokens.
func (g *Generator) AccessTTL() time.Duration {
	return g.accessTTL
}

// GenerateAccessToken produces a signed JWT for the subject.
func (g *Generator) GenerateAccessToken(subject, email, sessionID string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(g.accessTTL)

	stdClaims := gojwt.Claims{
		Subject:   subject,
		Audience:  gojwt.Audience{Audience},
		Issuer:    g.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(expiresAt),
		NotBefore: gojwt.NewNumericDate(now),
	}
	custom := accessTokenClaims{
		Email:     email,
		Role:      Audience,
		SessionID: sessionID,
	}

	token, err := gojwt.Signed(g.signer).Claims(stdClaims).Claims(custom).Serialize()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("serialize jwt: %w", err)
	}
	return token, expiresAt, nil
}
