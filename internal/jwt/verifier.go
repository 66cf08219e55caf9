package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Audience is the `aud` value carried by end-user access tokens.
const Audience = "authenticated"

// ErrTokenRejected is the single failure outcome of Verify.
var ErrTokenRejected = errors.New("token rejected")

var (
	sharedSecretAlgorithms = []jose.SignatureAlgorithm{jose.HS256}
	publicKeyAlgorithms    = []jose.SignatureAlgorithm{jose.RS256, jose.ES256}
)

// Claims are the verified contents of an access token.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	SessionID string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	Expiry    time.Time
}

type accessTokenClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// Verifier checks access tokens against the shared secret first and the
// published key set second. Nothing is ever accepted unsigned.
type Verifier struct {
	secret  []byte
	baseURL string
	issuer  string
	keys    *KeySetCache
}

// NewVerifier builds a verifier for the auth server at baseURL. An empty
// secret skips the HS256 stage; a nil cache skips the key set stage.
func NewVerifier(secret, baseURL string, keys *KeySetCache) *Verifier {
	baseURL = strings.TrimRight(baseURL, "/")
	v := &Verifier{
		baseURL: baseURL,
		issuer:  baseURL + "/auth/v1",
		keys:    keys,
	}
	if secret != "" {
		v.secret = []byte(secret)
	}
	return v
}

// Issuer returns the expected `iss` claim.
func (v *Verifier) Issuer() string {
	return v.issuer
}

// Verify returns the token's claims or an error wrapping ErrTokenRejected.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenRejected)
	}

	var causes []string
	if len(v.secret) > 0 {
		claims, err := v.verifySharedSecret(token)
		if err == nil {
			return claims, nil
		}
		causes = append(causes, "hs256: "+err.Error())
	}

	if v.keys != nil {
		claims, err := v.verifyKeySet(ctx, token)
		if err == nil {
			return claims, nil
		}
		causes = append(causes, "jwks: "+err.Error())
	}

	if len(causes) == 0 {
		return nil, fmt.Errorf("%w: no verification method configured", ErrTokenRejected)
	}
	return nil, fmt.Errorf("%w: %s", ErrTokenRejected, strings.Join(causes, "; "))
}

func (v *Verifier) verifySharedSecret(token string) (*Claims, error) {
	parsed, err := gojwt.ParseSigned(token, sharedSecretAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return v.claims(parsed, v.secret)
}

func (v *Verifier) verifyKeySet(ctx context.Context, token string) (*Claims, error) {
	parsed, err := gojwt.ParseSigned(token, publicKeyAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if len(parsed.Headers) == 0 || parsed.Headers[0].KeyID == "" {
		return nil, errors.New("token has no key id")
	}

	key, err := v.keys.Key(ctx, v.baseURL, parsed.Headers[0].KeyID)
	if err != nil {
		return nil, err
	}
	return v.claims(parsed, key.Key)
}

func (v *Verifier) claims(parsed *gojwt.JSONWebToken, key any) (*Claims, error) {
	var std gojwt.Claims
	var custom accessTokenClaims
	if err := parsed.Claims(key, &std, &custom); err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	if std.Expiry == nil {
		return nil, errors.New("token has no expiry")
	}
	if err := std.Validate(gojwt.Expected{
		Issuer:      v.issuer,
		AnyAudience: gojwt.Audience{Audience},
		Time:        time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("validate claims: %w", err)
	}
	if strings.TrimSpace(std.Subject) == "" {
		return nil, errors.New("token has no subject")
	}

	claims := &Claims{
		Subject:   std.Subject,
		Email:     custom.Email,
		Role:      custom.Role,
		SessionID: custom.SessionID,
		Issuer:    std.Issuer,
		Audience:  []string(std.Audience),
		Expiry:    std.Expiry.Time(),
	}
	if std.IssuedAt != nil {
		claims.IssuedAt = std.IssuedAt.Time()
	}
	return claims, nil
}
