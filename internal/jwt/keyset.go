package jwt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrKeyNotFound is returned when no key in the published set matches a kid.
var ErrKeyNotFound = errors.New("jwks: key not found")

const (
	maxJWKSBody = 1 << 20

	defaultFetchTimeout = 10 * time.Second

	// Forced refetches on an unknown kid are limited per base URL.
	refetchInterval = 30 * time.Second
	refetchBurst    = 3
)

// JWKSURL returns the key set location for an auth base URL.
func JWKSURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/auth/v1/.well-known/jwks.json"
}

// KeySetCache holds published key sets per auth base URL. Entries never
// expire; a lookup for an unknown kid forces one refetch, subject to a
// per-URL refetch budget.
type KeySetCache struct {
	client *http.Client

	mu            sync.RWMutex
	sets          map[string]jose.JSONWebKeySet
	refetchLimits map[string]*rate.Limiter
	group         singleflight.Group
}

// NewKeySetCache creates an empty cache. A nil client uses http.DefaultClient.
func NewKeySetCache(client *http.Client) *KeySetCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &KeySetCache{
		client:        client,
		sets:          make(map[string]jose.JSONWebKeySet),
		refetchLimits: make(map[string]*rate.Limiter),
	}
}

// Get returns the cached key set, fetching it on first use.
func (c *KeySetCache) Get(ctx context.Context, baseURL string) (jose.JSONWebKeySet, error) {
	set, _, err := c.get(ctx, baseURL)
	return set, err
}

func (c *KeySetCache) get(ctx context.Context, baseURL string) (jose.JSONWebKeySet, bool, error) {
	if set, ok := c.cached(baseURL); ok {
		return set, false, nil
	}

	v, err, _ := c.group.Do("get:"+baseURL, func() (any, error) {
		if set, ok := c.cached(baseURL); ok {
			return set, nil
		}
		return c.load(ctx, baseURL)
	})
	if err != nil {
		return jose.JSONWebKeySet{}, false, err
	}
	return v.(jose.JSONWebKeySet), true, nil
}

// Refresh refetches the key set and replaces the cached entry.
func (c *KeySetCache) Refresh(ctx context.Context, baseURL string) (jose.JSONWebKeySet, error) {
	v, err, _ := c.group.Do("refresh:"+baseURL, func() (any, error) {
		return c.load(ctx, baseURL)
	})
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}
	return v.(jose.JSONWebKeySet), nil
}

// Key selects the key with the given kid, refetching once on a miss.
func (c *KeySetCache) Key(ctx context.Context, baseURL, kid string) (jose.JSONWebKey, error) {
	set, fresh, err := c.get(ctx, baseURL)
	if err != nil {
		return jose.JSONWebKey{}, err
	}
	if keys := set.Key(kid); len(keys) > 0 {
		return keys[0], nil
	}
	if fresh || !c.allowRefetch(baseURL) {
		return jose.JSONWebKey{}, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}

	set, err = c.Refresh(ctx, baseURL)
	if err != nil {
		return jose.JSONWebKey{}, err
	}
	if keys := set.Key(kid); len(keys) > 0 {
		return keys[0], nil
	}
	return jose.JSONWebKey{}, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
}

func (c *KeySetCache) cached(baseURL string) (jose.JSONWebKeySet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.sets[baseURL]
	return set, ok
}

func (c *KeySetCache) allowRefetch(baseURL string) bool {
	c.mu.Lock()
	limiter, ok := c.refetchLimits[baseURL]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(refetchInterval), refetchBurst)
		c.refetchLimits[baseURL] = limiter
	}
	c.mu.Unlock()
	return limiter.Allow()
}

// load runs inside a shared flight, so it is detached from the cancellation
// of whichever caller started it.
func (c *KeySetCache) load(ctx context.Context, baseURL string) (jose.JSONWebKeySet, error) {
	timeout := c.client.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	set, err := c.fetch(ctx, JWKSURL(baseURL))
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}
	c.mu.Lock()
	c.sets[baseURL] = set
	c.mu.Unlock()
	return set, nil
}

func (c *KeySetCache) fetch(ctx context.Context, url string) (jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return jose.JSONWebKeySet{}, fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBody)).Decode(&set); err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("decode jwks: %w", err)
	}
	return set, nil
}
