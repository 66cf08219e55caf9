// Package supabase talks to a Supabase project: GoTrue for identities and
// PostgREST for the application tables.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/decisionlog/internal/domain"
)

const maxResponseBody = 1 << 20

// Client performs authenticated calls with the service role key.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient constructs a Client. A nil httpClient gets a 10s timeout.
func NewClient(baseURL, serviceKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: httpClient,
	}
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// bearer overrides the service key in the Authorization header.
	bearer string
	prefer []string
}

// send executes r and decodes a 2xx JSON body into out when out is non-nil.
// Non-2xx responses become *domain.UpstreamError.
func (c *Client) send(ctx context.Context, r request, out any) (http.Header, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	bearer := r.bearer
	if bearer == "" {
		bearer = c.serviceKey
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", r.method, r.path, err)
	}

	if resp.StatusCode >= 300 {
		return resp.Header, &domain.UpstreamError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
		}
	}
	return resp.Header, nil
}

// errorMessage extracts the human readable part of a GoTrue or PostgREST
// error body.
func errorMessage(status int, raw []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, key := range []string{"msg", "message", "error_description", "error"} {
			if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(status)
}

// parseCount reads the total from a PostgREST Content-Range header such as
// "0-9/42" or "*/0".
func parseCount(header http.Header) (int64, error) {
	value := header.Get("Content-Range")
	idx := strings.LastIndex(value, "/")
	if idx < 0 {
		return 0, fmt.Errorf("content-range missing total: %q", value)
	}
	total := value[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("content-range total unknown: %q", value)
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse content-range %q: %w", value, err)
	}
	return n, nil
}
