package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

// Error kinds rendered in the `error` field of API responses.
const (
	KindUnauthorized   = "unauthorized"
	KindForbidden      = "forbidden"
	KindNotFound       = "not_found"
	KindInvalidRequest = "invalid_request"
	KindUpstream       = "upstream_error"
)

// Error is a client-facing failure with an HTTP status and a detail string.
type Error struct {
	Kind   string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind string) bool {
	svcErr, ok := AsError(err)
	return ok && svcErr.Kind == kind
}

func Unauthorized(detail string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Detail: detail, Err: err}
}

func Forbidden(detail string) *Error {
	return &Error{Kind: KindForbidden, Status: http.StatusForbidden, Detail: detail}
}

func NotFound(detail string, err error) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Detail: detail, Err: err}
}

func InvalidRequest(detail string) *Error {
	return &Error{Kind: KindInvalidRequest, Status: http.StatusBadRequest, Detail: detail}
}

// Upstream passes the remote service's message through as a 400.
func Upstream(err error) *Error {
	detail := err.Error()
	var remote *domain.UpstreamError
	if errors.As(err, &remote) && remote.Message != "" {
		detail = remote.Message
	}
	return &Error{Kind: KindUpstream, Status: http.StatusBadRequest, Detail: detail, Err: err}
}

// storeError maps repository failures: missing rows become 404 with
// notFound as detail, remote rejections become 400, anything else is
// returned wrapped and rendered as 500.
func storeError(op string, err error, notFound string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return NotFound(notFound, err)
	}
	var remote *domain.UpstreamError
	if errors.As(err, &remote) && remote.Status < http.StatusInternalServerError {
		return Upstream(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
