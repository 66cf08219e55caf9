package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials signals a failed email/password check.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrRefreshInvalid covers unknown, revoked and expired refresh tokens.
	ErrRefreshInvalid = errors.New("auth: invalid refresh token")
)

// UpstreamError carries a message reported by the remote auth or data
// service. The message is safe to show to API clients.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}
