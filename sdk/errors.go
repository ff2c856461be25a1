package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoSession is returned by calls that need a signed-in user when no
	// session is stored.
	ErrNoSession = errors.New("no active session")
	// ErrSessionExpired is returned when the access token was rejected and
	// the refresh token could not renew it. The stored session is cleared.
	ErrSessionExpired = errors.New("session expired")
)

// APIError is a non-2xx reply from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	message := e.Message
	if message == "" {
		message = http.StatusText(e.StatusCode)
	}
	if e.Code == "" {
		return fmt.Sprintf("taskify: %d: %s", e.StatusCode, message)
	}
	return fmt.Sprintf("taskify: %d %s: %s", e.StatusCode, e.Code, message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
