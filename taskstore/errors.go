package taskstore

import (
	"errors"
	"fmt"

	"github.com/example/taskify/sdk"
)

var (
	// ErrNoSession is returned when an operation needs a signed-in user and
	// there is none. Nothing is changed locally.
	ErrNoSession = errors.New("no active session")
	// ErrRemoteRejected wraps every failure reported by the backend.
	ErrRemoteRejected = errors.New("remote rejected the request")
	// ErrNotFoundLocally is returned by status changes on an id the store
	// does not hold. No remote call is made.
	ErrNotFoundLocally = errors.New("task not found locally")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("task store is closed")
)

// remoteError classifies an error from the Remote. A lost session is
// reported as ErrNoSession, anything else as ErrRemoteRejected.
func remoteError(err error) error {
	if errors.Is(err, sdk.ErrNoSession) || errors.Is(err, sdk.ErrSessionExpired) {
		return fmt.Errorf("%w: %w", ErrNoSession, err)
	}
	return fmt.Errorf("%w: %w", ErrRemoteRejected, err)
}
