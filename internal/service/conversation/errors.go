package conversation

import (
	"errors"

	"pairchat/internal/protocol/envelope"
	"pairchat/internal/protocol/pairing"
)

var (
	// ErrInvalidIdentity: self pairing or an id outside 1..pairing.MaxPartyID.
	ErrInvalidIdentity = pairing.ErrInvalidIdentity
	// ErrAuthentication: the thread envelope failed to open. Never retried.
	ErrAuthentication = envelope.ErrAuthentication

	ErrForbidden      = errors.New("forbidden: not a thread participant")
	ErrInvalidContent = errors.New("invalid message content")
	ErrInvalidPage    = errors.New("invalid pagination")
	ErrNotFound       = errors.New("not found")
	// ErrStorage wraps I/O failures of the blob or metadata store that
	// persisted after the configured retries, lock timeouts included.
	ErrStorage = errors.New("storage failure")
)

// IsRetryable reports whether the caller may retry the operation as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage) && !errors.Is(err, ErrAuthentication)
}
