package session

import (
	"errors"
	"fmt"
)

var (
	// ErrEncodeFailure reports a message or reply that the codec could not serialize.
	ErrEncodeFailure = errors.New("session: encode failure")
	// ErrDecodeFailure reports inbound or reply bytes that did not match the expected type.
	ErrDecodeFailure = errors.New("session: decode failure")
	// ErrServiceMismatch reports a peer that could not be reached or does not speak this protocol.
	ErrServiceMismatch = errors.New("session: service type mismatch")
	// ErrConnectionClosed completes every exchange still outstanding when a session ends.
	ErrConnectionClosed = errors.New("session: connection closed")
	// ErrCancelled is the cause recorded by an explicit Cancel.
	ErrCancelled = errors.New("session: cancelled")

	ErrAlreadyConfigured = errors.New("session: transport already configured")
	ErrNotActivated      = errors.New("session: not activated")

	errPeerInterrupted = errors.New("session: peer interrupted")
)

func encodeFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrEncodeFailure, err)
}

func decodeFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrDecodeFailure, err)
}

func serviceMismatch(err error) error {
	if errors.Is(err, ErrServiceMismatch) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrServiceMismatch, err)
}

func connectionClosed(cause error) error {
	if errors.Is(cause, ErrConnectionClosed) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
}
