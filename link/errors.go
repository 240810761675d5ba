package link

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("link config is nil")

	// ErrNotActive indicates that a send was attempted while the link has
	// no established socket. The message was not sent.
	ErrNotActive = errors.New("link is not active")

	// ErrStopped indicates that the manager has been told to exit and no
	// longer accepts work.
	ErrStopped = errors.New("link manager stopped")

	// ErrInvalidTransition is returned when an attempt is made to
	// transition the link state to an invalid state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrHandlerNil indicates that no frame handler was provided.
	ErrHandlerNil = errors.New("frame handler is nil")
)
