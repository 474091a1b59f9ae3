package projector

import "errors"

// Domain-specific errors for the projector session.
var (
	// ErrTransportRequired is returned by NewSession without a transport.
	ErrTransportRequired = errors.New("projector: transport is required")

	// ErrStoreRequired is returned by NewSession without a state store.
	ErrStoreRequired = errors.New("projector: state store is required")

	// ErrInvalidInterval is returned when a configured delay is not positive.
	ErrInvalidInterval = errors.New("projector: intervals must be positive")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("projector: session already started")

	// ErrStopped is returned by Start after the session has been stopped.
	ErrStopped = errors.New("projector: session stopped")

	// ErrDecodeAnomaly marks a reply or user write whose shape was not
	// understood. The offending write is skipped.
	ErrDecodeAnomaly = errors.New("projector: unexpected payload")
)
