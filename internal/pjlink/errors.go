package pjlink

import "errors"

// Domain-specific errors for PJLink operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the socket cannot be opened or the
	// greeting is not a PJLink greeting.
	ErrConnectionFailed = errors.New("pjlink: connection failed")

	// ErrAuthFailed is returned when the projector answers "PJLINK ERRA".
	ErrAuthFailed = errors.New("pjlink: authentication failed")

	// ErrPasswordRequired is returned when the projector demands
	// authentication but no password is configured.
	ErrPasswordRequired = errors.New("pjlink: projector requires a password")

	// ErrClosed is returned for requests issued after, or pending at, Close.
	ErrClosed = errors.New("pjlink: client closed")

	// ErrQueueFull is returned when the request queue cannot accept more work.
	ErrQueueFull = errors.New("pjlink: request queue full")

	// ErrMalformedReply is returned when a reply line cannot be parsed.
	ErrMalformedReply = errors.New("pjlink: malformed reply")

	// ErrInvalidParameter is returned when a set command argument is rejected
	// locally before being sent.
	ErrInvalidParameter = errors.New("pjlink: invalid parameter")

	// ErrUndefinedCommand is the projector's ERR1 reply.
	ErrUndefinedCommand = errors.New("pjlink: undefined command (ERR1)")

	// ErrOutOfParameter is the projector's ERR2 reply.
	ErrOutOfParameter = errors.New("pjlink: out of parameter (ERR2)")

	// ErrUnavailableTime is the projector's ERR3 reply.
	ErrUnavailableTime = errors.New("pjlink: unavailable time (ERR3)")

	// ErrProjectorFailure is the projector's ERR4 reply.
	ErrProjectorFailure = errors.New("pjlink: projector or display failure (ERR4)")
)

// errNoReply marks an exchange that failed before any reply byte arrived,
// typically because the projector closed an idle session.
var errNoReply = errors.New("pjlink: connection closed before reply")

// replyErrors maps the projector's error replies to sentinel errors.
var replyErrors = map[string]error{
	"ERR1": ErrUndefinedCommand,
	"ERR2": ErrOutOfParameter,
	"ERR3": ErrUnavailableTime,
	"ERR4": ErrProjectorFailure,
}
