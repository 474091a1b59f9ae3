// Package pjlink implements a PJLink class 1 client for network projectors.
//
// PJLink is a line-oriented command/response protocol served on TCP port
// 4352. The client keeps one socket open to the projector and serialises
// every request through a single worker goroutine, so at most one exchange
// is on the wire at a time:
//
//	caller ──► request queue ──► worker ──► "%1POWR ?\r" ──► projector
//	   ▲                           │
//	   └──── ReplyFunc(value, err) ◄┘ ◄── "%1POWR=1\r"
//
// Every request method takes a ReplyFunc that is invoked exactly once,
// including when the queue is full or the client has been closed.
//
// Authentication:
//
// When the projector greets with "PJLINK 1 <seed>", the first command line of
// the connection is prefixed with the lowercase hex MD5 digest of
// seed+password. A greeting of "PJLINK 0" disables authentication.
// "PJLINK ERRA" is reported as ErrAuthFailed.
//
// Connection handling:
//
// The socket is dialled lazily by the first request and re-dialled by the
// next request after any I/O failure. There is no background reconnect loop;
// callers decide when to retry.
package pjlink
