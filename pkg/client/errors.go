package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTargets is returned if all Locate targets have been tried.
	ErrNoTargets = errors.New("no targets available")

	// ErrProtocolAnomaly is wrapped by failures caused by a response that did
	// not contain exactly one JSON object.
	ErrProtocolAnomaly = errors.New("protocol anomaly")

	// ErrIncompleteBootstrap is wrapped by a BootstrapFailure when the
	// server's reply lacks required fields.
	ErrIncompleteBootstrap = errors.New("incomplete bootstrap response")
)

// TransportFailure is returned when a request/response exchange with the
// server fails for any reason. It is never retried.
type TransportFailure struct {
	// URL is the endpoint the exchange was sent to.
	URL string
	// Path is the endpoint path relative to the server.
	Path string
	// Timestamp is the client time (ms since epoch) when the exchange began.
	Timestamp int64
	// Err is the underlying cause.
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("timestamp=%d: exchange with %s failed: %v", e.Timestamp, e.URL, e.Err)
}

func (e *TransportFailure) Unwrap() error {
	return e.Err
}

// BootstrapFailure is returned when the session cannot be established. There
// is no usable test identity after a BootstrapFailure.
type BootstrapFailure struct {
	// Server is the server base URL, if known.
	Server string
	// Timestamp is the client time (ms since epoch) of the attempt.
	Timestamp int64
	// Err is the underlying cause.
	Err error
}

func (e *BootstrapFailure) Error() string {
	return fmt.Sprintf("timestamp=%d: failed to begin communication with server at %s: %v",
		e.Timestamp, e.Server, e.Err)
}

func (e *BootstrapFailure) Unwrap() error {
	return e.Err
}
