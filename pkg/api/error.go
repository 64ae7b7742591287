package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed backend call.
type Kind string

const (
	// KindTimeout means the request deadline elapsed before a response arrived.
	KindTimeout Kind = "timeout"

	// KindNetworkUnavailable means a connection could not be established.
	KindNetworkUnavailable Kind = "network_unavailable"

	// KindProtocolMismatch means the server answered with a non-JSON body
	// where JSON was expected.
	KindProtocolMismatch Kind = "protocol_mismatch"

	// KindRemoteRejected means the server returned an error status.
	KindRemoteRejected Kind = "remote_rejected"

	// KindUnauthenticated means the caller's identity could not be resolved.
	KindUnauthenticated Kind = "unauthenticated"
)

// Error is a classified backend failure.
//
// Message is safe to show to a user for KindRemoteRejected (it carries the
// server-provided detail when present). For the network kinds callers should
// prefer a generic "check your connection" message.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Status is the HTTP status code, if the server responded.
	Status int

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api: %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// IsNetwork reports whether the error is a connectivity-class failure
// (timeout or unreachable backend) rather than a server decision.
func (e *Error) IsNetwork() bool {
	return e.Kind == KindTimeout || e.Kind == KindNetworkUnavailable
}

// KindOf extracts the failure kind from err. Returns "" when err is not an
// *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// newRejected builds a RemoteRejected error from a status code and the
// server-provided detail message. An empty detail falls back to a generic
// message built from the status text.
func newRejected(status int, detail string) *Error {
	if detail == "" {
		detail = fmt.Sprintf("request failed: %s", http.StatusText(status))
	}
	kind := KindRemoteRejected
	if status == http.StatusUnauthorized {
		kind = KindUnauthenticated
	}
	return &Error{Kind: kind, Message: detail, Status: status}
}
