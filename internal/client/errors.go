package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation so callers never have to inspect
// response shapes themselves.
type ErrorKind string

const (
	// KindNetwork means no response arrived: DNS, refused connection, timeout.
	KindNetwork ErrorKind = "network_unavailable"
	// KindServer covers 5xx responses and undecodable bodies.
	KindServer ErrorKind = "server_error"
	// KindValidation is a 4xx rejection carrying per-field messages.
	KindValidation ErrorKind = "validation_failed"
	// KindInvalidCredentials is a 401 from a login attempt.
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	// KindUnauthorized is a 401 from any authenticated call.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindForbidden is a 403 ownership denial.
	KindForbidden ErrorKind = "forbidden"
	// KindUnauthenticated is the local fast-fail before any network access.
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindSessionExpired means a previously valid session was rejected.
	KindSessionExpired ErrorKind = "session_expired"
)

// Error is the failure variant of every client operation.
type Error struct {
	Kind    ErrorKind
	Status  int                 // HTTP status; zero when no response arrived
	Message string              // server-supplied when available
	Fields  map[string][]string // per-field validation messages, may be nil
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf extracts the classification from an error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err is a client error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
