// Package common defines shared constants, sentinel errors and the error
// classification used by the client, the transport and the server. Callers
// should use errors.Is to match these values.
package common

import (
	"context"
	"errors"
)

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Transport errors.
	ErrConnectivity = errors.New("server unavailable")
	ErrTimeout      = errors.New("request timed out")
	ErrServer       = errors.New("server error")
	ErrProtocol     = errors.New("protocol error")

	// Authentication errors. ErrAccessDenied is returned when credentials were
	// accepted but the account has no read access or no token was issued.
	ErrUnauthorized = errors.New("unauthorized")
	ErrAccessDenied = errors.New("access denied")
	ErrInvalidToken = errors.New("invalid token")

	// Local store errors.
	ErrStore = errors.New("local store error")

	// Session errors.
	ErrSyncActive  = errors.New("sync already active")
	ErrUnsupported = errors.New("operation not supported by transport")
)

// Code is the single classified error code reported to callers of a session.
type Code string

const (
	CodeOK           Code = "ok"
	CodeConnectivity Code = "connectivity"
	CodeTimeout      Code = "timeout"
	CodeServer       Code = "server"
	CodeAuth         Code = "auth"
	CodeProtocol     Code = "protocol"
	CodeStore        Code = "store"
	CodeSyncActive   Code = "sync_active"
	CodeUnsupported  Code = "unsupported"
	CodeInternal     Code = "internal"
)

// Classify maps an error chain to its Code. A nil error is CodeOK.
func Classify(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrSyncActive):
		return CodeSyncActive
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrAccessDenied), errors.Is(err, ErrInvalidToken):
		return CodeAuth
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrConnectivity), errors.Is(err, context.Canceled):
		return CodeConnectivity
	case errors.Is(err, ErrServer):
		return CodeServer
	case errors.Is(err, ErrProtocol):
		return CodeProtocol
	case errors.Is(err, ErrStore):
		return CodeStore
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	default:
		return CodeInternal
	}
}

// Retryable reports whether the UI should offer a retry for the code.
// Protocol and store problems are diagnostics only.
func Retryable(c Code) bool {
	switch c {
	case CodeConnectivity, CodeTimeout, CodeServer, CodeAuth:
		return true
	default:
		return false
	}
}
