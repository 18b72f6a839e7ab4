package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeRoomExpired         = "room_expired"
	ErrCodePasswordRequired    = "password_required"
	ErrCodeInvalidPassword     = "invalid_password"
	ErrCodeNotAdmin            = "not_admin"
	ErrCodeCannotKickSelf      = "cannot_kick_self"
	ErrCodeParticipantNotFound = "participant_not_found"
	ErrCodeBadRequest          = "bad_request"
)

// Failure kinds. Every *CoreError unwraps to exactly one of these.
var (
	ErrExpired      = errors.New("room expired")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	kind    error
}

func (e *CoreError) Error() string {
	return e.Message
}

// Unwrap exposes the failure kind to errors.Is.
func (e *CoreError) Unwrap() error {
	return e.kind
}

func coreError(kind error, code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg, kind: kind}
}

func errExpired(code string) *CoreError {
	return coreError(ErrExpired, ErrCodeRoomExpired, fmt.Sprintf("room %q does not exist or has expired", code))
}

func errBadRequest(format string, args ...any) *CoreError {
	return coreError(ErrInvalidInput, ErrCodeBadRequest, fmt.Sprintf(format, args...))
}

// ErrorCode returns the code of a *CoreError anywhere in err's chain, or "" if there is none.
func ErrorCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
