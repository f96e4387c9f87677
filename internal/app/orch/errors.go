package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/Prompter/internal/domain"
)

const (
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidPayload = "INVALID_PAYLOAD"
	CodeRoleConflict   = "ROLE_CONFLICT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// APIError is the body of an error notification.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to protocol error codes. Unknown errors are
// reported as INTERNAL without leaking their text.
func MapError(err error) *APIError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrProjectNotFound), errors.Is(err, domain.ErrConnectionNotFound):
		return &APIError{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrReadOnlyField),
		errors.Is(err, domain.ErrUnknownRole),
		errors.Is(err, domain.ErrProjectNameEmpty),
		errors.Is(err, domain.ErrProjectNameTooLong):
		return &APIError{Code: CodeInvalidPayload, Message: err.Error()}
	case errors.Is(err, domain.ErrRoleConflict):
		return &APIError{Code: CodeRoleConflict, Message: err.Error()}
	case errors.Is(err, ErrRateLimited):
		return &APIError{Code: CodeRateLimited, Message: err.Error()}
	default:
		return &APIError{Code: CodeInternal, Message: "internal error"}
	}
}
