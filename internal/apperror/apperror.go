// Package apperror defines the domain errors shared by every layer.
//
// Services return these; handlers map the sentinels to HTTP status codes with
// errors.Is. The remote-sync sentinels (ErrAuth, ErrRateLimited, ErrTransient,
// ErrNoCredential) decide how a sync pass reacts to a failed GitHub call.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrAuth means GitHub rejected the stored credential. Not retried.
	ErrAuth = errors.New("remote credential rejected")
	// ErrRateLimited means the GitHub quota is exhausted; the pass aborts.
	ErrRateLimited = errors.New("remote rate limit exhausted")
	// ErrTransient covers network failures, call timeouts and 5xx responses.
	ErrTransient = errors.New("transient remote failure")
	// ErrNoCredential means the user never connected a GitHub token.
	ErrNoCredential = errors.New("no access credential")
)

type AppError struct {
	Err     error  // sentinel
	Cause   error  // Optional: underlying error (e.g. the go-github error)
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause so errors.Is / errors.As
// can match either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Auth wraps a credential rejection reported by GitHub.
func Auth(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Cause:   cause,
		Message: fmt.Sprintf("%s: GitHub rejected the access token, reconnect required", op),
	}
}

// RateLimited wraps a primary or secondary rate-limit response.
func RateLimited(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Cause:   cause,
		Message: fmt.Sprintf("%s: GitHub rate limit exhausted, try again later", op),
	}
}

// Transient wraps a failure worth retrying.
func Transient(op string, cause error) *AppError {
	msg := fmt.Sprintf("%s: transient GitHub failure", op)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &AppError{
		Err:     ErrTransient,
		Cause:   cause,
		Message: msg,
	}
}

func NoCredential(userID string) *AppError {
	return &AppError{
		Err:     ErrNoCredential,
		Message: fmt.Sprintf("user %s has no GitHub access token, re-authenticate", userID),
	}
}

// IsFatalForSync reports whether err must abort a whole sync pass rather
// than degrade a single repository.
func IsFatalForSync(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNoCredential)
}
