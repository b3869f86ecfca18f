// Package apperror defines the error taxonomy shared by every layer.
//
// ERROR CATEGORIES:
// The API surfaces exactly three kinds of failure to clients:
//
//	ErrUnauthorized → 401 (bad or missing credentials)
//	ErrNotFound     → 404 (unknown post, user or student id)
//	ErrValidation   → 400 (bad image extension, missing upload, grade out of range, duplicate email)
//
// Services return *AppError values that wrap one of the sentinels.
// The HTTP layer (handler.writeError) uses errors.Is to pick the status code,
// so services never need to know about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel category
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
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

// Unauthorized returns an AppError for rejected credentials.
// HTTP handlers map this to 401 and add a WWW-Authenticate challenge.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
