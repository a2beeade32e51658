package common

import (
	"errors"
	"fmt"
)

// Category classifies client-side failures. Callers branch on category,
// never on message text.
type Category string

const (
	// CategoryValidation marks input rejected before any I/O happened.
	CategoryValidation Category = "VALIDATION"
	// CategoryRouteNotFound marks a remote 404; diagnostic only, callers
	// treat it like any other remote failure.
	CategoryRouteNotFound Category = "ROUTE_NOT_FOUND"
	// CategoryRemote marks a non-success response from the backend.
	CategoryRemote Category = "REMOTE"
	// CategoryPersistence marks a local store read/write failure.
	CategoryPersistence Category = "PERSISTENCE"
	// CategoryUnavailable marks a missing optional capability (push
	// messaging, location). Never fatal to a workflow.
	CategoryUnavailable Category = "UNAVAILABLE"
)

// ClientError represents a standard structure for agent errors.
type ClientError struct {
	Category   Category
	StatusCode int // HTTP status for remote failures, zero otherwise
	Message    string
}

func (e *ClientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ClientError: Category=%s, StatusCode=%d, Message=%s", e.Category, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ClientError: Category=%s, Message=%s", e.Category, e.Message)
}

func NewClientError(category Category, message string) *ClientError {
	return &ClientError{Category: category, Message: message}
}

func (e *ClientError) WithStatus(statusCode int) *ClientError {
	e.StatusCode = statusCode
	return e
}

// NewValidationError builds the error shown inline for bad input.
func NewValidationError(message string) *ClientError {
	return NewClientError(CategoryValidation, message)
}

// NewPersistenceError wraps a local store failure.
func NewPersistenceError(message string) *ClientError {
	return NewClientError(CategoryPersistence, message)
}

// IsClientError unwraps a *ClientError from err.
func IsClientError(err error) (*ClientError, bool) {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr, true
	}
	return nil, false
}

// CategoryOf returns the error's category, or CategoryRemote for
// uncategorized errors coming back from the network layer.
func CategoryOf(err error) Category {
	if clientErr, ok := IsClientError(err); ok {
		return clientErr.Category
	}
	return CategoryRemote
}
