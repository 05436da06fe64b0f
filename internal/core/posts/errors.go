package posts

import (
	"errors"
	"fmt"
)

// Sentinel errors for post view state
var (
	// ErrNotFound is returned when a post id is not in the feed
	ErrNotFound = errors.New("post not found")

	// ErrDuplicatePost is returned when a feed repeats a post id
	ErrDuplicatePost = errors.New("duplicate post in feed")
)

// ValidationError reports a post view the AppView sent with a missing or malformed field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if error is a validation error
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
