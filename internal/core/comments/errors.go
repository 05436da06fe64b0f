package comments

import (
	"errors"
	"fmt"
)

var (
	// ErrCommentNotFound indicates the id is not in the tree.
	// Ids are fixed when the tree is built, so this is a caller bug.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrDuplicateComment indicates the AppView returned the same comment twice
	ErrDuplicateComment = errors.New("duplicate comment in thread")

	// ErrCommentDeleted indicates a vote on a deleted comment
	ErrCommentDeleted = errors.New("comment is deleted")

	// ErrInvalidComment indicates a comment view with a missing or malformed field
	ErrInvalidComment = errors.New("invalid comment")
)

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCommentNotFound)
}

func invalidComment(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidComment, field, fmt.Sprintf(format, args...))
}
