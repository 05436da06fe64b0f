package threads

import "errors"

var (
	// ErrInvalidPostURI indicates the requested post is not an at:// URI
	ErrInvalidPostURI = errors.New("invalid post URI")

	// ErrMissingPost indicates the AppView answered without the post itself
	ErrMissingPost = errors.New("response has no post")
)
