package appview

import "errors"

// Typed errors for AppView calls.
// These allow callers to use errors.Is() instead of matching status text.
var (
	// ErrUnauthorized indicates missing, invalid or expired credentials (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the viewer may not perform this action (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the post, comment or subject does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrBadRequest indicates the request was malformed or invalid (HTTP 400).
	ErrBadRequest = errors.New("bad request")

	// ErrConflict indicates the request conflicts with current state (HTTP 409).
	ErrConflict = errors.New("conflict")

	// ErrRateLimited indicates the AppView throttled the request (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidSubject indicates the vote subject URI or CID is malformed.
	// Returned before any request is sent.
	ErrInvalidSubject = errors.New("invalid vote subject")
)

// IsAuthError returns true if logging in again might help
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the requested record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the AppView rejected the request itself
// rather than failing to serve it
func IsClientError(err error) bool {
	return errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidSubject)
}
