package votes

import "context"

// Caster sends a vote to the backend.
// The direction is the one the user requested; the backend applies the same
// toggle rules as Transition (same direction clears, other direction replaces).
// Any non-nil error is treated as a failed vote.
type Caster interface {
	CastVote(ctx context.Context, subject Subject, direction Direction) error
}

// CasterFunc adapts a function to the Caster interface
type CasterFunc func(ctx context.Context, subject Subject, direction Direction) error

// CastVote calls f
func (f CasterFunc) CastVote(ctx context.Context, subject Subject, direction Direction) error {
	return f(ctx, subject, direction)
}

// Authenticator gates voting on the viewer being logged in
type Authenticator interface {
	IsAuthenticated() bool
}

// AuthenticatorFunc adapts a function to the Authenticator interface
type AuthenticatorFunc func() bool

// IsAuthenticated calls f
func (f AuthenticatorFunc) IsAuthenticated() bool {
	return f()
}
