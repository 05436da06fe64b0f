// Package session holds the viewer's login state: their DID and access token.
// It is the login gate votes check before any optimistic change.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/jonboulle/clockwork"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	// ErrInvalidDID indicates the account DID is malformed
	ErrInvalidDID = errors.New("invalid account DID")

	// ErrInvalidToken indicates the access token is not a parseable JWT
	ErrInvalidToken = errors.New("invalid access token")

	// ErrTokenExpired indicates the access token's exp claim is already in the past
	ErrTokenExpired = errors.New("access token expired")
)

// Session is safe for concurrent use. The zero value is not usable; call New.
type Session struct {
	clock  clockwork.Clock
	logger *slog.Logger

	mu        sync.RWMutex
	did       string
	token     string
	expiresAt time.Time // Zero when the token carries no exp claim
}

// New creates a logged-out session.
// clock may be nil to use the real clock.
func New(clock clockwork.Clock, logger *slog.Logger) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{clock: clock, logger: logger}
}

// Login installs credentials. The token's signature is not checked here:
// the AppView verifies it. Only its exp claim is read.
func (s *Session) Login(did, accessToken string) error {
	if _, err := syntax.ParseDID(did); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}

	accessToken = strings.TrimSpace(strings.TrimPrefix(accessToken, "Bearer "))
	expiresAt, err := tokenExpiry(accessToken)
	if err != nil {
		return err
	}
	if !expiresAt.IsZero() && !s.clock.Now().Before(expiresAt) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, expiresAt.Format(time.RFC3339))
	}

	s.mu.Lock()
	s.did = did
	s.token = accessToken
	s.expiresAt = expiresAt
	s.mu.Unlock()

	s.logger.Info("session started", "did", did, "expires_at", expiresAt)
	return nil
}

// Logout clears the credentials
func (s *Session) Logout() {
	s.mu.Lock()
	did := s.did
	s.did = ""
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if did != "" {
		s.logger.Info("session ended", "did", did)
	}
}

// IsAuthenticated reports whether a token is held and has not expired
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked()
}

// AccessToken returns the token, or "" when logged out or expired
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validLocked() {
		return ""
	}
	return s.token
}

// DID returns the logged-in account's DID, or ""
func (s *Session) DID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.did
}

// ExpiresAt returns the token expiry; zero if unknown or logged out
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) validLocked() bool {
	if s.token == "" {
		return false
	}
	return s.expiresAt.IsZero() || s.clock.Now().Before(s.expiresAt)
}

// tokenExpiry reads the exp claim without verifying the signature
func tokenExpiry(accessToken string) (time.Time, error) {
	if accessToken == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	tok, err := jwt.ParseInsecure([]byte(accessToken))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return tok.Expiration(), nil
}
