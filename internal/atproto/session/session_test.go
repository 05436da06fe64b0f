package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDID = "did:plc:viewer123"

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// signedToken builds an HS256 access token; exp is omitted when zero
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	b := jwt.NewBuilder().Subject(testDID).Issuer("did:web:pds.test")
	if !exp.IsZero() {
		b = b.Expiration(exp)
	}
	tok, err := b.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("test-secret")))
	require.NoError(t, err)
	return string(signed)
}

func TestSession_StartsLoggedOut(t *testing.T) {
	s := New(clockwork.NewFakeClockAt(epoch), nil)

	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, "", s.AccessToken())
	assert.Equal(t, "", s.DID())
}

func TestSession_LoginAndExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := New(clock, nil)

	token := signedToken(t, epoch.Add(time.Hour))
	require.NoError(t, s.Login(testDID, "Bearer "+token))

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, token, s.AccessToken())
	assert.Equal(t, testDID, s.DID())
	assert.True(t, s.ExpiresAt().Equal(epoch.Add(time.Hour)))

	clock.Advance(59 * time.Minute)
	assert.True(t, s.IsAuthenticated())

	clock.Advance(time.Minute)
	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, "", s.AccessToken())
}

func TestSession_TokenWithoutExpiryNeverExpires(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := New(clock, nil)

	require.NoError(t, s.Login(testDID, signedToken(t, time.Time{})))
	clock.Advance(24 * 365 * time.Hour)

	assert.True(t, s.IsAuthenticated())
	assert.True(t, s.ExpiresAt().IsZero())
}

func TestSession_Logout(t *testing.T) {
	s := New(clockwork.NewFakeClockAt(epoch), nil)
	require.NoError(t, s.Login(testDID, signedToken(t, epoch.Add(time.Hour))))

	s.Logout()

	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, "", s.DID())
	assert.Equal(t, "", s.AccessToken())
}

func TestSession_LoginRejectsBadInput(t *testing.T) {
	s := New(clockwork.NewFakeClockAt(epoch), nil)

	tests := []struct {
		name    string
		did     string
		token   string
		wantErr error
	}{
		{"malformed DID", "plc:viewer", signedToken(t, epoch.Add(time.Hour)), ErrInvalidDID},
		{"empty token", testDID, "", ErrInvalidToken},
		{"not a JWT", testDID, "opaque-session-token", ErrInvalidToken},
		{"already expired", testDID, signedToken(t, epoch.Add(-time.Minute)), ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Login(tt.did, tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, s.IsAuthenticated())
		})
	}
}
