package service

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-user-api/pkg/apierror"
)

func newTestTokenService(t *testing.T, opts ...TokenServiceOption) *TokenService {
	t.Helper()

	tokens, err := NewTokenService("test-secret", opts...)
	require.NoError(t, err)
	return tokens
}

func sessionOptions(subject string) TokenOptions {
	return TokenOptions{
		ExpiresIn: time.Hour,
		Subject:   subject,
		Issuer:    SessionScope.Issuer,
		Audience:  SessionScope.Audience,
	}
}

func TestTokenServiceRoundTrip(t *testing.T) {
	t.Parallel()

	tokens := newTestTokenService(t)

	cases := []struct {
		name    string
		payload TokenPayload
		opts    TokenOptions
	}{
		{
			name:    "session token",
			payload: TokenPayload{UserID: 7, Name: "Ana", Email: "ana@example.com"},
			opts:    sessionOptions("7"),
		},
		{
			name:    "reset token",
			payload: TokenPayload{UserID: 9},
			opts:    TokenOptions{ExpiresIn: 30 * time.Minute, Subject: "9", Issuer: ResetScope.Issuer, Audience: ResetScope.Audience},
		},
		{
			name:    "custom scope",
			payload: TokenPayload{Name: "svc"},
			opts:    TokenOptions{ExpiresIn: time.Minute, Subject: "svc", Issuer: "internal", Audience: "jobs"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			signed, err := tokens.Issue(tc.payload, tc.opts)
			require.NoError(t, err)

			claims, err := tokens.Verify(signed, TokenScope{Issuer: tc.opts.Issuer, Audience: tc.opts.Audience})
			require.NoError(t, err)
			require.Equal(t, tc.payload, claims.TokenPayload)
			require.Equal(t, tc.opts.Subject, claims.Subject)
			require.Equal(t, tc.opts.Issuer, claims.Issuer)
			require.Equal(t, []string{tc.opts.Audience}, []string(claims.Audience))
			require.NotEmpty(t, claims.ID)
			require.WithinDuration(t, claims.IssuedAt.Add(tc.opts.ExpiresIn), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestTokenServiceRejects(t *testing.T) {
	t.Parallel()

	tokens := newTestTokenService(t)

	t.Run("session token checked against reset audience", func(t *testing.T) {
		signed, err := tokens.Issue(TokenPayload{UserID: 1}, sessionOptions("1"))
		require.NoError(t, err)

		_, err = tokens.Verify(signed, TokenScope{Issuer: "login", Audience: "users"})
		require.ErrorIs(t, err, ErrInvalidToken)
		require.Equal(t, http.StatusUnauthorized, apierror.Status(err))
	})

	t.Run("reset token used as session token", func(t *testing.T) {
		signed, err := tokens.Issue(TokenPayload{UserID: 1}, TokenOptions{
			ExpiresIn: time.Minute, Subject: "1", Issuer: ResetScope.Issuer, Audience: ResetScope.Audience,
		})
		require.NoError(t, err)

		require.False(t, tokens.IsValid(signed, SessionScope))
		require.True(t, tokens.IsValid(signed, ResetScope))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		signed, err := tokens.Issue(TokenPayload{}, sessionOptions("1"))
		require.NoError(t, err)

		_, err = tokens.Verify(signed, TokenScope{Issuer: "forget", Audience: "user"})
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("different secret", func(t *testing.T) {
		other, err := NewTokenService("another-secret")
		require.NoError(t, err)
		signed, err := other.Issue(TokenPayload{UserID: 1}, sessionOptions("1"))
		require.NoError(t, err)

		_, err = tokens.Verify(signed, SessionScope)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		past := newTestTokenService(t, WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
		signed, err := past.Issue(TokenPayload{UserID: 1}, sessionOptions("1"))
		require.NoError(t, err)

		_, err = tokens.Verify(signed, SessionScope)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("malformed token", func(t *testing.T) {
		require.False(t, tokens.IsValid("not.a.jwt", SessionScope))
		require.False(t, tokens.IsValid("", SessionScope))
	})
}

func TestTokenServiceIssueValidation(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService("")
	require.Error(t, err)

	tokens := newTestTokenService(t)
	_, err = tokens.Issue(TokenPayload{}, TokenOptions{ExpiresIn: 0, Issuer: "login", Audience: "user"})
	require.Error(t, err)
	_, err = tokens.Issue(TokenPayload{}, TokenOptions{ExpiresIn: time.Minute})
	require.Error(t, err)
}
