package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-user-api/pkg/apierror"
)

// TokenScope binds a token to one purpose. A token only verifies against the
// scope it was issued for.
type TokenScope struct {
	Issuer   string
	Audience string
}

var (
	SessionScope = TokenScope{Issuer: "login", Audience: "user"}
	ResetScope   = TokenScope{Issuer: "forget", Audience: "users"}
)

var ErrInvalidToken = apierror.New(apierror.CodeInvalidToken, "invalid token", "", http.StatusUnauthorized)

type TokenPayload struct {
	UserID int64  `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

type TokenOptions struct {
	ExpiresIn time.Duration
	Subject   string
	Issuer    string
	Audience  string
}

type TokenClaims struct {
	TokenPayload
	jwt.RegisteredClaims
}

type TokenService struct {
	secret []byte
	now    func() time.Time
}

type TokenServiceOption func(*TokenService)

// WithClock overrides the time source used for iat/exp and for verification.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) {
		s.now = now
	}
}

func NewTokenService(secret string, opts ...TokenServiceOption) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}

	s := &TokenService{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TokenService) Issue(payload TokenPayload, opts TokenOptions) (string, error) {
	if opts.ExpiresIn <= 0 {
		return "", fmt.Errorf("token expiry must be positive")
	}
	if opts.Issuer == "" || opts.Audience == "" {
		return "", fmt.Errorf("token issuer and audience are required")
	}

	now := s.now().UTC()
	claims := TokenClaims{
		TokenPayload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   opts.Subject,
			Issuer:    opts.Issuer,
			Audience:  jwt.ClaimStrings{opts.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(opts.ExpiresIn)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry together. Any failure
// yields ErrInvalidToken.
func (s *TokenService) Verify(token string, scope TokenScope) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(scope.Issuer),
		jwt.WithAudience(scope.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		slog.Debug("token verification failed", "issuer", scope.Issuer, "audience", scope.Audience, "error", err)
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *TokenService) IsValid(token string, scope TokenScope) bool {
	_, err := s.Verify(token, scope)
	return err == nil
}
