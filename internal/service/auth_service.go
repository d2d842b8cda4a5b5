package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go-user-api/internal/event"
	"go-user-api/internal/mail"
	"go-user-api/internal/model"
	"go-user-api/pkg/apierror"
)

const tokenType = "Bearer"

var errInvalidCredentials = apierror.Unauthorized("invalid email or password")

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, in model.UserInput) (model.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) (model.User, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password string, hash string) (bool, error)
}

// ResetLedger records consumed reset tokens. Consume returns
// model.ErrTokenAlreadyUsed when tokenID was consumed before. Release undoes a
// Consume whose password change did not happen.
type ResetLedger interface {
	Consume(ctx context.Context, tokenID string, userID int64, expiresAt time.Time) error
	Release(ctx context.Context, tokenID string) error
}

type AuthConfig struct {
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

type AuthService struct {
	users      UserStore
	hasher     PasswordHasher
	tokens     *TokenService
	mailer     mail.Mailer
	ledger     ResetLedger
	bus        event.Bus
	sessionTTL time.Duration
	resetTTL   time.Duration
	dummyHash  string
}

func NewAuthService(users UserStore, hasher PasswordHasher, tokens *TokenService, mailer mail.Mailer, ledger ResetLedger, bus event.Bus, cfg AuthConfig) (*AuthService, error) {
	if cfg.SessionTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("session and reset token ttl must be positive")
	}

	// Compared against when the email is unknown so that login timing does
	// not depend on whether the account exists.
	dummyHash, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &AuthService{
		users:      users,
		hasher:     hasher,
		tokens:     tokens,
		mailer:     mailer,
		ledger:     ledger,
		bus:        bus,
		sessionTTL: cfg.SessionTTL,
		resetTTL:   cfg.ResetTTL,
		dummyHash:  dummyHash,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (model.AccessToken, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !apierror.HasCode(err, apierror.CodeNotFound) {
			slog.ErrorContext(ctx, "login lookup failed", "email", email, "error", err)
		}
		_, _ = s.hasher.Compare(password, s.dummyHash)
		s.publish(event.Event{Type: event.TypeLoginFailed, Status: event.StatusFailure, ActorEmail: email, Error: errInvalidCredentials.Message})
		return model.AccessToken{}, errInvalidCredentials
	}

	ok, err := s.hasher.Compare(password, user.PasswordHash)
	if err != nil {
		slog.ErrorContext(ctx, "login password compare failed", "user_id", user.ID, "error", err)
	}
	if !ok {
		s.publish(event.Event{Type: event.TypeLoginFailed, Status: event.StatusFailure, ActorID: user.ID, ActorEmail: user.Email, Error: errInvalidCredentials.Message})
		return model.AccessToken{}, errInvalidCredentials
	}

	token, err := s.sessionToken(user)
	if err != nil {
		return model.AccessToken{}, err
	}

	s.publish(event.Event{Type: event.TypeLoginSucceeded, Status: event.StatusSuccess, ActorID: user.ID, ActorEmail: user.Email})
	return token, nil
}

// Register creates a user from a validated request and logs it in. Store
// errors such as a duplicate email are returned unchanged.
func (s *AuthService) Register(ctx context.Context, req model.UserRequest) (model.AccessToken, error) {
	if req.Role != nil && *req.Role == model.RoleAdmin {
		return model.AccessToken{}, apierror.Forbidden("registration cannot grant the admin role")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.AccessToken{}, err
	}

	user, err := s.users.Create(ctx, req.Input(hash))
	if err != nil {
		return model.AccessToken{}, err
	}

	token, err := s.sessionToken(user)
	if err != nil {
		return model.AccessToken{}, err
	}

	s.publish(event.Event{Type: event.TypeRegistered, Status: event.StatusSuccess, ActorID: user.ID, ActorEmail: user.Email, Resource: userResource(user.ID)})
	return token, nil
}

// Forget mails a reset token to the account owner.
func (s *AuthService) Forget(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !apierror.HasCode(err, apierror.CodeNotFound) {
			slog.ErrorContext(ctx, "forget lookup failed", "email", email, "error", err)
			return apierror.Internal("unable to process password reset")
		}
		s.publish(event.Event{Type: event.TypeForgetRequested, Status: event.StatusFailure, ActorEmail: email, Error: "invalid email"})
		return apierror.Unauthorized("invalid email")
	}

	token, err := s.tokens.Issue(TokenPayload{UserID: user.ID}, TokenOptions{
		ExpiresIn: s.resetTTL,
		Subject:   strconv.FormatInt(user.ID, 10),
		Issuer:    ResetScope.Issuer,
		Audience:  ResetScope.Audience,
	})
	if err != nil {
		return s.forgetFailed(ctx, user, err)
	}

	err = s.mailer.Send(ctx, mail.Message{
		To:       user.Email,
		Subject:  "Password reset",
		Template: "forget",
		Data: map[string]any{
			"name":       user.Name,
			"token":      token,
			"expires_in": s.resetTTL.String(),
		},
	})
	if err != nil {
		return s.forgetFailed(ctx, user, err)
	}

	s.publish(event.Event{Type: event.TypeForgetRequested, Status: event.StatusSuccess, ActorID: user.ID, ActorEmail: user.Email})
	return nil
}

// Reset sets a new password using a reset token and returns a fresh session.
// Each reset token is accepted once; a reset that fails after the token was
// consumed releases it again.
func (s *AuthService) Reset(ctx context.Context, password string, token string) (model.AccessToken, error) {
	claims, err := s.tokens.Verify(token, ResetScope)
	if err != nil {
		s.publish(event.Event{Type: event.TypeResetRejected, Status: event.StatusFailure, Error: "invalid token"})
		return model.AccessToken{}, err
	}

	userID, err := ParseSubject(claims.Subject)
	if err != nil {
		s.publish(event.Event{Type: event.TypeResetRejected, Status: event.StatusFailure, Error: "invalid token subject"})
		return model.AccessToken{}, apierror.BadRequest("invalid token", "")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return model.AccessToken{}, err
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if apierror.HasCode(err, apierror.CodeNotFound) {
			s.publish(event.Event{Type: event.TypeResetRejected, Status: event.StatusFailure, ActorID: userID, Error: "user not found"})
			return model.AccessToken{}, apierror.Unauthorized("invalid token")
		}
		return model.AccessToken{}, err
	}

	err = s.ledger.Consume(ctx, claims.ID, userID, claims.ExpiresAt.Time)
	if errors.Is(err, model.ErrTokenAlreadyUsed) {
		s.publish(event.Event{Type: event.TypeResetRejected, Status: event.StatusFailure, ActorID: userID, Error: "token already used"})
		return model.AccessToken{}, apierror.Unauthorized("token already used")
	}
	if err != nil {
		return model.AccessToken{}, fmt.Errorf("consume reset token: %w", err)
	}

	user, err := s.users.UpdatePassword(ctx, userID, hash)
	if err != nil {
		s.releaseResetToken(ctx, claims.ID)
		if apierror.HasCode(err, apierror.CodeNotFound) {
			s.publish(event.Event{Type: event.TypeResetRejected, Status: event.StatusFailure, ActorID: userID, Error: "user not found"})
			return model.AccessToken{}, apierror.Unauthorized("invalid token")
		}
		return model.AccessToken{}, err
	}

	session, err := s.sessionToken(user)
	if err != nil {
		return model.AccessToken{}, err
	}

	s.publish(event.Event{Type: event.TypeResetCompleted, Status: event.StatusSuccess, ActorID: user.ID, ActorEmail: user.Email, Resource: userResource(user.ID)})
	return session, nil
}

func (s *AuthService) Me(ctx context.Context, userID int64) (model.User, error) {
	return s.users.FindByID(ctx, userID)
}

// CheckToken verifies a session token and returns its claims.
func (s *AuthService) CheckToken(token string) (*TokenClaims, error) {
	return s.tokens.Verify(token, SessionScope)
}

func (s *AuthService) sessionToken(user model.User) (model.AccessToken, error) {
	token, err := s.tokens.Issue(TokenPayload{UserID: user.ID, Name: user.Name, Email: user.Email}, TokenOptions{
		ExpiresIn: s.sessionTTL,
		Subject:   strconv.FormatInt(user.ID, 10),
		Issuer:    SessionScope.Issuer,
		Audience:  SessionScope.Audience,
	})
	if err != nil {
		return model.AccessToken{}, err
	}

	return model.AccessToken{
		AccessToken: token,
		TokenType:   tokenType,
		ExpiresIn:   int64(s.sessionTTL.Seconds()),
	}, nil
}

func (s *AuthService) releaseResetToken(ctx context.Context, tokenID string) {
	if err := s.ledger.Release(context.WithoutCancel(ctx), tokenID); err != nil {
		slog.ErrorContext(ctx, "failed to release reset token", "error", err)
	}
}

func (s *AuthService) forgetFailed(ctx context.Context, user model.User, err error) error {
	slog.ErrorContext(ctx, "password reset request failed", "user_id", user.ID, "error", err)
	s.publish(event.Event{Type: event.TypeForgetRequested, Status: event.StatusFailure, ActorID: user.ID, ActorEmail: user.Email, Error: err.Error()})
	return apierror.Internal("unable to process password reset")
}

func (s *AuthService) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// ParseSubject decodes a token subject into a user id.
func ParseSubject(sub string) (int64, error) {
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", sub)
	}
	return id, nil
}

func userResource(id int64) string {
	return "users/" + strconv.FormatInt(id, 10)
}
