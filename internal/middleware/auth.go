package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"go-user-api/internal/model"
	"go-user-api/internal/service"
	"go-user-api/pkg/apierror"
)

type tokenVerifier interface {
	Verify(token string, scope service.TokenScope) (*service.TokenClaims, error)
}

type UserLoader interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
}

type contextKey string

const userContextKey contextKey = "auth_user"

type AuthMiddleware struct {
	tokens tokenVerifier
	users  UserLoader
}

func NewAuthMiddleware(tokens tokenVerifier, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Authenticate verifies the bearer session token and attaches the current
// user record to the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAPIError(w, apierror.Unauthorized("missing or invalid authorization header"))
			return
		}

		claims, err := m.tokens.Verify(token, service.SessionScope)
		if err != nil {
			writeAPIError(w, apierror.Unauthorized("invalid or expired token"))
			return
		}

		userID, err := service.ParseSubject(claims.Subject)
		if err != nil {
			writeAPIError(w, apierror.Unauthorized("invalid or expired token"))
			return
		}

		user, err := m.users.FindByID(r.Context(), userID)
		if err != nil {
			if !apierror.HasCode(err, apierror.CodeNotFound) {
				writeAPIError(w, apierror.Internal("unable to load user"))
				return
			}
			writeAPIError(w, apierror.Unauthorized("user no longer exists"))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StaticBearer admits only requests whose bearer token equals token. It
// guards machine endpoints such as the metrics scrape.
func StaticBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeAPIError(w, apierror.Unauthorized("missing or invalid authorization header"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles allows the request when roles is empty or the authenticated
// user holds one of them. It must run after Authenticate.
func (m *AuthMiddleware) RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeAPIError(w, apierror.Unauthorized("authentication required"))
				return
			}

			if len(allowed) > 0 {
				if _, exists := allowed[user.Role]; !exists {
					writeAPIError(w, apierror.Forbidden("insufficient permissions"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
