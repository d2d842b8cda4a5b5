package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-user-api/internal/model"
	"go-user-api/internal/repository"
	"go-user-api/internal/service"
)

type guardFixture struct {
	tokens *service.TokenService
	users  *repository.MemoryUserRepository
	auth   *AuthMiddleware
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()

	tokens, err := service.NewTokenService("guard-secret")
	require.NoError(t, err)
	users := repository.NewMemoryUserRepository()

	return &guardFixture{tokens: tokens, users: users, auth: NewAuthMiddleware(tokens, users)}
}

func (f *guardFixture) createUser(t *testing.T, email string, role model.Role) model.User {
	t.Helper()

	user, err := f.users.Create(context.Background(), model.UserInput{Name: "n", Email: email, PasswordHash: "h", Role: role})
	require.NoError(t, err)
	return user
}

func (f *guardFixture) token(t *testing.T, subject string, scope service.TokenScope) string {
	t.Helper()

	token, err := f.tokens.Issue(service.TokenPayload{}, service.TokenOptions{
		ExpiresIn: time.Hour,
		Subject:   subject,
		Issuer:    scope.Issuer,
		Audience:  scope.Audience,
	})
	require.NoError(t, err)
	return token
}

func serveGuarded(handler http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t)
	user := f.createUser(t, "ana@example.com", model.RoleUser)
	sub := strconv.FormatInt(user.ID, 10)

	var seen *model.User
	handler := f.auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid session token attaches the stored user", func(t *testing.T) {
		rec := serveGuarded(handler, "Bearer "+f.token(t, sub, service.SessionScope))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		require.Equal(t, user.ID, seen.ID)
		require.Equal(t, "ana@example.com", seen.Email)
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		rec := serveGuarded(handler, "bearer "+f.token(t, sub, service.SessionScope))
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	rejections := []struct {
		name   string
		header func() string
	}{
		{name: "missing header", header: func() string { return "" }},
		{name: "wrong scheme", header: func() string { return "Basic abc" }},
		{name: "empty bearer", header: func() string { return "Bearer " }},
		{name: "garbage token", header: func() string { return "Bearer not.a.jwt" }},
		{name: "reset token", header: func() string { return "Bearer " + f.token(t, sub, service.ResetScope) }},
		{name: "non-numeric subject", header: func() string { return "Bearer " + f.token(t, "abc", service.SessionScope) }},
		{name: "unknown user", header: func() string { return "Bearer " + f.token(t, "999", service.SessionScope) }},
	}

	for _, tc := range rejections {
		t.Run(tc.name, func(t *testing.T) {
			rec := serveGuarded(handler, tc.header())
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
		})
	}
}

func TestRequireRoles(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t)
	member := f.createUser(t, "member@example.com", model.RoleUser)
	admin := f.createUser(t, "admin@example.com", model.RoleAdmin)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	bearer := func(u model.User) string {
		return "Bearer " + f.token(t, strconv.FormatInt(u.ID, 10), service.SessionScope)
	}

	adminOnly := f.auth.Authenticate(f.auth.RequireRoles(model.RoleAdmin)(ok))
	anyRole := f.auth.Authenticate(f.auth.RequireRoles()(ok))

	t.Run("member is forbidden from admin route", func(t *testing.T) {
		rec := serveGuarded(adminOnly, bearer(member))
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "FORBIDDEN", errorCode(t, rec))
	})

	t.Run("admin is allowed", func(t *testing.T) {
		require.Equal(t, http.StatusOK, serveGuarded(adminOnly, bearer(admin)).Code)
	})

	t.Run("empty role set allows any authenticated user", func(t *testing.T) {
		require.Equal(t, http.StatusOK, serveGuarded(anyRole, bearer(member)).Code)
	})

	t.Run("role guard without authentication is unauthorized", func(t *testing.T) {
		rec := serveGuarded(f.auth.RequireRoles(model.RoleAdmin)(ok), bearer(admin))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("role change takes effect without a new token", func(t *testing.T) {
		token := bearer(member)
		promoted := model.RoleAdmin
		_, err := f.users.UpdatePartial(context.Background(), member.ID, model.UserPatch{Role: &promoted})
		require.NoError(t, err)

		require.Equal(t, http.StatusOK, serveGuarded(adminOnly, token).Code)
	})
}

func TestStaticBearer(t *testing.T) {
	t.Parallel()

	guarded := StaticBearer("scrape-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := map[string]int{
		"":                       http.StatusUnauthorized,
		"Bearer wrong":           http.StatusUnauthorized,
		"Basic scrape-secret":    http.StatusUnauthorized,
		"Bearer scrape-secret":   http.StatusOK,
		"bearer scrape-secret":   http.StatusOK,
		"Bearer scrape-secret-x": http.StatusUnauthorized,
	}

	for authorization, want := range cases {
		require.Equal(t, want, serveGuarded(guarded, authorization).Code, "authorization %q", authorization)
	}
}
