package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-user-api/internal/model"
	"go-user-api/pkg/apierror"
)

func TestMemoryUserRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("assigns sequential ids and finds by email case-insensitively", func(t *testing.T) {
		repo := NewMemoryUserRepository()

		first, err := repo.Create(ctx, model.UserInput{Name: "Ana", Email: "ana@example.com", Role: model.RoleUser})
		require.NoError(t, err)
		second, err := repo.Create(ctx, model.UserInput{Name: "Bo", Email: "bo@example.com", Role: model.RoleAdmin})
		require.NoError(t, err)
		require.Equal(t, int64(1), first.ID)
		require.Equal(t, int64(2), second.ID)

		found, err := repo.FindByEmail(ctx, "ANA@example.com")
		require.NoError(t, err)
		require.Equal(t, first.ID, found.ID)
	})

	t.Run("rejects duplicate emails with conflict", func(t *testing.T) {
		repo := NewMemoryUserRepository()
		_, err := repo.Create(ctx, model.UserInput{Name: "Ana", Email: "ana@example.com"})
		require.NoError(t, err)

		_, err = repo.Create(ctx, model.UserInput{Name: "Other", Email: "ana@example.com"})
		require.True(t, apierror.HasCode(err, apierror.CodeConflict))
	})

	t.Run("reports missing ids as not found", func(t *testing.T) {
		repo := NewMemoryUserRepository()

		_, err := repo.FindByID(ctx, 99)
		require.True(t, apierror.HasCode(err, apierror.CodeNotFound))
		_, err = repo.Update(ctx, 99, model.UserInput{Name: "x"})
		require.True(t, apierror.HasCode(err, apierror.CodeNotFound))
		_, err = repo.UpdatePartial(ctx, 99, model.UserPatch{})
		require.True(t, apierror.HasCode(err, apierror.CodeNotFound))
		require.True(t, apierror.HasCode(repo.Delete(ctx, 99), apierror.CodeNotFound))
	})

	t.Run("partial update keeps untouched fields", func(t *testing.T) {
		repo := NewMemoryUserRepository()
		created, err := repo.Create(ctx, model.UserInput{Name: "Ana", Email: "ana@example.com", PasswordHash: "h1", Role: model.RoleUser})
		require.NoError(t, err)

		name := "Ana Maria"
		patched, err := repo.UpdatePartial(ctx, created.ID, model.UserPatch{Name: &name})
		require.NoError(t, err)
		require.Equal(t, "Ana Maria", patched.Name)
		require.Equal(t, "ana@example.com", patched.Email)
		require.Equal(t, "h1", patched.PasswordHash)
	})
}

func TestMemoryResetRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemoryResetRepository()

	require.NoError(t, repo.Consume(ctx, "jti-1", 1, time.Now().Add(time.Minute)))
	require.ErrorIs(t, repo.Consume(ctx, "jti-1", 1, time.Now().Add(time.Minute)), model.ErrTokenAlreadyUsed)

	require.NoError(t, repo.Release(ctx, "jti-1"))
	require.NoError(t, repo.Consume(ctx, "jti-1", 1, time.Now().Add(time.Minute)), "released token is consumable again")

	require.NoError(t, repo.Consume(ctx, "jti-2", 1, time.Now().Add(-time.Minute)))
	removed, err := repo.CleanExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestMemoryAuditRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMemoryAuditRepository()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: "auth.login.failed", Status: "failure"}))
	}
	require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: "auth.login.succeeded", Status: "success", Actor: model.AuditActor{UserID: 4}}))

	entries, meta, err := repo.Query(ctx, model.AuditQuery{Action: "auth.login.failed", Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 3, meta.Total)
	require.Equal(t, 2, meta.TotalPages)

	entries, _, err = repo.Query(ctx, model.AuditQuery{ActorID: 4})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "auth.login.succeeded", entries[0].Action)
}
