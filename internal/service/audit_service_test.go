package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-user-api/internal/event"
	"go-user-api/internal/model"
	"go-user-api/internal/repository"
	"go-user-api/pkg/apierror"
)

func TestAuditServiceRecordsBusEvents(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryAuditRepository()
	audit := NewAuditService(store)
	bus := event.NewBus()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		audit.Run(ctx, bus)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Run subscribes asynchronously; publish until the first entry lands.
	require.Eventually(t, func() bool {
		bus.Publish(event.Event{Type: event.TypeLoginFailed, Status: event.StatusFailure, ActorEmail: "a@b.com", Error: "invalid email or password"})
		entries, _, err := audit.Query(context.Background(), model.AuditQuery{Action: string(event.TypeLoginFailed)})
		return err == nil && len(entries) > 0
	}, time.Second, 10*time.Millisecond)

	bus.Publish(event.Event{Type: event.TypeUserDeleted, Status: event.StatusSuccess, ActorID: 1, ActorIP: "10.0.0.1", Resource: "users/7"})

	require.Eventually(t, func() bool {
		entries, _, err := audit.Query(context.Background(), model.AuditQuery{ActorID: 1})
		return err == nil && len(entries) == 1
	}, time.Second, 10*time.Millisecond)

	entries, meta, err := audit.Query(context.Background(), model.AuditQuery{Action: " USER.DELETED "})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "users/7", entries[0].Resource)
	require.Equal(t, "10.0.0.1", entries[0].Actor.IP)
	require.NotEmpty(t, entries[0].OccurredAt)
	require.Equal(t, 1, meta.Total)
}

func TestAuditServiceQueryValidation(t *testing.T) {
	t.Parallel()

	audit := NewAuditService(repository.NewMemoryAuditRepository())

	cases := []struct {
		name  string
		query model.AuditQuery
		ok    bool
	}{
		{name: "no filters", query: model.AuditQuery{}, ok: true},
		{name: "date only bounds", query: model.AuditQuery{From: "2024-01-01", To: "2024-02-01"}, ok: true},
		{name: "rfc3339 bounds", query: model.AuditQuery{From: "2024-01-01T10:00:00Z"}, ok: true},
		{name: "bad from", query: model.AuditQuery{From: "yesterday"}},
		{name: "bad to", query: model.AuditQuery{To: "01/02/2024"}},
		{name: "inverted range", query: model.AuditQuery{From: "2024-03-01", To: "2024-02-01"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := audit.Query(context.Background(), tc.query)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Equal(t, http.StatusBadRequest, apierror.Status(err))
		})
	}
}
