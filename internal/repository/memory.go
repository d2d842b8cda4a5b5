package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go-user-api/internal/model"
	"go-user-api/pkg/apierror"
)

// MemoryUserRepository is a map-backed user store with the same error
// contract as UserRepository. It backs tests and local tooling.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: map[int64]model.User{}}
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id int64) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return model.User{}, apierror.NotFound("user not found", strconv.FormatInt(id, 10))
	}
	return u, nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, apierror.NotFound("user not found", email)
}

func (r *MemoryUserRepository) Create(_ context.Context, in model.UserInput) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTakenLocked(in.Email, 0) {
		return model.User{}, apierror.Conflict("email already in use", in.Email)
	}

	r.nextID++
	now := time.Now().UTC()
	u := model.User{
		ID:           r.nextID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		BirthAt:      in.BirthAt,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	return u, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, id int64, in model.UserInput) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return model.User{}, apierror.NotFound("user not found", strconv.FormatInt(id, 10))
	}
	if r.emailTakenLocked(in.Email, id) {
		return model.User{}, apierror.Conflict("email already in use", in.Email)
	}

	u.Name = in.Name
	u.Email = in.Email
	u.PasswordHash = in.PasswordHash
	u.BirthAt = in.BirthAt
	u.Role = in.Role
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return u, nil
}

func (r *MemoryUserRepository) UpdatePartial(_ context.Context, id int64, patch model.UserPatch) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return model.User{}, apierror.NotFound("user not found", strconv.FormatInt(id, 10))
	}
	if patch.Email != nil && r.emailTakenLocked(*patch.Email, id) {
		return model.User{}, apierror.Conflict("email already in use", *patch.Email)
	}

	u = patch.Apply(u)
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return u, nil
}

func (r *MemoryUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) (model.User, error) {
	return r.UpdatePartial(ctx, id, model.UserPatch{PasswordHash: &passwordHash})
}

func (r *MemoryUserRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return apierror.NotFound("user not found", strconv.FormatInt(id, 10))
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryUserRepository) List(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *MemoryUserRepository) emailTakenLocked(email string, exceptID int64) bool {
	for id, u := range r.byID {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

type MemoryResetRepository struct {
	mu       sync.Mutex
	consumed map[string]time.Time
}

func NewMemoryResetRepository() *MemoryResetRepository {
	return &MemoryResetRepository{consumed: map[string]time.Time{}}
}

func (r *MemoryResetRepository) Consume(_ context.Context, tokenID string, _ int64, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, used := r.consumed[tokenID]; used {
		return model.ErrTokenAlreadyUsed
	}
	r.consumed[tokenID] = expiresAt
	return nil
}

func (r *MemoryResetRepository) Release(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.consumed, tokenID)
	return nil
}

func (r *MemoryResetRepository) CleanExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	now := time.Now()
	for id, expiresAt := range r.consumed {
		if !expiresAt.After(now) {
			delete(r.consumed, id)
			removed++
		}
	}
	return removed, nil
}

type MemoryAuditRepository struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Log(_ context.Context, entry model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryAuditRepository) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query = normalizeAuditQuery(query)

	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.AuditEntry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if query.Action != "" && !strings.EqualFold(e.Action, query.Action) {
			continue
		}
		if query.Status != "" && !strings.EqualFold(e.Status, query.Status) {
			continue
		}
		if query.ActorID != 0 && e.Actor.UserID != query.ActorID {
			continue
		}
		matched = append(matched, e)
	}

	meta := pageMeta(query, len(matched))
	start := (query.Page - 1) * query.Limit
	if start >= len(matched) {
		return []model.AuditEntry{}, meta, nil
	}
	end := min(start+query.Limit, len(matched))
	return matched[start:end], meta, nil
}
