package service

import (
	"context"

	"go-user-api/internal/event"
	"go-user-api/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	Create(ctx context.Context, in model.UserInput) (model.User, error)
	Update(ctx context.Context, id int64, in model.UserInput) (model.User, error)
	UpdatePartial(ctx context.Context, id int64, patch model.UserPatch) (model.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]model.User, error)
}

// UserService manages user records. Password fields must arrive hashed.
type UserService struct {
	repo UserRepository
	bus  event.Bus
}

func NewUserService(repo UserRepository, bus event.Bus) *UserService {
	return &UserService{repo: repo, bus: bus}
}

func (s *UserService) Create(ctx context.Context, actor model.AuditActor, in model.UserInput) (model.User, error) {
	user, err := s.repo.Create(ctx, in)
	s.record(event.TypeUserCreated, actor, user.ID, err)
	return user, err
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) FindOne(ctx context.Context, id int64) (model.User, error) {
	return s.repo.FindByID(ctx, id)
}

// Update replaces every field of the user. A nil BirthAt clears it.
func (s *UserService) Update(ctx context.Context, actor model.AuditActor, id int64, in model.UserInput) (model.User, error) {
	user, err := s.repo.Update(ctx, id, in)
	s.record(event.TypeUserUpdated, actor, id, err)
	return user, err
}

func (s *UserService) UpdatePartial(ctx context.Context, actor model.AuditActor, id int64, patch model.UserPatch) (model.User, error) {
	user, err := s.repo.UpdatePartial(ctx, id, patch)
	s.record(event.TypeUserUpdated, actor, id, err)
	return user, err
}

func (s *UserService) Delete(ctx context.Context, actor model.AuditActor, id int64) error {
	err := s.repo.Delete(ctx, id)
	s.record(event.TypeUserDeleted, actor, id, err)
	return err
}

func (s *UserService) record(typ event.Type, actor model.AuditActor, id int64, err error) {
	if s.bus == nil {
		return
	}

	e := event.Event{
		Type:       typ,
		Status:     event.StatusSuccess,
		ActorID:    actor.UserID,
		ActorEmail: actor.Email,
		ActorIP:    actor.IP,
	}
	if id != 0 {
		e.Resource = userResource(id)
	}
	if err != nil {
		e.Status = event.StatusFailure
		e.Error = err.Error()
	}
	s.bus.Publish(e)
}
