package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/lesson-api/internal/apperror"
	"github.com/sakif/lesson-api/internal/model"
	"github.com/sakif/lesson-api/internal/repository"
)

// demoUsers are created by SeedDemo. Seeding is keyed on email, so calling
// it again only fills in whichever demo users have since been deleted.
var demoUsers = []model.User{
	{Name: "Иван Иванов", Email: "ivan@example.com"},
	{Name: "Мария Петрова", Email: "maria@example.com"},
	{Name: "Алексей Сидоров", Email: "alexey@example.com"},
}

// UserService handles user records and the email-uniqueness rule.
//
// EMAIL UNIQUENESS:
// Emails are compared exactly as sent: "Ivan@example.com" and
// "ivan@example.com" are different emails. The check and the write happen
// under s.mu so two concurrent creates with the same email can't both pass.
type UserService struct {
	mu     sync.Mutex
	repo   repository.UserRepository
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// List returns all users in creation order.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Get retrieves a user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// Count returns the number of users.
func (s *UserService) Count(ctx context.Context) (int, error) {
	return s.repo.CountUsers(ctx)
}

// Create adds a user. Fails with a validation error if the email is taken.
func (s *UserService) Create(ctx context.Context, name, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}

	user := &model.User{Name: name, Email: email}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created",
		slog.Int64("id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Update applies a partial update. A changed email is re-checked against
// every other user; keeping your own email is always allowed.
func (s *UserService) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	if err := rejectNulls(map[string]model.Optional[string]{
		"name":  patch.Name,
		"email": patch.Email,
	}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Email.Valid {
		if err := s.ensureEmailFree(ctx, patch.Email.Value, id); err != nil {
			return nil, err
		}
	}
	user.Apply(patch)

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	s.logger.Info("user updated", slog.Int64("id", user.ID))
	return user, nil
}

// Delete removes a user permanently and returns the removed record.
// The id is never reused.
func (s *UserService) Delete(ctx context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user deleted", slog.Int64("id", id))
	return user, nil
}

// SeedDemo creates the demo users whose emails are not in use yet and
// returns only the ones it created.
func (s *UserService) SeedDemo(ctx context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]model.User, 0, len(demoUsers))
	for _, demo := range demoUsers {
		_, err := s.repo.GetUserByEmail(ctx, demo.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("checking demo user %s: %w", demo.Email, err)
		}

		user := demo
		if err := s.repo.CreateUser(ctx, &user); err != nil {
			return nil, fmt.Errorf("creating demo user %s: %w", demo.Email, err)
		}
		created = append(created, user)
	}

	s.logger.Info("demo users seeded", slog.Int("created", len(created)))
	return created, nil
}

// ensureEmailFree fails if a user other than excludeID already has email.
// excludeID 0 excludes nobody (ids start at 1).
func (s *UserService) ensureEmailFree(ctx context.Context, email string, excludeID int64) error {
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("checking email: %w", err)
	}
	if existing.ID != excludeID {
		return apperror.ValidationFailed("email", "a user with this email already exists")
	}
	return nil
}
