package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ibuddy-app/ibuddy-service/internal/authz"
	"github.com/ibuddy-app/ibuddy-service/internal/cache"
	"github.com/ibuddy-app/ibuddy-service/internal/events"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/validator"
)

type userService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	events    events.Publisher
	sessions  *cache.Helper
	now       func() time.Time
}

// NewUserService builds the user service. Changes to a user evict it from
// sessions so live sessions see the new role.
func NewUserService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.Publisher, sessions *cache.Helper) UserService {
	return &userService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		events:    publisher,
		sessions:  sessions,
		now:       time.Now,
	}
}

// List orders users by role, highest first, then by name.
func (s *userService) List(ctx context.Context, actor *models.User) ([]*models.User, error) {
	if !authz.CanManageUsers(actor) {
		return nil, NewPermissionError(actorID(actor), "", "user", "list", "insufficient role permissions")
	}
	users, err := s.repo.User().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Role.Rank() > users[j].Role.Rank()
	})
	return users, nil
}

func (s *userService) ListActiveBuddies(ctx context.Context, actor *models.User) ([]*models.User, error) {
	if !authz.CanManageUsers(actor) {
		return nil, NewPermissionError(actorID(actor), "", "user", "list", "insufficient role permissions")
	}
	buddies, err := s.repo.User().ListActiveBuddies(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list buddies: %w", err)
	}
	return buddies, nil
}

func (s *userService) RoleOptions(actor *models.User) []RoleOption {
	labels := map[models.Role]string{
		models.RoleBuddy:     "Buddy",
		models.RoleHR:        "HR",
		models.RolePresident: "President",
		models.RoleAdmin:     "Admin",
	}
	var options []RoleOption
	for _, r := range models.Roles() {
		options = append(options, RoleOption{Role: r, Label: labels[r], Disabled: !authz.CanAssignRole(actor, r)})
	}
	return options
}

func (s *userService) getByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repo.User().GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, actor *models.User, email string) (*UserDetail, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	target, err := s.getByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if actor.ID != target.ID && !authz.CanManageUsers(actor) {
		return nil, NewPermissionError(actor.ID, target.ID, "user", "read", "insufficient role permissions")
	}
	decision, err := s.deleteDecision(ctx, actor, target)
	if err != nil {
		return nil, err
	}
	return &UserDetail{
		User:      target,
		FullName:  target.FullName(),
		CanDelete: decision,
		CanEdit:   authz.CanEditUser(actor, target),
	}, nil
}

func (s *userService) Create(ctx context.Context, actor *models.User, req *CreateUserRequest) (*models.User, error) {
	if !authz.CanManageUsers(actor) {
		return nil, NewPermissionError(actorID(actor), "", "user", "create", "insufficient role permissions")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if !authz.CanAssignRole(actor, req.Role) {
		return nil, validator.Field("role", "Not allowed to create a user with such access", req.Role)
	}

	start, end, err := parseDates(req.AgreementStartDate, req.AgreementEndDate)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Creating user", "actor_id", actor.ID, "role", req.Role)
	created, err := s.repo.User().Create(ctx, &models.User{
		Email:              strings.TrimSpace(req.Email),
		FirstName:          strings.TrimSpace(req.FirstName),
		LastName:           strings.TrimSpace(req.LastName),
		Faculty:            strings.TrimSpace(req.Faculty),
		Role:               req.Role,
		AgreementStartDate: start,
		AgreementEndDate:   end,
	}, req.Password)
	if err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %w", ErrUserExists, validator.Field("email", "A user with this email address already exists.", req.Email))
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	publish(ctx, s.logger, s.events, events.UserCreated, actor, created.ID, map[string]any{"role": created.Role})
	s.logger.Info("User created successfully", "user_id", created.ID)
	return created, nil
}

func (s *userService) Update(ctx context.Context, actor *models.User, email string, req *UpdateUserRequest) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	target, err := s.getByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !authz.CanEditUser(actor, target) {
		return nil, NewPermissionError(actor.ID, target.ID, "user", "update", "insufficient role permissions")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Role != target.Role && !authz.CanAssignRole(actor, req.Role) {
		return nil, validator.Field("role", "Not allowed to assign such access", req.Role)
	}

	start, end, err := parseDates(req.AgreementStartDate, req.AgreementEndDate)
	if err != nil {
		return nil, err
	}
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	faculty := strings.TrimSpace(req.Faculty)
	role := req.Role

	updated, err := s.repo.User().Update(ctx, target.ID, repositories.UserPatch{
		FirstName:          &first,
		LastName:           &last,
		Faculty:            &faculty,
		Role:               &role,
		AgreementStartDate: start,
		AgreementEndDate:   end,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	s.sessions.SafeDelete(ctx, target.ID)
	s.logger.Info("User updated", "user_id", target.ID, "actor_id", actor.ID)
	return updated, nil
}

func (s *userService) deleteDecision(ctx context.Context, actor, target *models.User) (authz.Decision, error) {
	count, err := s.repo.Mentee().CountByBuddy(ctx, target.ID)
	if err != nil {
		return authz.Decision{}, fmt.Errorf("failed to count mentees: %w", err)
	}
	return authz.CanUserDeleteUser(actor, target, count), nil
}

func (s *userService) CanDelete(ctx context.Context, actor *models.User, email string) (authz.Decision, error) {
	if err := requireActor(actor); err != nil {
		return authz.Decision{}, err
	}
	target, err := s.getByEmail(ctx, email)
	if err != nil {
		return authz.Decision{}, err
	}
	return s.deleteDecision(ctx, actor, target)
}

func (s *userService) Delete(ctx context.Context, actor *models.User, email string) error {
	if !authz.CanManageUsers(actor) {
		return NewPermissionError(actorID(actor), "", "user", "delete", "insufficient role permissions")
	}
	target, err := s.getByEmail(ctx, email)
	if err != nil {
		return err
	}
	decision, err := s.deleteDecision(ctx, actor, target)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return NewPermissionError(actor.ID, target.ID, "user", "delete", decision.Reason)
	}

	if err := s.repo.User().Delete(ctx, target.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	s.sessions.SafeDelete(ctx, target.ID)
	publish(ctx, s.logger, s.events, events.UserDeleted, actor, target.ID, nil)
	s.logger.Info("User deleted", "user_id", target.ID, "actor_id", actor.ID)
	return nil
}

func actorID(actor *models.User) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}
