package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendance-core/internal/access"
	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/repository"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cost      int
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, cache: cache, validator: validate, logger: logger, cost: bcrypt.DefaultCost}
}

// List returns users ordered by username.
func (s *UserService) List(ctx context.Context, identity models.Identity, filter models.UserFilter) ([]models.User, error) {
	if err := access.Authorize(identity, access.ManageUsers); err != nil {
		return nil, err
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role filter")
	}
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list users")
	}
	return users, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, identity models.Identity, id int64) (*models.User, error) {
	if err := access.Authorize(identity, access.ManageUsers); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "user not found", "failed to load user")
	}
	return user, nil
}

// Create adds a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, identity models.Identity, req models.CreateUserRequest) (*models.User, error) {
	if err := access.Authorize(identity, access.ManageUsers); err != nil {
		return nil, err
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid create user payload")
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "password must not be blank")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         req.Role,
		Email:        normalizeEmail(req.Email),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, storeError(err, "user not found", "failed to create user")
	}

	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)), zap.Int64("actor_id", identity.ID))
	return user, nil
}

// Update applies a partial update. An empty password keeps the stored hash.
// Reports are invalidated since their rows carry usernames.
func (s *UserService) Update(ctx context.Context, identity models.Identity, id int64, req models.UpdateUserRequest) (*models.User, error) {
	if err := access.Authorize(identity, access.ManageUsers); err != nil {
		return nil, err
	}
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		req.Username = &trimmed
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update user payload")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "user not found", "failed to load user")
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Email != nil {
		user.Email = normalizeEmail(req.Email)
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrInUse) {
			return nil, appErrors.Wrap(err, appErrors.ErrReferenceInUse.Code, appErrors.ErrReferenceInUse.Status, "role change blocked by sessions or group memberships")
		}
		return nil, storeError(err, "user not found", "failed to update user")
	}
	s.cache.InvalidateReports(ctx)

	s.logger.Info("user updated", zap.Int64("user_id", user.ID), zap.Bool("password_changed", req.Password != ""), zap.Int64("actor_id", identity.ID))
	return user, nil
}

// Delete removes a user. Users who still teach a session are kept and ReferenceInUse is returned.
func (s *UserService) Delete(ctx context.Context, identity models.Identity, id int64) error {
	if err := access.Authorize(identity, access.ManageUsers); err != nil {
		return err
	}
	if id == identity.ID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete the signed-in user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrInUse) {
			return appErrors.Wrap(err, appErrors.ErrReferenceInUse.Code, appErrors.ErrReferenceInUse.Status, "user still teaches sessions")
		}
		return storeError(err, "user not found", "failed to delete user")
	}
	s.cache.InvalidateReports(ctx)
	s.logger.Info("user deleted", zap.Int64("user_id", id), zap.Int64("actor_id", identity.ID))
	return nil
}

// normalizeEmail lowercases the address and turns blanks into nil.
func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.ToLower(strings.TrimSpace(*email))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
