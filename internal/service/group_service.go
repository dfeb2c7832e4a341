package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-core/internal/access"
	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/repository"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
)

type groupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	FindByID(ctx context.Context, id int64) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	Delete(ctx context.Context, id int64) error
	AddMember(ctx context.Context, membership *models.Membership) error
	RemoveMember(ctx context.Context, userID, groupID int64) error
	ListMembers(ctx context.Context, groupID int64) ([]models.MembershipView, error)
}

type memberLookup interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// GroupService manages groups and their student memberships.
type GroupService struct {
	groups    groupRepository
	users     memberLookup
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs a GroupService.
func NewGroupService(groups groupRepository, users memberLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &GroupService{groups: groups, users: users, cache: cache, validator: validate, logger: logger}
}

// List returns every group.
func (s *GroupService) List(ctx context.Context, identity models.Identity) ([]models.Group, error) {
	if err := access.Authorize(identity, access.ManageGroups); err != nil {
		return nil, err
	}
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list groups")
	}
	return groups, nil
}

// Create adds a group.
func (s *GroupService) Create(ctx context.Context, identity models.Identity, req models.CreateGroupRequest) (*models.Group, error) {
	if err := access.Authorize(identity, access.ManageGroups); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid group payload")
	}

	group := &models.Group{Name: req.Name}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, storeError(err, "group not found", "failed to create group")
	}
	s.logger.Info("group created", zap.Int64("group_id", group.ID), zap.Int64("actor_id", identity.ID))
	return group, nil
}

// Delete removes a group with its memberships, sessions and their attendance.
func (s *GroupService) Delete(ctx context.Context, identity models.Identity, id int64) error {
	if err := access.Authorize(identity, access.ManageGroups); err != nil {
		return err
	}
	if err := s.groups.Delete(ctx, id); err != nil {
		return storeError(err, "group not found", "failed to delete group")
	}
	s.cache.InvalidateReports(ctx)
	s.logger.Info("group deleted", zap.Int64("group_id", id), zap.Int64("actor_id", identity.ID))
	return nil
}

// AddMember puts a student into a group.
func (s *GroupService) AddMember(ctx context.Context, identity models.Identity, groupID, userID int64) error {
	if err := access.Authorize(identity, access.ManageMemberships); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrReferenceNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to load user")
	}
	if user.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrValidation, "only students can join a group")
	}
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrReferenceNotFound, "group not found")
		}
		return appErrors.Internal(err, "failed to load group")
	}

	if err := s.groups.AddMember(ctx, &models.Membership{UserID: userID, GroupID: groupID}); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateKey.Code, appErrors.ErrDuplicateKey.Status, "student is already in the group")
		}
		return storeError(err, "group not found", "failed to add group member")
	}
	s.logger.Info("group member added", zap.Int64("group_id", groupID), zap.Int64("user_id", userID), zap.Int64("actor_id", identity.ID))
	return nil
}

// RemoveMember takes a student out of a group.
func (s *GroupService) RemoveMember(ctx context.Context, identity models.Identity, groupID, userID int64) error {
	if err := access.Authorize(identity, access.ManageMemberships); err != nil {
		return err
	}
	if err := s.groups.RemoveMember(ctx, userID, groupID); err != nil {
		return storeError(err, "membership not found", "failed to remove group member")
	}
	s.logger.Info("group member removed", zap.Int64("group_id", groupID), zap.Int64("user_id", userID), zap.Int64("actor_id", identity.ID))
	return nil
}

// ListMembers returns memberships of one group, or of every group when groupID is zero.
func (s *GroupService) ListMembers(ctx context.Context, identity models.Identity, groupID int64) ([]models.MembershipView, error) {
	if err := access.Authorize(identity, access.ManageMemberships); err != nil {
		return nil, err
	}
	if groupID > 0 {
		if _, err := s.groups.FindByID(ctx, groupID); err != nil {
			return nil, storeError(err, "group not found", "failed to load group")
		}
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list group members")
	}
	return members, nil
}
