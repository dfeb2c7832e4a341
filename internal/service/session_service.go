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

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id int64) (*models.Session, error)
	Delete(ctx context.Context, id int64) error
}

type sessionViewRepository interface {
	ListSessions(ctx context.Context, filter models.SessionFilter, order models.SortOrder) ([]models.SessionView, error)
}

type teacherLookup interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// SessionService schedules sessions and serves the role-scoped session listings.
type SessionService struct {
	sessions  sessionRepository
	views     sessionViewRepository
	users     teacherLookup
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions sessionRepository, views sessionViewRepository, users teacherLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &SessionService{sessions: sessions, views: views, users: users, cache: cache, validator: validate, logger: logger}
}

// Create schedules a session after checking its date, time and teacher.
func (s *SessionService) Create(ctx context.Context, identity models.Identity, req models.CreateSessionRequest) (*models.Session, error) {
	if err := access.Authorize(identity, access.ManageSessions); err != nil {
		return nil, err
	}
	if req.Room != nil {
		room := strings.TrimSpace(*req.Room)
		req.Room = &room
		if room == "" {
			req.Room = nil
		}
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session payload: date must be YYYY-MM-DD and time HH:MM")
	}

	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReferenceNotFound, "teacher not found")
		}
		return nil, appErrors.Internal(err, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sessions must be taught by a teacher")
	}

	session := &models.Session{
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		GroupID:   req.GroupID,
		Date:      req.Date,
		Time:      req.Time,
		Room:      req.Room,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrReference) {
			return nil, appErrors.Wrap(err, appErrors.ErrReferenceNotFound.Code, appErrors.ErrReferenceNotFound.Status, "subject, teacher or group not found")
		}
		return nil, storeError(err, "session not found", "failed to create session")
	}

	s.logger.Info("session created", zap.Int64("session_id", session.ID), zap.Int64("teacher_id", session.TeacherID), zap.Int64("group_id", session.GroupID), zap.Int64("actor_id", identity.ID))
	return session, nil
}

// Get returns a session visible to the caller.
func (s *SessionService) Get(ctx context.Context, identity models.Identity, id int64) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "session not found", "failed to load session")
	}

	switch identity.Role {
	case models.RoleAdmin:
		return session, nil
	case models.RoleTeacher:
		if err := access.AuthorizeSession(identity, access.ReadRoster, session.TeacherID); err != nil {
			return nil, err
		}
		return session, nil
	default:
		visible, err := s.views.ListSessions(ctx, models.SessionFilter{Scope: models.SessionScopeByStudent, ID: identity.ID}, models.SortAsc)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load sessions")
		}
		for _, v := range visible {
			if v.ID == id {
				return session, nil
			}
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another group")
	}
}

// Delete removes a session and its attendance records.
func (s *SessionService) Delete(ctx context.Context, identity models.Identity, id int64) error {
	if err := access.Authorize(identity, access.ManageSessions); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return storeError(err, "session not found", "failed to delete session")
	}
	s.cache.InvalidateReports(ctx)
	s.logger.Info("session deleted", zap.Int64("session_id", id), zap.Int64("actor_id", identity.ID))
	return nil
}

// List returns sessions for the filter. Teachers only see sessions they teach and
// students only see sessions of their own groups; an empty scope selects that default.
func (s *SessionService) List(ctx context.Context, identity models.Identity, filter models.SessionFilter, order models.SortOrder) ([]models.SessionView, error) {
	if err := requireOrder(order); err != nil {
		return nil, err
	}

	scoped, err := scopeSessions(identity, filter)
	if err != nil {
		return nil, err
	}

	sessions, err := s.views.ListSessions(ctx, scoped, order)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list sessions")
	}
	return sessions, nil
}

func scopeSessions(identity models.Identity, filter models.SessionFilter) (models.SessionFilter, error) {
	switch {
	case access.Allowed(identity.Role, access.ListAllSessions):
		if filter.Scope == "" {
			filter.Scope = models.SessionScopeAll
		}
		switch filter.Scope {
		case models.SessionScopeAll:
			return filter, nil
		case models.SessionScopeByTeacher, models.SessionScopeByGroup, models.SessionScopeByStudent:
			if filter.ID <= 0 {
				return filter, appErrors.Clone(appErrors.ErrValidation, "scoped session listing needs an id")
			}
			return filter, nil
		default:
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown session scope")
		}
	case access.Allowed(identity.Role, access.ListOwnSessions):
		if (filter.Scope == "" || filter.Scope == models.SessionScopeByTeacher) && (filter.ID == 0 || filter.ID == identity.ID) {
			return models.SessionFilter{Scope: models.SessionScopeByTeacher, ID: identity.ID}, nil
		}
	case access.Allowed(identity.Role, access.ListGroupSessions):
		if (filter.Scope == "" || filter.Scope == models.SessionScopeByStudent) && (filter.ID == 0 || filter.ID == identity.ID) {
			return models.SessionFilter{Scope: models.SessionScopeByStudent, ID: identity.ID}, nil
		}
	}
	return filter, appErrors.Clone(appErrors.ErrForbidden, "session listing not permitted for role "+string(identity.Role))
}
