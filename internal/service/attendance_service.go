package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-core/internal/access"
	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/repository"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
)

type attendanceRepository interface {
	Mark(ctx context.Context, scheduleID, studentID int64, status models.AttendanceStatus, check repository.SessionCheck) (*models.AttendanceRecord, error)
	Roster(ctx context.Context, session *models.Session) ([]models.RosterEntry, error)
}

type sessionLookup interface {
	FindByID(ctx context.Context, id int64) (*models.Session, error)
}

// AttendanceService records attendance marks and serves session rosters.
type AttendanceService struct {
	repo     attendanceRepository
	sessions sessionLookup
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, sessions sessionLookup, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, sessions: sessions, cache: cache, metrics: metrics, logger: logger}
}

// Mark sets the status of one student for a session, overwriting any earlier mark.
// Teachers may only mark sessions they teach.
func (s *AttendanceService) Mark(ctx context.Context, identity models.Identity, scheduleID, studentID int64, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	if err := access.Authorize(identity, access.MarkAttendance); err != nil {
		return nil, err
	}
	if !status.Valid() {
		s.metrics.RecordMarkFailure(appErrors.ErrValidation.Code)
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be present, absent or late")
	}

	record, err := s.mark(ctx, identity, scheduleID, studentID, status)
	if err != nil {
		s.metrics.RecordMarkFailure(appErrors.FromError(err).Code)
		return nil, err
	}

	s.cache.InvalidateReports(ctx)
	return record, nil
}

func (s *AttendanceService) mark(ctx context.Context, identity models.Identity, scheduleID, studentID int64, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	check := func(session *models.Session) error {
		return access.AuthorizeSession(identity, access.MarkAttendance, session.TeacherID)
	}
	record, err := s.repo.Mark(ctx, scheduleID, studentID, status, check)
	if err != nil {
		return nil, storeError(err, "session not found", "failed to mark attendance")
	}
	s.metrics.RecordMark(status)
	s.logger.Debug("attendance marked",
		zap.Int64("schedule_id", scheduleID),
		zap.Int64("student_id", studentID),
		zap.String("status", string(status)),
		zap.Int64("actor_id", identity.ID),
	)
	return record, nil
}

// MarkRoster marks several students of one session. Each student is stored in its own
// transaction, so a rejected student does not undo the others. Failing to load or
// authorize the session fails the whole call.
func (s *AttendanceService) MarkRoster(ctx context.Context, identity models.Identity, scheduleID int64, req models.MarkRosterRequest) (*models.BulkMarkResult, error) {
	if err := access.Authorize(identity, access.MarkAttendance); err != nil {
		return nil, err
	}
	if len(req.Statuses) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "statuses must not be empty")
	}

	session, err := s.sessions.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, storeError(err, "session not found", "failed to load session")
	}
	if err := access.AuthorizeSession(identity, access.MarkAttendance, session.TeacherID); err != nil {
		return nil, err
	}

	studentIDs := make([]int64, 0, len(req.Statuses))
	for id := range req.Statuses {
		studentIDs = append(studentIDs, id)
	}
	sort.Slice(studentIDs, func(i, j int) bool { return studentIDs[i] < studentIDs[j] })

	result := &models.BulkMarkResult{Failures: []models.BulkMarkFailure{}}
	for _, studentID := range studentIDs {
		result.Processed++
		status := req.Statuses[studentID]
		if !status.Valid() {
			result.Failures = append(result.Failures, s.failure(studentID, appErrors.Clone(appErrors.ErrValidation, "status must be present, absent or late")))
			continue
		}
		if _, err := s.mark(ctx, identity, scheduleID, studentID, status); err != nil {
			var typed *appErrors.Error
			if !errors.As(err, &typed) || typed.Code == appErrors.ErrInternal.Code {
				s.logger.Error("roster mark failed", zap.Int64("schedule_id", scheduleID), zap.Int64("student_id", studentID), zap.Error(err))
			}
			result.Failures = append(result.Failures, s.failure(studentID, appErrors.FromError(err)))
			continue
		}
		result.Success++
	}

	if result.Success > 0 {
		s.cache.InvalidateReports(ctx)
	}
	s.logger.Info("roster marked",
		zap.Int64("schedule_id", scheduleID),
		zap.Int("processed", result.Processed),
		zap.Int("success", result.Success),
		zap.Int64("actor_id", identity.ID),
	)
	return result, nil
}

func (s *AttendanceService) failure(studentID int64, err *appErrors.Error) models.BulkMarkFailure {
	s.metrics.RecordMarkFailure(err.Code)
	return models.BulkMarkFailure{StudentID: studentID, Code: err.Code, Reason: err.Message}
}

// Roster lists the session group's members with their statuses.
func (s *AttendanceService) Roster(ctx context.Context, identity models.Identity, scheduleID int64) ([]models.RosterEntry, error) {
	if err := access.Authorize(identity, access.ReadRoster); err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, storeError(err, "session not found", "failed to load session")
	}
	if err := access.AuthorizeSession(identity, access.ReadRoster, session.TeacherID); err != nil {
		return nil, err
	}

	entries, err := s.repo.Roster(ctx, session)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load roster")
	}
	return entries, nil
}
