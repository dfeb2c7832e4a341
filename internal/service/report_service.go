package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-core/internal/access"
	"github.com/noah-isme/attendance-core/internal/models"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
)

type reportRepository interface {
	Report(ctx context.Context, filter models.ReportFilter, order models.SortOrder) ([]models.ReportRow, error)
	History(ctx context.Context, studentID int64, order models.SortOrder) ([]models.HistoryRow, error)
	Summary(ctx context.Context, filter models.ReportFilter) ([]models.AttendanceSummary, error)
}

// ReportService serves the attendance report, per-student summaries and a student's own history.
type ReportService struct {
	repo   reportRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportService constructs a ReportService. A zero ttl falls back to the cache default.
func NewReportService(repo reportRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Report returns attendance rows matching the filter ordered by session date and time.
func (s *ReportService) Report(ctx context.Context, identity models.Identity, filter models.ReportFilter, order models.SortOrder) ([]models.ReportRow, error) {
	if err := access.Authorize(identity, access.ReadReport); err != nil {
		return nil, err
	}
	if err := requireOrder(order); err != nil {
		return nil, err
	}
	if err := checkReportFilter(filter); err != nil {
		return nil, err
	}

	key := reportCachePrefix + "rows:" + string(order) + ":" + filterKey(filter)
	var rows []models.ReportRow
	if s.cache.Get(ctx, key, &rows) {
		return rows, nil
	}

	rows, err := s.repo.Report(ctx, filter, order)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance report")
	}
	if rows == nil {
		rows = []models.ReportRow{}
	}
	s.cache.Set(ctx, key, rows, s.ttl)
	return rows, nil
}

// History returns the caller's own attendance records.
func (s *ReportService) History(ctx context.Context, identity models.Identity, order models.SortOrder) ([]models.HistoryRow, error) {
	if err := access.Authorize(identity, access.ReadOwnRecords); err != nil {
		return nil, err
	}
	if err := requireOrder(order); err != nil {
		return nil, err
	}
	rows, err := s.repo.History(ctx, identity.ID, order)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance history")
	}
	if rows == nil {
		rows = []models.HistoryRow{}
	}
	return rows, nil
}

// Summary counts statuses per student. Percent is the share of present and late marks.
func (s *ReportService) Summary(ctx context.Context, identity models.Identity, filter models.ReportFilter) ([]models.AttendanceSummary, error) {
	if err := access.Authorize(identity, access.ReadReport); err != nil {
		return nil, err
	}
	if err := checkReportFilter(filter); err != nil {
		return nil, err
	}

	key := reportCachePrefix + "summary:" + filterKey(filter)
	var summaries []models.AttendanceSummary
	if s.cache.Get(ctx, key, &summaries) {
		return summaries, nil
	}

	summaries, err := s.repo.Summary(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance summary")
	}
	if summaries == nil {
		summaries = []models.AttendanceSummary{}
	}
	for i := range summaries {
		summaries[i].Percent = attendancePercent(summaries[i])
	}
	s.cache.Set(ctx, key, summaries, s.ttl)
	return summaries, nil
}

func attendancePercent(row models.AttendanceSummary) float64 {
	if row.Total == 0 {
		return 0
	}
	ratio := float64(row.Present+row.Late) / float64(row.Total) * 100
	return math.Round(ratio*100) / 100
}

func checkReportFilter(filter models.ReportFilter) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "status must be present, absent or late")
	}
	for _, d := range []string{filter.DateFrom, filter.DateTo} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.SessionDateLayout, d); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "dates must use YYYY-MM-DD")
		}
	}
	if filter.DateFrom != "" && filter.DateTo != "" && filter.DateFrom > filter.DateTo {
		return appErrors.Clone(appErrors.ErrValidation, "date_from must not be after date_to")
	}
	return nil
}

func filterKey(f models.ReportFilter) string {
	return fmt.Sprintf("st=%d:g=%d:su=%d:se=%d:from=%s:to=%s:status=%s",
		f.StudentID, f.GroupID, f.SubjectID, f.ScheduleID, f.DateFrom, f.DateTo, f.Status)
}
