package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-core/internal/models"
)

// ReportRepository serves the joined read views. Every view uses inner joins,
// so rows whose parents are gone never appear.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// ListSessions returns session views for the filter ordered by date and time.
func (r *ReportRepository) ListSessions(ctx context.Context, filter models.SessionFilter, order models.SortOrder) ([]models.SessionView, error) {
	query := `SELECT s.id, s.date, s.time, s.room,
       sub.id AS subject_id, sub.name AS subject_name,
       t.id AS teacher_id, t.username AS teacher_name,
       g.id AS group_id, g.name AS group_name
FROM schedules s
JOIN subjects sub ON sub.id = s.subject_id
JOIN users t ON t.id = s.teacher_id
JOIN student_groups g ON g.id = s.group_id`

	var args []interface{}
	switch filter.Scope {
	case models.SessionScopeByTeacher:
		query += ` WHERE s.teacher_id = ?`
		args = append(args, filter.ID)
	case models.SessionScopeByGroup:
		query += ` WHERE s.group_id = ?`
		args = append(args, filter.ID)
	case models.SessionScopeByStudent:
		query += ` WHERE s.group_id IN (SELECT group_id FROM group_members WHERE user_id = ?)`
		args = append(args, filter.ID)
	}

	dir := order.SQL()
	query += fmt.Sprintf(` ORDER BY s.date %s, s.time %s, s.id %s`, dir, dir, dir)

	sessions := []models.SessionView{}
	if err := r.db.SelectContext(ctx, &sessions, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Report returns attendance rows in the fixed export field order.
func (r *ReportRepository) Report(ctx context.Context, filter models.ReportFilter, order models.SortOrder) ([]models.ReportRow, error) {
	where, args := reportConditions(filter)
	query := `SELECT a.id AS attendance_id, u.username AS student, g.name AS group_name, s.date, s.time, sub.name AS subject, a.status
FROM attendance a
JOIN users u ON u.id = a.student_id
JOIN schedules s ON s.id = a.schedule_id
JOIN subjects sub ON sub.id = s.subject_id
JOIN student_groups g ON g.id = s.group_id` + where

	dir := order.SQL()
	query += fmt.Sprintf(` ORDER BY s.date %s, s.time %s, u.username ASC, a.id ASC`, dir, dir)

	rows := []models.ReportRow{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("attendance report: %w", err)
	}
	return rows, nil
}

// History returns a student's own attendance records.
func (r *ReportRepository) History(ctx context.Context, studentID int64, order models.SortOrder) ([]models.HistoryRow, error) {
	dir := order.SQL()
	query := fmt.Sprintf(`SELECT a.id AS attendance_id, s.date, s.time, sub.name AS subject, a.status
FROM attendance a
JOIN schedules s ON s.id = a.schedule_id
JOIN subjects sub ON sub.id = s.subject_id
WHERE a.student_id = ?
ORDER BY s.date %s, s.time %s, a.id ASC`, dir, dir)

	rows := []models.HistoryRow{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), studentID); err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return rows, nil
}

// Summary counts statuses per student for the filtered records.
func (r *ReportRepository) Summary(ctx context.Context, filter models.ReportFilter) ([]models.AttendanceSummary, error) {
	where, args := reportConditions(filter)
	query := `SELECT u.id AS student_id, u.username AS student,
       SUM(CASE WHEN a.status = 'present' THEN 1 ELSE 0 END) AS present,
       SUM(CASE WHEN a.status = 'absent' THEN 1 ELSE 0 END) AS absent,
       SUM(CASE WHEN a.status = 'late' THEN 1 ELSE 0 END) AS late,
       COUNT(*) AS total
FROM attendance a
JOIN users u ON u.id = a.student_id
JOIN schedules s ON s.id = a.schedule_id
JOIN subjects sub ON sub.id = s.subject_id
JOIN student_groups g ON g.id = s.group_id` + where + `
GROUP BY u.id, u.username
ORDER BY u.username ASC`

	rows := []models.AttendanceSummary{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return rows, nil
}

func reportConditions(filter models.ReportFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.StudentID > 0 {
		conditions = append(conditions, "a.student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.GroupID > 0 {
		conditions = append(conditions, "s.group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.SubjectID > 0 {
		conditions = append(conditions, "s.subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.ScheduleID > 0 {
		conditions = append(conditions, "a.schedule_id = ?")
		args = append(args, filter.ScheduleID)
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, "s.date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		conditions = append(conditions, "s.date <= ?")
		args = append(args, filter.DateTo)
	}
	if filter.Status != "" {
		conditions = append(conditions, "a.status = ?")
		args = append(args, filter.Status)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(conditions, " AND "), args
}
