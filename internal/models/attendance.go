package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"

	// AttendanceStatusUnmarked tags roster entries with no stored record. It is never writable.
	AttendanceStatusUnmarked AttendanceStatus = "unmarked"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// AttendanceRecord is the single stored status of a student for a session.
type AttendanceRecord struct {
	ID         int64            `db:"id" json:"id"`
	ScheduleID int64            `db:"schedule_id" json:"schedule_id"`
	StudentID  int64            `db:"student_id" json:"student_id"`
	Status     AttendanceStatus `db:"status" json:"status"`
	MarkedAt   *time.Time       `db:"marked_at" json:"marked_at,omitempty"`
}

// MarkAttendanceRequest is the payload for marking one student.
type MarkAttendanceRequest struct {
	Status AttendanceStatus `json:"status" validate:"required,attendance_status"`
}

// MarkRosterRequest maps student ids to statuses for one session.
type MarkRosterRequest struct {
	Statuses map[int64]AttendanceStatus `json:"statuses" validate:"required,min=1"`
}

// RosterEntry is one group member with the recorded status or the unmarked sentinel.
type RosterEntry struct {
	StudentID int64            `db:"student_id" json:"student_id"`
	Username  string           `db:"username" json:"username"`
	Status    AttendanceStatus `db:"status" json:"status"`
}

// BulkMarkFailure explains why one student of a roster mark was rejected.
type BulkMarkFailure struct {
	StudentID int64  `json:"student_id"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

// BulkMarkResult summarises a roster mark.
type BulkMarkResult struct {
	Processed int               `json:"processed"`
	Success   int               `json:"success"`
	Failures  []BulkMarkFailure `json:"failures"`
}

// ReportRow is one row of the attendance report. Field order is a compatibility contract for exports.
type ReportRow struct {
	AttendanceID int64            `db:"attendance_id" json:"attendance_id" yaml:"attendance_id" xml:"attendance_id"`
	Student      string           `db:"student" json:"student" yaml:"student" xml:"student"`
	Group        string           `db:"group_name" json:"group" yaml:"group" xml:"group"`
	Date         string           `db:"date" json:"date" yaml:"date" xml:"date"`
	Time         string           `db:"time" json:"time" yaml:"time" xml:"time"`
	Subject      string           `db:"subject" json:"subject" yaml:"subject" xml:"subject"`
	Status       AttendanceStatus `db:"status" json:"status" yaml:"status" xml:"status"`
}

// ReportFields lists the report columns in export order.
var ReportFields = []string{"attendance_id", "student", "group", "date", "time", "subject", "status"}

// ReportFilter narrows the attendance report. Zero values mean no constraint.
type ReportFilter struct {
	StudentID  int64
	GroupID    int64
	SubjectID  int64
	ScheduleID int64
	DateFrom   string
	DateTo     string
	Status     AttendanceStatus
}

// HistoryRow is one entry of a student's own attendance history.
type HistoryRow struct {
	AttendanceID int64            `db:"attendance_id" json:"attendance_id"`
	Date         string           `db:"date" json:"date"`
	Time         string           `db:"time" json:"time"`
	Subject      string           `db:"subject" json:"subject"`
	Status       AttendanceStatus `db:"status" json:"status"`
}

// AttendanceSummary counts statuses for one student.
type AttendanceSummary struct {
	StudentID int64   `db:"student_id" json:"student_id"`
	Student   string  `db:"student" json:"student"`
	Present   int     `db:"present" json:"present"`
	Absent    int     `db:"absent" json:"absent"`
	Late      int     `db:"late" json:"late"`
	Total     int     `db:"total" json:"total"`
	Percent   float64 `db:"-" json:"percent"`
}
