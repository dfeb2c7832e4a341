package models

import "time"

// Date and time layouts used for stored sessions.
const (
	SessionDateLayout = "2006-01-02"
	SessionTimeLayout = "15:04"
)

// Session is one scheduled occurrence of a subject taught to a group.
type Session struct {
	ID        int64     `db:"id" json:"id"`
	SubjectID int64     `db:"subject_id" json:"subject_id"`
	TeacherID int64     `db:"teacher_id" json:"teacher_id"`
	GroupID   int64     `db:"group_id" json:"group_id"`
	Date      string    `db:"date" json:"date"`
	Time      string    `db:"time" json:"time"`
	Room      *string   `db:"room" json:"room,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateSessionRequest is the payload for scheduling a session.
type CreateSessionRequest struct {
	SubjectID int64   `json:"subject_id" validate:"required,gt=0"`
	TeacherID int64   `json:"teacher_id" validate:"required,gt=0"`
	GroupID   int64   `json:"group_id" validate:"required,gt=0"`
	Date      string  `json:"date" validate:"required,session_date"`
	Time      string  `json:"time" validate:"required,session_time"`
	Room      *string `json:"room" validate:"omitempty,max=64"`
}

// SessionScope selects which sessions a listing covers.
type SessionScope string

const (
	SessionScopeAll       SessionScope = "all"
	SessionScopeByTeacher SessionScope = "teacher"
	SessionScopeByGroup   SessionScope = "group"
	SessionScopeByStudent SessionScope = "student"
)

// SessionFilter scopes a session listing. ID is the teacher, group or student id for the scoped kinds.
type SessionFilter struct {
	Scope SessionScope
	ID    int64
}

// SessionView is a session joined with its subject, teacher and group names.
type SessionView struct {
	ID          int64   `db:"id" json:"id"`
	Date        string  `db:"date" json:"date"`
	Time        string  `db:"time" json:"time"`
	Room        *string `db:"room" json:"room,omitempty"`
	SubjectID   int64   `db:"subject_id" json:"subject_id"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	TeacherID   int64   `db:"teacher_id" json:"teacher_id"`
	TeacherName string  `db:"teacher_name" json:"teacher_name"`
	GroupID     int64   `db:"group_id" json:"group_id"`
	GroupName   string  `db:"group_name" json:"group_name"`
}

// SortOrder orders listings by date then time.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid returns true for asc or desc.
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// SQL returns the ORDER BY direction keyword.
func (o SortOrder) SQL() string {
	if o == SortDesc {
		return "DESC"
	}
	return "ASC"
}
