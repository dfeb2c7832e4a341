package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/service"
	"github.com/noah-isme/attendance-core/pkg/response"
)

// SessionHandler exposes sessions, rosters and attendance marking.
type SessionHandler struct {
	sessions   *service.SessionService
	attendance *service.AttendanceService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(sessions *service.SessionService, attendance *service.AttendanceService) *SessionHandler {
	return &SessionHandler{sessions: sessions, attendance: attendance}
}

// List godoc
// @Summary List sessions
// @Description Admins may pick any scope. Teachers always get their own sessions and students the sessions of their groups.
// @Tags Sessions
// @Produce json
// @Param scope query string false "all, teacher, group or student"
// @Param id query int false "Teacher, group or student id for scoped listings"
// @Param order query string false "asc (default) or desc"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, err := queryID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.SessionFilter{Scope: models.SessionScope(c.Query("scope")), ID: id}
	order := sortOrder(c, models.SortAsc)

	sessions, err := h.sessions.List(c.Request.Context(), identity, filter, order)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, sessions, len(sessions), map[string]interface{}{"order": order})
}

// Create godoc
// @Summary Schedule a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body models.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payload"))
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get godoc
// @Summary Get session
// @Tags Sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	session, err := h.sessions.Get(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session)
}

// Delete godoc
// @Summary Delete session
// @Tags Sessions
// @Param id path int true "Session ID"
// @Success 204
// @Security BearerAuth
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), identity, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary Session roster
// @Description Every member of the session group with the recorded status or "unmarked".
// @Tags Attendance
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /sessions/{id}/roster [get]
func (h *SessionHandler) Roster(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	roster, err := h.attendance.Roster(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, roster, len(roster))
}

// Mark godoc
// @Summary Mark one student
// @Description Sets the status, replacing any earlier mark for the same student and session.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path int true "Session ID"
// @Param studentId path int true "Student ID"
// @Param payload body models.MarkAttendanceRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /sessions/{id}/attendance/{studentId} [put]
func (h *SessionHandler) Mark(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := pathID(c, "studentId")
	if !ok {
		return
	}
	var req models.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payload"))
		return
	}
	record, err := h.attendance.Mark(c.Request.Context(), identity, sessionID, studentID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// MarkRoster godoc
// @Summary Mark several students
// @Description Each student is stored independently. Rejected students are listed in failures.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path int true "Session ID"
// @Param payload body models.MarkRosterRequest true "Statuses keyed by student id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /sessions/{id}/attendance [post]
func (h *SessionHandler) MarkRoster(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.MarkRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payload"))
		return
	}
	result, err := h.attendance.MarkRoster(c.Request.Context(), identity, sessionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
