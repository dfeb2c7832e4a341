package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/service"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
	"github.com/noah-isme/attendance-core/pkg/export"
	"github.com/noah-isme/attendance-core/pkg/response"
)

// ReportHandler serves attendance reports, summaries, history and file exports.
type ReportHandler struct {
	reports *service.ReportService
	exports *service.ExportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports *service.ReportService, exports *service.ExportService) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports}
}

// Report godoc
// @Summary Attendance report
// @Tags Reports
// @Produce json
// @Param student_id query int false "Student ID"
// @Param group_id query int false "Group ID"
// @Param subject_id query int false "Subject ID"
// @Param schedule_id query int false "Session ID"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Param status query string false "present, absent or late"
// @Param order query string false "desc (default) or asc"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/report [get]
func (h *ReportHandler) Report(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	filter, err := reportFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	order := sortOrder(c, models.SortDesc)

	rows, err := h.reports.Report(c.Request.Context(), identity, filter, order)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, len(rows), map[string]interface{}{"order": order})
}

// Summary godoc
// @Summary Attendance summary per student
// @Description Present, absent and late counts with the share of present or late marks.
// @Tags Reports
// @Produce json
// @Param group_id query int false "Group ID"
// @Param subject_id query int false "Subject ID"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	filter, err := reportFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summaries, err := h.reports.Summary(c.Request.Context(), identity, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, summaries, len(summaries))
}

// History godoc
// @Summary Own attendance history
// @Tags Reports
// @Produce json
// @Param order query string false "desc (default) or asc"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/me [get]
func (h *ReportHandler) History(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	rows, err := h.reports.History(c.Request.Context(), identity, sortOrder(c, models.SortDesc))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, len(rows))
}

// Export godoc
// @Summary Export the attendance report
// @Description Columns are always attendance_id, student, group, date, time, subject, status.
// @Tags Reports
// @Produce json,application/yaml,text/csv,application/xml,application/pdf
// @Param format query string true "json, yaml, csv, xml or pdf"
// @Param order query string false "desc (default) or asc"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, bindError(err, "format must be one of json, yaml, csv, xml, pdf"))
		return
	}
	filter, err := reportFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.exports.Export(c.Request.Context(), identity, filter, sortOrder(c, models.SortDesc), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func reportFilter(c *gin.Context) (models.ReportFilter, error) {
	var filter models.ReportFilter
	var err error
	ids := []struct {
		name string
		dst  *int64
	}{
		{"student_id", &filter.StudentID},
		{"group_id", &filter.GroupID},
		{"subject_id", &filter.SubjectID},
		{"schedule_id", &filter.ScheduleID},
	}
	for _, id := range ids {
		if *id.dst, err = queryID(c, id.name); err != nil {
			return filter, err
		}
	}
	filter.DateFrom = strings.TrimSpace(c.Query("date_from"))
	filter.DateTo = strings.TrimSpace(c.Query("date_to"))
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = models.AttendanceStatus(strings.ToLower(status))
		if !filter.Status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "status must be present, absent or late")
		}
	}
	return filter, nil
}
