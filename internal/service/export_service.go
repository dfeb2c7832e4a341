package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-core/internal/models"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
	"github.com/noah-isme/attendance-core/pkg/export"
)

const exportTitle = "Attendance report"

type reportSource interface {
	Report(ctx context.Context, identity models.Identity, filter models.ReportFilter, order models.SortOrder) ([]models.ReportRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
}

// ExportResult carries one rendered report file.
type ExportResult struct {
	Format      export.Format
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders the attendance report in the supported file formats.
type ExportService struct {
	reports reportSource
	storage fileStorage
	logger  *zap.Logger
}

// NewExportService constructs the export service. storage may be nil when files are only streamed.
func NewExportService(reports reportSource, storage fileStorage, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{reports: reports, storage: storage, logger: logger}
}

// Export renders the report rows visible to the caller in one format.
func (s *ExportService) Export(ctx context.Context, identity models.Identity, filter models.ReportFilter, order models.SortOrder, format export.Format) (*ExportResult, error) {
	rows, err := s.reports.Report(ctx, identity, filter, order)
	if err != nil {
		return nil, err
	}
	return render(rows, format)
}

// SaveAll writes the report once per format as attendance.<ext> and returns the written paths.
func (s *ExportService) SaveAll(ctx context.Context, identity models.Identity, filter models.ReportFilter, order models.SortOrder, formats []export.Format) ([]string, error) {
	if s.storage == nil {
		return nil, appErrors.Internal(nil, "export storage not configured")
	}
	rows, err := s.reports.Report(ctx, identity, filter, order)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		result, err := render(rows, format)
		if err != nil {
			return paths, err
		}
		path, err := s.storage.Save(result.Filename, result.Data)
		if err != nil {
			return paths, appErrors.Internal(err, "failed to write export file")
		}
		s.logger.Info("report exported", zap.String("format", string(format)), zap.String("path", path), zap.Int("rows", result.Rows))
		paths = append(paths, path)
	}
	return paths, nil
}

func render(rows []models.ReportRow, format export.Format) (*ExportResult, error) {
	renderer, err := export.NewRenderer(format, exportTitle)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	data, err := renderer.Render(reportDataset(rows))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	return &ExportResult{
		Format:      format,
		Filename:    "attendance." + format.Extension(),
		ContentType: format.ContentType(),
		Data:        data,
		Rows:        len(rows),
	}, nil
}

func reportDataset(rows []models.ReportRow) export.Dataset {
	dataset := export.Dataset{
		Headers: models.ReportFields,
		Rows:    make([]map[string]string, 0, len(rows)),
		Numeric: map[string]bool{"attendance_id": true},
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"attendance_id": strconv.FormatInt(row.AttendanceID, 10),
			"student":       row.Student,
			"group":         row.Group,
			"date":          row.Date,
			"time":          row.Time,
			"subject":       row.Subject,
			"status":        string(row.Status),
		})
	}
	return dataset
}
