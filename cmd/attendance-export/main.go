// Command attendance-export writes the attendance report to EXPORT_DIR once per format.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/repository"
	"github.com/noah-isme/attendance-core/internal/service"
	"github.com/noah-isme/attendance-core/pkg/config"
	"github.com/noah-isme/attendance-core/pkg/database"
	"github.com/noah-isme/attendance-core/pkg/export"
	"github.com/noah-isme/attendance-core/pkg/logger"
	"github.com/noah-isme/attendance-core/pkg/storage"
)

// exporter runs with the report grant of an administrator; it never writes to the store.
var exporter = models.Identity{Username: "attendance-export", Role: models.RoleAdmin}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	formats := flag.String("formats", "all", "comma separated formats: json,yaml,csv,xml,pdf or all")
	outDir := flag.String("out", cfg.Reports.ExportDir, "output directory")
	order := flag.String("order", string(models.SortDesc), "sort order by session date and time: asc or desc")
	groupID := flag.Int64("group", 0, "restrict to one group id")
	flag.Parse()

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	selected, err := parseFormats(*formats)
	if err != nil {
		logr.Fatal("invalid formats", zap.Error(err))
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("storage unavailable", zap.Error(err))
	}
	defer db.Close()

	files, err := storage.NewLocalStorage(*outDir)
	if err != nil {
		logr.Fatal("output directory unavailable", zap.String("dir", *outDir), zap.Error(err))
	}

	reports := service.NewReportService(repository.NewReportRepository(db), nil, 0, logr)
	exports := service.NewExportService(reports, files, logr)

	paths, err := exports.SaveAll(ctx, exporter, models.ReportFilter{GroupID: *groupID}, models.SortOrder(*order), selected)
	if err != nil {
		logr.Fatal("export failed", zap.Strings("written", paths), zap.Error(err))
	}
	logr.Info("export finished", zap.Strings("files", paths))
}

func parseFormats(raw string) ([]export.Format, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "all") {
		return export.Formats, nil
	}
	var out []export.Format
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := export.ParseFormat(part)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, errors.New("no export format selected")
	}
	return out, nil
}
