package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/repository"
)

const (
	sheetVerdicts = "Verdicts"
	sheetSummary  = "Summary"
)

// Service produces XLSX workbooks from persisted result records.
type Service struct {
	jobs    repository.JobRepository
	results repository.ResultRepository
	logger  *slog.Logger
}

func NewService(jobs repository.JobRepository, results repository.ResultRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, results: results, logger: logger}
}

// ExportJobXLSX returns the workbook for a finished job's result record.
func (s *Service) ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.State.Terminal() || job.ResultID == nil {
		return nil, common.NewAppError("CONFLICT", fmt.Sprintf("job %s is %s", jobID, job.State), common.ErrConflict)
	}
	rec, err := s.results.Get(ctx, *job.ResultID)
	if err != nil {
		return nil, fmt.Errorf("load result record: %w", err)
	}

	out, err := WriteRecord(rec)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"job_id", jobID.String(),
		"rows", len(rec.Verdicts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

var verdictHeaders = []string{
	"Parameter",
	"Result",
	"Unit",
	"Applied Limit",
	"Band",
	"Outcome",
	"Matched Entry",
	"Matched By",
	"Rationale",
}

// WriteRecord renders rec as a two-sheet workbook: verdict rows and a summary.
func WriteRecord(rec *entity.ResultRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// the default "Sheet1" becomes the verdicts sheet
	if err := f.SetSheetName(f.GetSheetName(0), sheetVerdicts); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	for i, h := range verdictHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetVerdicts, cell, h)
	}

	for i, v := range rec.Verdicts {
		row := i + 2
		write := func(col int, val any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetVerdicts, cell, val)
		}
		write(1, v.ParameterName)
		write(2, v.ResultText)
		write(3, v.UnitText)
		write(4, v.AppliedLimitText)
		write(5, string(v.Band))
		write(6, v.Band.Label())
		write(7, v.MatchedEntry)
		write(8, v.MatchedBy)
		write(9, truncate(v.Rationale, 240))
	}

	_ = f.SetColWidth(sheetVerdicts, "A", "A", 36) // parameter
	_ = f.SetColWidth(sheetVerdicts, "B", "C", 16)
	_ = f.SetColWidth(sheetVerdicts, "D", "D", 28)
	_ = f.SetColWidth(sheetVerdicts, "E", "F", 22)
	_ = f.SetColWidth(sheetVerdicts, "G", "H", 28)
	_ = f.SetColWidth(sheetVerdicts, "I", "I", 80) // rationale

	summary := [][2]any{
		{"File", rec.FileName},
		{"Job ID", rec.JobID.String()},
		{"Success", rec.Success},
		{"Sample Kind", string(rec.Profile.Kind)},
		{"Product", rec.Profile.ProductLabel},
		{"Category", rec.CategoryID},
		{"Text Source", rec.RecoveryMethod},
		{"Used Recovery", rec.UsedRecovery},
		{"Verdicts", len(rec.Verdicts)},
		{"Needs Confirmation", countBand(rec.Verdicts, constants.BandUndetermined)},
		{"Unmatched Parameters", strings.Join(rec.UnmatchedParameters, ", ")},
		{"Error", rec.ErrorMessage},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(sheetSummary, "A", "A", 24)
	_ = f.SetColWidth(sheetSummary, "B", "B", 60)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, common.NewAppError("EXPORT_ERROR", "xlsx write", errors.Join(common.ErrInternal, err))
	}
	return buf.Bytes(), nil
}

func countBand(verdicts []entity.ComplianceVerdict, b constants.Band) int {
	n := 0
	for _, v := range verdicts {
		if v.Band == b {
			n++
		}
	}
	return n
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
