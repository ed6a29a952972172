package service

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/assignment-sync/internal/models"
	"github.com/noah-isme/assignment-sync/pkg/export"
	"github.com/noah-isme/assignment-sync/pkg/storage"
)

// AssignmentsCSVFile is the combined export of every collected record.
const AssignmentsCSVFile = "assignments.csv"

type outputStorage interface {
	Save(filename string, data []byte) (string, error)
	SaveJSON(filename string, v interface{}) (string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Write(w io.Writer, data export.Dataset, title string) error
}

type reportSigner interface {
	Enabled() bool
	Generate(runID string) (string, time.Time, error)
	Verify(runID, token string) error
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	Enabled   bool
}

// ExportService writes per-class outputs and renders sync reports.
type ExportService struct {
	storage outputStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  reportSigner
	cfg     ExportConfig
	logger  *zap.Logger
}

// NewExportService constructs an ExportService. signer may be nil.
func NewExportService(store outputStorage, signer reportSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter().WithBOM()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{storage: store, csv: csv, pdf: pdf, signer: signer, cfg: cfg, logger: logger}
}

// WriteOutputs saves one JSON file per class plus a combined CSV and returns
// the written paths. It is a no-op when exports are disabled.
func (s *ExportService) WriteOutputs(classes models.AssignmentsByClass) ([]string, error) {
	if !s.cfg.Enabled || s.storage == nil {
		return nil, nil
	}

	written := make([]string, 0, len(classes)+1)
	for _, group := range classes {
		path, err := s.storage.SaveJSON(storage.SanitizeFilename(group.ClassName)+".json", group.Records)
		if err != nil {
			return written, fmt.Errorf("write outputs for %s: %w", group.ClassName, err)
		}
		written = append(written, path)
	}

	data, err := s.csv.Render(export.AssignmentsDataset(classes))
	if err != nil {
		return written, err
	}
	path, err := s.storage.Save(AssignmentsCSVFile, data)
	if err != nil {
		return written, err
	}
	written = append(written, path)

	s.logger.Info("saved assignment outputs", zap.Int("assignments", classes.Total()), zap.Int("files", len(written)))
	return written, nil
}

// WriteReport renders the outcome of a sync session as a PDF.
func (s *ExportService) WriteReport(w io.Writer, outcome *models.SyncOutcome) error {
	title := "Assignment sync report"
	if outcome != nil && outcome.Options.DryRun {
		title = "Assignment sync report (dry run)"
	}
	return s.pdf.Write(w, export.SyncOutcomeDataset(outcome), title)
}

// ReportLink returns a signed download URL for a run's PDF report. It returns
// an empty link when no signing secret is configured.
func (s *ExportService) ReportLink(runID string) (string, time.Time, error) {
	if s.signer == nil || !s.signer.Enabled() {
		return "", time.Time{}, nil
	}
	token, expiresAt, err := s.signer.Generate(runID)
	if err != nil {
		return "", time.Time{}, err
	}
	link := fmt.Sprintf("%s/sync/runs/%s/report.pdf?token=%s", s.cfg.APIPrefix, url.PathEscape(runID), url.QueryEscape(token))
	return link, expiresAt, nil
}

// VerifyReportToken checks a signed report token.
func (s *ExportService) VerifyReportToken(runID, token string) bool {
	if s.signer == nil || !s.signer.Enabled() || token == "" {
		return false
	}
	return s.signer.Verify(runID, token) == nil
}
