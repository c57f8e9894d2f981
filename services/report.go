package services

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"tender-scraper/models"
	"tender-scraper/utils"
)

// ReportService renders the end-of-run report.
type ReportService struct {
	logger *utils.Logger
}

// NewReportService creates a ReportService.
func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Render formats the report as a printable table.
func (r *ReportService) Render(report *models.RunReport) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Run %s — %s", report.RunID, report.Portal))

	t.AppendHeader(table.Row{"Metric", "Count"})
	t.AppendRows([]table.Row{
		{"Discovered", report.Discovered},
		{"Extracted", report.Extracted},
		{"Degraded", report.Degraded},
		{"Failed", report.Failed},
		{"Persisted", report.Persisted},
		{"Skipped (duplicate)", report.SkippedDuplicate},
		{"Documents saved", report.DocumentsSaved},
		{"Documents skipped", report.DocumentsSkipped},
		{"Documents failed", report.DocumentsFailed},
	})
	t.AppendFooter(table.Row{
		"Duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Second),
	})

	return t.Render()
}

// Print logs the run summary and writes the table to stdout.
func (r *ReportService) Print(report *models.RunReport) {
	r.logger.Info("Run %s finished — %d discovered, %d persisted, %d duplicate(s), %d failure(s)",
		report.RunID, report.Discovered, report.Persisted, report.SkippedDuplicate, report.Failed)

	for _, msg := range report.Errors {
		r.logger.Warn("Run error: %s", msg)
	}

	fmt.Println(r.Render(report))
}
