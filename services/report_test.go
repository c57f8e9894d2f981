package services

import (
	"strings"
	"testing"
	"time"

	"tender-scraper/models"
	"tender-scraper/utils"
)

func TestRenderReport(t *testing.T) {
	svc := NewReportService(utils.NewLogger())

	started := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	report := &models.RunReport{
		RunID:            "run-1",
		Portal:           "RIB meinauftrag",
		StartedAt:        started,
		FinishedAt:       started.Add(90 * time.Second),
		Discovered:       12,
		Extracted:        9,
		Degraded:         2,
		Failed:           1,
		Persisted:        10,
		SkippedDuplicate: 1,
		DocumentsSaved:   7,
	}

	out := svc.Render(report)

	for _, want := range []string{"Discovered", "12", "Degraded", "Documents saved", "1m30s"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered report missing %q:\n%s", want, out)
		}
	}
}
