package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/assignment-sync/internal/models"
)

func sampleOutcome() *models.SyncOutcome {
	classes := models.AssignmentsByClass{
		{
			ClassName: "CS 1050 - Intro",
			Records: []models.AssignmentRecord{
				{Name: "HW1, part A", DueDate: models.Date{Year: 2024, Month: time.March, Day: 10}, ClassName: "CS 1050 - Intro"},
			},
		},
	}
	return &models.SyncOutcome{
		Options: models.SyncOptions{Mode: models.SyncModeDryRun, DryRun: true},
		Collect: &models.CollectResult{Classes: classes, CoursesFetched: 3, CoursesCurrent: 2, CoursesMatched: 1},
		Report: &models.SyncReport{
			Status:     models.SyncStatusSuccess,
			DryRun:     true,
			ClassStats: []models.ClassStats{{ClassName: "CS 1050 - Intro", IncomingCount: 1, AddedCount: 1}},
		},
		Started: time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestCSVExporterAssignments(t *testing.T) {
	data := AssignmentsDataset(sampleOutcome().Collect.Classes)
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "assignment name,due-date,Class\n\"HW1, part A\",03/10/2024,CS 1050 - Intro\n", string(out))
}

func TestCSVExporterEscapesFormulas(t *testing.T) {
	data := Dataset{Headers: AssignmentHeaders}
	data.AddRow("=HYPERLINK(\"http://x\")", "03/10/2024", "CS 1050 - Intro")
	data.AddRow("-5 points quiz", "03/11/2024", "CS 1050 - Intro")

	out, err := NewCSVExporter().WithBOM().Render(data)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))
	body := string(out[len(utf8BOM):])
	assert.Contains(t, body, "\"'=HYPERLINK(\"\"http://x\"\")\"")
	assert.Contains(t, body, "'-5 points quiz,03/11/2024")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestSyncOutcomeDataset(t *testing.T) {
	data := SyncOutcomeDataset(sampleOutcome())
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "1", data.Rows[0]["Added"])
	assert.Contains(t, data.Summary, "Dry run mode: no spreadsheet changes were made.")
	assert.Contains(t, data.Summary, "Courses: 3 fetched, 2 current, 1 matched")
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(SyncOutcomeDataset(sampleOutcome()), "Sync report")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
