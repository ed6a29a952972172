package export

import (
	"fmt"
	"strconv"

	"github.com/noah-isme/assignment-sync/internal/models"
)

// Column headers for the exports.
var (
	AssignmentHeaders = []string{"assignment name", "due-date", "Class"}
	ClassStatsHeaders = []string{"Class", "Incoming", "Existing", "Matched", "Added", "Updated"}
)

// AssignmentsDataset lists every collected record in class then due-date order.
func AssignmentsDataset(classes models.AssignmentsByClass) Dataset {
	data := Dataset{Headers: AssignmentHeaders}
	for _, group := range classes {
		for _, record := range group.Records {
			data.AddRow(record.Name, record.DueDate.String(), group.ClassName)
		}
	}
	return data
}

// SyncOutcomeDataset summarises a sync session as per-class statistics.
func SyncOutcomeDataset(outcome *models.SyncOutcome) Dataset {
	data := Dataset{Headers: ClassStatsHeaders}
	if outcome == nil {
		return data
	}

	data.Summary = append(data.Summary,
		fmt.Sprintf("Mode: %s", outcome.Options.Mode),
		fmt.Sprintf("Started: %s", outcome.Started.Format("2006-01-02 15:04:05 MST")),
	)
	if outcome.Collect != nil {
		data.Summary = append(data.Summary,
			fmt.Sprintf("Courses: %d fetched, %d current, %d matched", outcome.Collect.CoursesFetched, outcome.Collect.CoursesCurrent, outcome.Collect.CoursesMatched),
			fmt.Sprintf("Assignments collected: %d", outcome.Collect.Classes.Total()),
		)
		for _, warning := range outcome.Collect.Warnings {
			data.Summary = append(data.Summary, fmt.Sprintf("Skipped course %d: %s", warning.CourseID, warning.Message))
		}
	}

	report := outcome.Report
	if report == nil {
		return data
	}
	data.Summary = append(data.Summary,
		fmt.Sprintf("Sheet status: %s", report.Status),
		fmt.Sprintf("Rows written: %d", report.RowsWritten),
	)
	if report.DryRun {
		data.Summary = append(data.Summary, "Dry run mode: no spreadsheet changes were made.")
	}
	for _, stats := range report.ClassStats {
		data.AddRow(
			stats.ClassName,
			strconv.Itoa(stats.IncomingCount),
			strconv.Itoa(stats.ExistingNamedCount),
			strconv.Itoa(stats.MatchedCount),
			strconv.Itoa(stats.AddedCount),
			strconv.Itoa(stats.UpdatedCount),
		)
	}
	return data
}
