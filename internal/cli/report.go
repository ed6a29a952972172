// Package cli renders sync results as the plain-text console report.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/assignment-sync/internal/models"
)

// PrintOutcome writes the console summary of a sync session.
func PrintOutcome(w io.Writer, outcome *models.SyncOutcome, outputDir, responseFile string) {
	opts := outcome.Options
	fmt.Fprintf(w, "Sync mode: %s\n", opts.Mode)
	fmt.Fprintf(w, "Replace existing rows: %s\n", yesNo(opts.ReplaceExisting))
	if len(opts.Tabs) > 0 {
		fmt.Fprintf(w, "Sync limited to tab(s): %s\n", strings.Join(opts.Tabs, ", "))
	}

	if collected := outcome.Collect; collected != nil {
		fmt.Fprintf(w, "Found %d Canvas course entries total.\n", collected.CoursesFetched)
		fmt.Fprintf(w, "Retained %d current/active courses after filtering.\n", collected.CoursesCurrent)
		fmt.Fprintf(w, "Matched %d Canvas courses to sheet tabs.\n", collected.CoursesMatched)
		for _, warning := range collected.Warnings {
			fmt.Fprintf(w, "Skipping course %d: %s\n", warning.CourseID, warning.Message)
		}
		fmt.Fprintf(w, "Saved %d assignments into %d file(s) in '%s'.\n",
			collected.Classes.Total(), len(outcome.Exported), outputDir)
	}

	report := outcome.Report
	if report == nil {
		return
	}
	fmt.Fprintf(w, "Sheet sync response saved to %s\n", responseFile)
	fmt.Fprintf(w, "Sheet sync status: %s\n", report.Status)
	fmt.Fprintf(w, "Rows written: %d\n", report.RowsWritten)
	for _, stats := range report.ClassStats {
		fmt.Fprintf(w, "[%s] incoming=%d existing=%d matched=%d added=%d updated=%d\n",
			stats.ClassName, stats.IncomingCount, stats.ExistingNamedCount,
			stats.MatchedCount, stats.AddedCount, stats.UpdatedCount)
	}
	if report.DryRun {
		fmt.Fprintln(w, "Dry run mode: no spreadsheet changes were made.")
	}
	for _, message := range report.DebugMessages {
		fmt.Fprintln(w, message)
	}
}

// PrintClear writes the console summary of a clear call.
func PrintClear(w io.Writer, report *models.ClearReport) {
	if report.ClassName != "" {
		fmt.Fprintf(w, "Cleared tab '%s'. Rows cleared: %d\n", report.ClassName, report.ClearedRows)
		return
	}
	fmt.Fprintf(w, "Cleared all class tabs. Total rows cleared: %d\n", report.ClearedRows)
	for _, tab := range report.ClearedTabs {
		fmt.Fprintf(w, "- %s: %d rows cleared\n", tab.SheetName, tab.ClearedRows)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
