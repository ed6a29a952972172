package models

import "time"

// SyncStatus is the normalised status of a sheet response.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailure SyncStatus = "failure"
	SyncStatusUnknown SyncStatus = "unknown-shape"
)

// SyncMode names a preset combination of sync flags.
type SyncMode string

const (
	// SyncModeAll syncs past and future assignments.
	SyncModeAll SyncMode = "all"
	// SyncModeFuture syncs assignments due today onward.
	SyncModeFuture SyncMode = "future"
	// SyncModeDryRun computes statistics without writing to the sheet.
	SyncModeDryRun SyncMode = "dry-run"
	// SyncModeRefresh overwrites each tab's rows instead of merging by name.
	SyncModeRefresh SyncMode = "refresh"
)

// SyncOptions is the fully resolved set of flags for one sync session.
type SyncOptions struct {
	Mode            SyncMode `json:"mode"`
	IncludePast     bool     `json:"include_past"`
	DryRun          bool     `json:"dry_run"`
	ReplaceExisting bool     `json:"replace_existing"`
	Tabs            []string `json:"tabs,omitempty"`
}

// OptionsForMode expands a preset mode into sync options.
func OptionsForMode(mode SyncMode) (SyncOptions, bool) {
	switch mode {
	case SyncModeAll, "":
		return SyncOptions{Mode: SyncModeAll, IncludePast: true}, true
	case SyncModeFuture:
		return SyncOptions{Mode: SyncModeFuture}, true
	case SyncModeDryRun:
		return SyncOptions{Mode: SyncModeDryRun, IncludePast: true, DryRun: true}, true
	case SyncModeRefresh:
		return SyncOptions{Mode: SyncModeRefresh, IncludePast: true, ReplaceExisting: true}, true
	default:
		return SyncOptions{}, false
	}
}

// SyncRecord is the flattened wire shape of one assignment row.
type SyncRecord struct {
	AssignmentName string `json:"assignmentName"`
	DueDate        string `json:"dueDate"`
	ClassName      string `json:"className"`
}

// ClassStats is the sheet's reconciliation summary for one class tab.
type ClassStats struct {
	ClassName          string `json:"class_name"`
	IncomingCount      int    `json:"incomingCount"`
	ExistingNamedCount int    `json:"existingNamedCount"`
	MatchedCount       int    `json:"matchedCount"`
	AddedCount         int    `json:"addedCount"`
	UpdatedCount       int    `json:"updatedCount"`
}

// SyncReport is the validated response of a sync_assignments call.
type SyncReport struct {
	Status          SyncStatus   `json:"status"`
	RowsWritten     int          `json:"rows_written"`
	DryRun          bool         `json:"dry_run"`
	ReplaceExisting bool         `json:"replace_existing"`
	DebugMessages   []string     `json:"debug_messages,omitempty"`
	ClassStats      []ClassStats `json:"class_stats"`
	Message         string       `json:"message,omitempty"`
}

// Stats returns the statistics for className, if reported.
func (r *SyncReport) Stats(className string) (ClassStats, bool) {
	if r == nil {
		return ClassStats{}, false
	}
	for _, stats := range r.ClassStats {
		if stats.ClassName == className {
			return stats, true
		}
	}
	return ClassStats{}, false
}

// ClearedTab is the number of rows cleared on one tab.
type ClearedTab struct {
	SheetName   string `json:"sheetName"`
	ClearedRows int    `json:"clearedRows"`
}

// ClearReport is the validated response of a clear call.
type ClearReport struct {
	Status      SyncStatus   `json:"status"`
	ClassName   string       `json:"class_name,omitempty"`
	ClearedRows int          `json:"cleared_rows"`
	ClearedTabs []ClearedTab `json:"cleared_tabs,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// TabCatalog is the filtered list of class tabs with the raw entries it came from.
type TabCatalog struct {
	Tabs     []string  `json:"tabs"`
	Parsed   []string  `json:"parsed"`
	Excluded []string  `json:"excluded,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
}

// SyncOutcome bundles everything a sync session produced.
type SyncOutcome struct {
	Options  SyncOptions    `json:"options"`
	Collect  *CollectResult `json:"collect"`
	Report   *SyncReport    `json:"report"`
	Exported []string       `json:"exported,omitempty"`
	Started  time.Time      `json:"started_at"`
	Finished time.Time      `json:"finished_at"`
}
