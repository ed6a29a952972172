package models

import "time"

// SyncRunStatus enumerates the lifecycle of an asynchronous sync run.
type SyncRunStatus string

const (
	SyncRunQueued   SyncRunStatus = "queued"
	SyncRunRunning  SyncRunStatus = "running"
	SyncRunFinished SyncRunStatus = "finished"
	SyncRunFailed   SyncRunStatus = "failed"
)

// SyncRun tracks one queued sync session for the lifetime of the process.
type SyncRun struct {
	ID         string        `json:"id"`
	Options    SyncOptions   `json:"options"`
	Status     SyncRunStatus `json:"status"`
	Outcome    *SyncOutcome  `json:"outcome,omitempty"`
	Error      string        `json:"error,omitempty"`
	ErrorCode  string        `json:"error_code,omitempty"`
	Attempts   int           `json:"attempts"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Done reports whether the run reached a terminal state.
func (r *SyncRun) Done() bool {
	return r != nil && (r.Status == SyncRunFinished || r.Status == SyncRunFailed)
}
