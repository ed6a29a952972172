package models

import (
	"strings"
	"time"
)

// CourseStateAvailable is the only workflow state that counts as current.
const CourseStateAvailable = "available"

// Course is one validated entry of the Canvas course collection.
type Course struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	WorkflowState    string     `json:"workflow_state,omitempty"`
	AccessRestricted bool       `json:"access_restricted_by_date"`
	EndAt            *time.Time `json:"end_at,omitempty"`
}

// IsCurrent reports whether the course is available, unrestricted and not yet ended at now.
func (c Course) IsCurrent(now time.Time) bool {
	state := strings.ToLower(strings.TrimSpace(c.WorkflowState))
	if state != "" && state != CourseStateAvailable {
		return false
	}
	if c.AccessRestricted {
		return false
	}
	if c.EndAt != nil && c.EndAt.Before(now) {
		return false
	}
	return true
}

// Assignment is one validated entry of a course's assignment collection.
// DueAt is nil when Canvas reports no due date.
type Assignment struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	DueAt *time.Time `json:"due_at,omitempty"`
}

// MatchedCourse pairs a current course with the sheet tab it maps to.
type MatchedCourse struct {
	Course  Course `json:"course"`
	TabName string `json:"tab_name"`
}
