package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DueDateLayout is the on-the-wire date format expected by the sheet.
const DueDateLayout = "01/02/2006"

// Date is a calendar day in the viewer's timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an MM/DD/YYYY string.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(DueDateLayout, raw)
	if err != nil {
		return Date{}, fmt.Errorf("parse due date %q: %w", raw, err)
	}
	return DateOf(t), nil
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats the date as MM/DD/YYYY.
func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", int(d.Month), d.Day, d.Year)
}

// MarshalJSON encodes the date in the wire format.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes an MM/DD/YYYY string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AssignmentRecord is one dated assignment destined for a class tab.
// The JSON keys match the per-class export files.
type AssignmentRecord struct {
	Name      string `json:"assignment name"`
	DueDate   Date   `json:"due-date"`
	ClassName string `json:"Class"`
}

// ClassAssignments is one class tab and its records ordered by due date.
type ClassAssignments struct {
	ClassName string             `json:"class_name"`
	Records   []AssignmentRecord `json:"records"`
}

// AssignmentsByClass keeps class groups in first-seen order.
type AssignmentsByClass []ClassAssignments

// Total returns the number of records across all classes.
func (a AssignmentsByClass) Total() int {
	total := 0
	for _, group := range a {
		total += len(group.Records)
	}
	return total
}

// ClassNames returns the class names in group order.
func (a AssignmentsByClass) ClassNames() []string {
	names := make([]string, 0, len(a))
	for _, group := range a {
		names = append(names, group.ClassName)
	}
	return names
}

// Group returns the records for className, if present.
func (a AssignmentsByClass) Group(className string) ([]AssignmentRecord, bool) {
	for _, group := range a {
		if group.ClassName == className {
			return group.Records, true
		}
	}
	return nil, false
}

// SortByDueDate orders each group's records ascending by due date, keeping
// the fetch order for records due on the same day.
func (a AssignmentsByClass) SortByDueDate() {
	for i := range a {
		records := a[i].Records
		sort.SliceStable(records, func(x, y int) bool {
			return records[x].DueDate.Before(records[y].DueDate)
		})
	}
}

// CollectWarning records a course skipped because its assignments could not be fetched.
type CollectWarning struct {
	CourseID  int64  `json:"course_id"`
	ClassName string `json:"class_name"`
	Message   string `json:"message"`
}

// CollectResult is the outcome of one collection pass.
type CollectResult struct {
	Classes          AssignmentsByClass `json:"classes"`
	Warnings         []CollectWarning   `json:"warnings,omitempty"`
	CoursesFetched   int                `json:"courses_fetched"`
	CoursesCurrent   int                `json:"courses_current"`
	CoursesMatched   int                `json:"courses_matched"`
	CoursesCollected int                `json:"courses_collected"`
}
