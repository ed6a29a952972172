package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/assignment-sync/internal/matcher"
	"github.com/noah-isme/assignment-sync/internal/models"
)

type courseSourceStub struct {
	courses        []models.Course
	coursesErr     error
	assignments    map[int64][]models.Assignment
	assignmentErrs map[int64]error
	fetched        []int64
}

func (s *courseSourceStub) ListCourses(context.Context) ([]models.Course, error) {
	return s.courses, s.coursesErr
}

func (s *courseSourceStub) ListAssignments(_ context.Context, courseID int64) ([]models.Assignment, error) {
	s.fetched = append(s.fetched, courseID)
	if err := s.assignmentErrs[courseID]; err != nil {
		return nil, err
	}
	return s.assignments[courseID], nil
}

type matchRecorderStub struct {
	matched, unmatched int
}

func (m *matchRecorderStub) RecordMatches(matched, unmatched int) {
	m.matched += matched
	m.unmatched += unmatched
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

var chicago = func() *time.Location {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		return time.FixedZone("CST", -6*60*60)
	}
	return loc
}()

func testPatterns() []models.TabPattern {
	return matcher.BuildPatterns([]string{
		"CS 1050 - Intro to Programming",
		"HIST 1100 - American History",
	})
}

func newCollectorForTest(source courseSource, now time.Time) (*CollectorService, *matchRecorderStub) {
	recorder := &matchRecorderStub{}
	svc := NewCollectorService(source, chicago, recorder, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, recorder
}

func TestCollectorDueDateBoundary(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, chicago)
	source := &courseSourceStub{
		courses: []models.Course{{ID: 1, Name: "CS1050-001 Intro Programming Fall 2024", WorkflowState: "available"}},
		assignments: map[int64][]models.Assignment{
			1: {
				{Name: "Yesterday", DueAt: ptrTime(time.Date(2024, time.March, 9, 23, 59, 0, 0, chicago))},
				{Name: "Today", DueAt: ptrTime(time.Date(2024, time.March, 10, 0, 1, 0, 0, chicago))},
				{Name: "Undated"},
			},
		},
	}
	svc, _ := newCollectorForTest(source, now)

	result, err := svc.Collect(context.Background(), testPatterns(), CollectOptions{IncludePast: false})
	require.NoError(t, err)
	require.Len(t, result.Classes, 1)
	records := result.Classes[0].Records
	require.Len(t, records, 1)
	assert.Equal(t, "Today", records[0].Name)
	assert.Equal(t, "03/10/2024", records[0].DueDate.String())
	assert.Equal(t, "CS 1050 - Intro to Programming", records[0].ClassName)

	result, err = svc.Collect(context.Background(), testPatterns(), CollectOptions{IncludePast: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Classes.Total())
}

func TestCollectorUsesViewerCalendarDay(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, chicago)
	source := &courseSourceStub{
		courses: []models.Course{{ID: 1, Name: "CS 1050 Intro to Programming"}},
		assignments: map[int64][]models.Assignment{
			// 04:59 UTC on the 11th is still the evening of the 10th in Chicago.
			1: {{Name: "Lab", DueAt: ptrTime(time.Date(2024, time.March, 11, 4, 59, 0, 0, time.UTC))}},
		},
	}
	svc, _ := newCollectorForTest(source, now)

	result, err := svc.Collect(context.Background(), testPatterns(), CollectOptions{IncludePast: true})
	require.NoError(t, err)
	records, ok := result.Classes.Group("CS 1050 - Intro to Programming")
	require.True(t, ok)
	assert.Equal(t, "03/10/2024", records[0].DueDate.String())
}

func TestCollectorFiltersAndSkips(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, chicago)
	ended := now.Add(-24 * time.Hour)
	source := &courseSourceStub{
		courses: []models.Course{
			{ID: 1, Name: "CS 1050 Intro to Programming"},
			{ID: 2, Name: "HIST 1100 American History", WorkflowState: "available"},
			{ID: 3, Name: "CS 1050 old section", WorkflowState: "completed"},
			{ID: 4, Name: "CS 1050 restricted", AccessRestricted: true},
			{ID: 5, Name: "CS 1050 ended", EndAt: &ended},
			{ID: 6, Name: "Underwater Basket Weaving"},
		},
		assignments: map[int64][]models.Assignment{
			1: {
				{Name: "HW2", DueAt: ptrTime(time.Date(2024, time.March, 20, 12, 0, 0, 0, chicago))},
				{Name: "HW1", DueAt: ptrTime(time.Date(2024, time.March, 12, 12, 0, 0, 0, chicago))},
			},
		},
		assignmentErrs: map[int64]error{2: errors.New("Canvas API request failed: 403 Forbidden")},
	}
	svc, recorder := newCollectorForTest(source, now)

	result, err := svc.Collect(context.Background(), testPatterns(), CollectOptions{IncludePast: true})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, source.fetched)
	assert.Equal(t, 6, result.CoursesFetched)
	assert.Equal(t, 3, result.CoursesCurrent)
	assert.Equal(t, 2, result.CoursesMatched)
	assert.Equal(t, 1, result.CoursesCollected)
	assert.Equal(t, 2, recorder.matched)
	assert.Equal(t, 1, recorder.unmatched)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, int64(2), result.Warnings[0].CourseID)
	assert.Equal(t, "HIST 1100 - American History", result.Warnings[0].ClassName)

	require.Equal(t, []string{"CS 1050 - Intro to Programming"}, result.Classes.ClassNames())
	assert.Equal(t, "HW1", result.Classes[0].Records[0].Name)
	assert.Equal(t, "HW2", result.Classes[0].Records[1].Name)
}

func TestCollectorPropagatesCourseListFailure(t *testing.T) {
	source := &courseSourceStub{coursesErr: errors.New("Canvas API request failed: 401 Unauthorized")}
	svc, _ := newCollectorForTest(source, time.Now())

	_, err := svc.Collect(context.Background(), testPatterns(), CollectOptions{})
	require.Error(t, err)
	assert.Empty(t, source.fetched)
}
