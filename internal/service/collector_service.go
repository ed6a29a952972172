package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/assignment-sync/internal/matcher"
	"github.com/noah-isme/assignment-sync/internal/models"
)

type courseSource interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	ListAssignments(ctx context.Context, courseID int64) ([]models.Assignment, error)
}

type matchRecorder interface {
	RecordMatches(matched, unmatched int)
}

// CollectOptions tunes one collection pass.
type CollectOptions struct {
	IncludePast bool
}

// CollectorService pulls dated assignments for every current Canvas course
// that maps onto a sheet tab.
type CollectorService struct {
	source  courseSource
	loc     *time.Location
	now     func() time.Time
	metrics matchRecorder
	logger  *zap.Logger
}

// NewCollectorService constructs a collector. Due dates are converted to
// calendar days in loc.
func NewCollectorService(source courseSource, loc *time.Location, metrics matchRecorder, logger *zap.Logger) *CollectorService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectorService{source: source, loc: loc, now: time.Now, metrics: metrics, logger: logger}
}

// Collect fetches courses, keeps the current ones that match a pattern and
// groups their dated assignments by tab. A course whose assignments cannot
// be fetched is skipped with a warning.
func (s *CollectorService) Collect(ctx context.Context, patterns []models.TabPattern, opts CollectOptions) (*models.CollectResult, error) {
	courses, err := s.source.ListCourses(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &models.CollectResult{Classes: models.AssignmentsByClass{}, CoursesFetched: len(courses)}

	m := matcher.New(patterns)
	matched := make([]models.MatchedCourse, 0)
	for _, course := range courses {
		if !course.IsCurrent(now) {
			continue
		}
		result.CoursesCurrent++
		tab, ok := m.Match(course.Name)
		if !ok {
			s.logger.Debug("canvas course did not match any tab", zap.Int64("course_id", course.ID), zap.String("course", course.Name))
			continue
		}
		matched = append(matched, models.MatchedCourse{Course: course, TabName: tab})
	}
	result.CoursesMatched = len(matched)
	if s.metrics != nil {
		s.metrics.RecordMatches(len(matched), result.CoursesCurrent-len(matched))
	}

	s.logger.Info("matched canvas courses to sheet tabs",
		zap.Int("fetched", result.CoursesFetched),
		zap.Int("current", result.CoursesCurrent),
		zap.Int("matched", result.CoursesMatched),
	)

	today := models.DateOf(now.In(s.loc))
	groups := make(map[string]int)
	for _, mc := range matched {
		assignments, err := s.source.ListAssignments(ctx, mc.Course.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("skipping course", zap.Int64("course_id", mc.Course.ID), zap.Error(err))
			result.Warnings = append(result.Warnings, models.CollectWarning{
				CourseID:  mc.Course.ID,
				ClassName: mc.TabName,
				Message:   err.Error(),
			})
			continue
		}
		result.CoursesCollected++

		for _, assignment := range assignments {
			if assignment.DueAt == nil {
				continue
			}
			due := models.DateOf(assignment.DueAt.In(s.loc))
			if !opts.IncludePast && due.Before(today) {
				continue
			}

			idx, ok := groups[mc.TabName]
			if !ok {
				idx = len(result.Classes)
				groups[mc.TabName] = idx
				result.Classes = append(result.Classes, models.ClassAssignments{ClassName: mc.TabName})
			}
			result.Classes[idx].Records = append(result.Classes[idx].Records, models.AssignmentRecord{
				Name:      assignment.Name,
				DueDate:   due,
				ClassName: mc.TabName,
			})
		}
	}

	result.Classes.SortByDueDate()
	return result, nil
}
