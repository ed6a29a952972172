package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/assignment-sync/internal/dto"
	"github.com/noah-isme/assignment-sync/internal/matcher"
	"github.com/noah-isme/assignment-sync/internal/models"
	"github.com/noah-isme/assignment-sync/internal/sheets"
	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
)

type sheetClient interface {
	ListTabs(ctx context.Context) (*models.TabCatalog, error)
	Sync(ctx context.Context, classes models.AssignmentsByClass, flags sheets.SyncFlags) (*models.SyncReport, error)
	Clear(ctx context.Context, className *string) (*models.ClearReport, error)
	DumpTabs(ctx context.Context, maxRows int) (map[string]interface{}, error)
}

type assignmentCollector interface {
	Collect(ctx context.Context, patterns []models.TabPattern, opts CollectOptions) (*models.CollectResult, error)
}

type sessionLock interface {
	Acquire(ctx context.Context, owner string) (bool, error)
	Release(ctx context.Context, owner string) error
}

type outputWriter interface {
	WriteOutputs(classes models.AssignmentsByClass) ([]string, error)
}

type syncRecorder interface {
	RecordSyncRun(mode models.SyncMode, err error, rowsWritten int)
}

type authProbe interface {
	Authenticated(ctx context.Context) (bool, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// TabCatalogCacheKey is the cache key of the most recent tab catalog.
const TabCatalogCacheKey = "tabs:catalog"

// SyncService runs collection and sheet sync sessions, one at a time.
type SyncService struct {
	sheet     sheetClient
	collector assignmentCollector
	lock      sessionLock
	outputs   outputWriter
	canvas    authProbe
	metrics   syncRecorder
	cache     catalogCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSyncService constructs a SyncService. outputs, canvas and metrics may be nil.
func NewSyncService(
	sheet sheetClient,
	collector assignmentCollector,
	lock sessionLock,
	outputs outputWriter,
	canvas authProbe,
	metrics syncRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
) *SyncService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		sheet:     sheet,
		collector: collector,
		lock:      lock,
		outputs:   outputs,
		canvas:    canvas,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// WithCatalogCache serves Tabs and ExplainMatches from cache for ttl.
// Sync sessions always read the live catalog and refresh the cache.
func (s *SyncService) WithCatalogCache(cache catalogCache, ttl time.Duration) *SyncService {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// ResolveOptions validates a sync request and expands its mode.
func (s *SyncService) ResolveOptions(req dto.SyncRequest) (models.SyncOptions, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.SyncOptions{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sync payload")
	}
	opts, ok := req.Options()
	if !ok {
		return models.SyncOptions{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown sync mode %q", req.Mode))
	}
	return opts, nil
}

// Tabs returns the class tabs of the sheet and whether they came from cache.
// refresh skips the cached catalog and replaces it with a live read.
func (s *SyncService) Tabs(ctx context.Context, refresh bool) (*models.TabCatalog, bool, error) {
	if s.cache != nil && !refresh {
		var cached models.TabCatalog
		hit, err := s.cache.Get(ctx, TabCatalogCacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	catalog, err := s.sheet.ListTabs(ctx)
	if err != nil {
		return nil, false, err
	}
	s.cacheCatalog(ctx, catalog)
	return catalog, false, nil
}

func (s *SyncService) cacheCatalog(ctx context.Context, catalog *models.TabCatalog) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, TabCatalogCacheKey, catalog, s.cacheTTL); err != nil {
		s.logger.Debug("failed to cache tab catalog", zap.Error(err))
	}
}

// ExplainMatches scores each course name against the current tabs.
func (s *SyncService) ExplainMatches(ctx context.Context, req dto.MatchRequest) ([]models.MatchExplanation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid match payload")
	}
	catalog, _, err := s.Tabs(ctx, false)
	if err != nil {
		return nil, err
	}

	m := matcher.New(matcher.BuildPatterns(catalog.Tabs))
	explanations := make([]models.MatchExplanation, 0, len(req.Courses))
	for _, course := range req.Courses {
		explanations = append(explanations, m.Explain(course))
	}
	return explanations, nil
}

// CanvasAuthenticated probes the Canvas session.
func (s *SyncService) CanvasAuthenticated(ctx context.Context) (bool, error) {
	if s.canvas == nil {
		return false, appErrors.Clone(appErrors.ErrInternal, "canvas client not configured")
	}
	ok, err := s.canvas.Authenticated(ctx)
	if err != nil {
		return false, appErrors.WrapAs(appErrors.ErrUpstreamRequest, err, "canvas auth probe failed")
	}
	return ok, nil
}

// Run performs one full session: load tabs, build patterns, collect
// assignments, export outputs and sync them to the sheet.
func (s *SyncService) Run(ctx context.Context, opts models.SyncOptions) (*models.SyncOutcome, error) {
	outcome := &models.SyncOutcome{Options: opts, Started: s.now().UTC()}

	err := s.withSession(ctx, func() error {
		if err := s.requireCanvasSession(ctx); err != nil {
			return err
		}

		catalog, err := s.sheet.ListTabs(ctx)
		if err != nil {
			return err
		}
		s.cacheCatalog(ctx, catalog)

		patterns := matcher.BuildPatterns(catalog.Tabs)
		if len(opts.Tabs) > 0 {
			patterns = matcher.FilterPatterns(patterns, opts.Tabs)
			if len(patterns) == 0 {
				return appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("selected tab was not found in the sheet: %s", strings.Join(opts.Tabs, ", ")))
			}
		}

		collected, err := s.collector.Collect(ctx, patterns, CollectOptions{IncludePast: opts.IncludePast})
		if err != nil {
			return err
		}
		outcome.Collect = collected

		if s.outputs != nil {
			exported, err := s.outputs.WriteOutputs(collected.Classes)
			if err != nil {
				s.logger.Warn("failed to write assignment outputs", zap.Error(err))
			}
			outcome.Exported = exported
		}

		report, err := s.sheet.Sync(ctx, collected.Classes, sheets.SyncFlags{
			DryRun:          opts.DryRun,
			ReplaceExisting: opts.ReplaceExisting,
		})
		if err != nil {
			return err
		}
		outcome.Report = report
		return nil
	})
	outcome.Finished = s.now().UTC()

	rows := 0
	if outcome.Report != nil {
		rows = outcome.Report.RowsWritten
	}
	if s.metrics != nil && !errors.Is(err, appErrors.ErrSyncInProgress) {
		s.metrics.RecordSyncRun(opts.Mode, err, rows)
	}
	if err != nil {
		s.logger.Error("sync session failed", zap.String("mode", string(opts.Mode)), zap.Error(err))
		return nil, err
	}

	s.logger.Info("sync session finished",
		zap.String("mode", string(opts.Mode)),
		zap.Int("assignments", outcome.Collect.Classes.Total()),
		zap.Int("rows_written", rows),
		zap.Bool("dry_run", outcome.Report.DryRun),
	)
	return outcome, nil
}

// Clear empties one class tab or all class tabs.
func (s *SyncService) Clear(ctx context.Context, req dto.ClearRequest) (*models.ClearReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clear payload")
	}

	var target *string
	if !req.All {
		name := strings.TrimSpace(req.ClassName)
		target = &name
	}

	var report *models.ClearReport
	err := s.withSession(ctx, func() error {
		var err error
		report, err = s.sheet.Clear(ctx, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("cleared sheet rows", zap.String("class", report.ClassName), zap.Int("rows", report.ClearedRows))
	return report, nil
}

// DumpTabs returns the sheet's raw tab dump.
func (s *SyncService) DumpTabs(ctx context.Context, req dto.DumpRequest) (map[string]interface{}, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dump payload")
	}
	return s.sheet.DumpTabs(ctx, req.MaxRows)
}

func (s *SyncService) requireCanvasSession(ctx context.Context) error {
	if s.canvas == nil {
		return nil
	}
	ok, err := s.canvas.Authenticated(ctx)
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrUpstreamRequest, err, "canvas auth probe failed")
	}
	if !ok {
		return appErrors.ErrNotAuthenticated
	}
	return nil
}

// withSession runs fn while holding the session lock.
func (s *SyncService) withSession(ctx context.Context, fn func() error) error {
	owner := uuid.NewString()
	acquired, err := s.lock.Acquire(ctx, owner)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire sync lock")
	}
	if !acquired {
		return appErrors.ErrSyncInProgress
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), owner); err != nil {
			s.logger.Warn("failed to release sync lock", zap.Error(err))
		}
	}()
	return fn()
}
