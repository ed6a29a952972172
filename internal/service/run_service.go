package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/assignment-sync/internal/models"
	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
	"github.com/noah-isme/assignment-sync/pkg/jobs"
)

// JobTypeSync identifies queued sync sessions.
const JobTypeSync = "sync"

type runRepository interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Update(ctx context.Context, run *models.SyncRun) error
	FindByID(ctx context.Context, id string) (*models.SyncRun, error)
	List(ctx context.Context) ([]models.SyncRun, error)
}

type syncRunner interface {
	Run(ctx context.Context, opts models.SyncOptions) (*models.SyncOutcome, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type reportWriter interface {
	WriteReport(w io.Writer, outcome *models.SyncOutcome) error
	ReportLink(runID string) (string, time.Time, error)
	VerifyReportToken(runID, token string) bool
}

// RetryableSyncError reports whether a failed run is worth another attempt:
// network failures and a session lock held elsewhere.
func RetryableSyncError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, appErrors.ErrSyncInProgress) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// RunService queues sync sessions and tracks their lifecycle.
type RunService struct {
	repo       runRepository
	runner     syncRunner
	queue      jobEnqueuer
	reports    reportWriter
	maxRetries int
	logger     *zap.Logger
	now        func() time.Time
}

// NewRunService constructs a RunService. The queue is attached with SetQueue
// because the queue's handler is the service itself.
func NewRunService(repo runRepository, runner syncRunner, reports reportWriter, maxRetries int, logger *zap.Logger) *RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RunService{
		repo:       repo,
		runner:     runner,
		reports:    reports,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
	}
}

// SetQueue attaches the dispatcher used by Submit.
func (s *RunService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// QueueStats reports the dispatcher's backlog when it exposes one.
func (s *RunService) QueueStats() (jobs.Stats, bool) {
	inspector, ok := s.queue.(interface{ Stats() jobs.Stats })
	if !ok {
		return jobs.Stats{}, false
	}
	return inspector.Stats(), true
}

// Submit records a queued run and hands it to the worker pool.
func (s *RunService) Submit(ctx context.Context, opts models.SyncOptions) (*models.SyncRun, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "sync queue not configured")
	}

	run := &models.SyncRun{
		ID:        uuid.NewString(),
		Options:   opts,
		Status:    models.SyncRunQueued,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: JobTypeSync, Payload: opts}); err != nil {
		queueErr := queueError(err)
		s.fail(ctx, run, queueErr)
		return nil, queueErr
	}

	s.logger.Info("sync run queued", zap.String("run_id", run.ID), zap.String("mode", string(opts.Mode)))
	return run, nil
}

// Handle executes one queued run. It is the queue's job handler and only
// returns an error when the run should be retried.
func (s *RunService) Handle(ctx context.Context, job jobs.Job) error {
	run, err := s.repo.FindByID(ctx, job.ID)
	if err != nil {
		return err
	}

	started := s.now().UTC()
	run.Status = models.SyncRunRunning
	run.Attempts = job.Attempt + 1
	run.StartedAt = &started
	run.Error, run.ErrorCode = "", ""
	if err := s.repo.Update(ctx, run); err != nil {
		return err
	}

	outcome, err := s.runner.Run(ctx, run.Options)
	if err != nil {
		if job.Attempt < s.maxRetries && RetryableSyncError(err) {
			run.Status = models.SyncRunQueued
			run.Error = err.Error()
			if updateErr := s.repo.Update(ctx, run); updateErr != nil {
				s.logger.Warn("failed to update sync run", zap.String("run_id", run.ID), zap.Error(updateErr))
			}
			return err
		}
		s.fail(ctx, run, err)
		return nil
	}

	finished := s.now().UTC()
	run.Status = models.SyncRunFinished
	run.Outcome = outcome
	run.FinishedAt = &finished
	return s.repo.Update(ctx, run)
}

// GiveUp marks a run failed once the queue will not execute it again. It is
// the queue's give-up callback.
func (s *RunService) GiveUp(job jobs.Job, cause error) {
	ctx := context.Background()
	run, err := s.repo.FindByID(ctx, job.ID)
	if err != nil {
		s.logger.Warn("sync run given up but not found", zap.String("run_id", job.ID), zap.Error(err))
		return
	}
	if run.Status == models.SyncRunFinished || run.Status == models.SyncRunFailed {
		return
	}
	if errors.Is(cause, jobs.ErrFull) || errors.Is(cause, jobs.ErrStopped) || errors.Is(cause, jobs.ErrNotStarted) {
		cause = queueError(cause)
	}
	s.logger.Warn("sync run abandoned by queue", zap.String("run_id", run.ID), zap.Int("attempts", run.Attempts), zap.Error(cause))
	s.fail(ctx, run, cause)
}

func queueError(err error) *appErrors.Error {
	if errors.Is(err, jobs.ErrFull) {
		return appErrors.WrapAs(appErrors.ErrQueueFull, err, "")
	}
	return appErrors.WrapAs(appErrors.ErrInternal, err, "sync queue is not accepting runs")
}

func (s *RunService) fail(ctx context.Context, run *models.SyncRun, cause error) {
	finished := s.now().UTC()
	run.Status = models.SyncRunFailed
	run.Error = cause.Error()
	run.ErrorCode = appErrors.FromError(cause).Code
	run.FinishedAt = &finished
	if err := s.repo.Update(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("failed to record sync run failure", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// Get returns a run by id.
func (s *RunService) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns the remembered runs, newest first.
func (s *RunService) List(ctx context.Context) ([]models.SyncRun, error) {
	return s.repo.List(ctx)
}

// ReportLink returns a signed download link for a finished run's report.
func (s *RunService) ReportLink(ctx context.Context, id string) (string, time.Time, error) {
	run, err := s.finishedRun(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.reports.ReportLink(run.ID)
}

// VerifyReportToken checks a signed report token for run id.
func (s *RunService) VerifyReportToken(id, token string) bool {
	return s.reports.VerifyReportToken(id, token)
}

// WriteReport renders the PDF report of a finished run.
func (s *RunService) WriteReport(ctx context.Context, id string, w io.Writer) error {
	run, err := s.finishedRun(ctx, id)
	if err != nil {
		return err
	}
	return s.reports.WriteReport(w, run.Outcome)
}

func (s *RunService) finishedRun(ctx context.Context, id string) (*models.SyncRun, error) {
	run, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != models.SyncRunFinished || run.Outcome == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sync run %s has no report (status %s)", run.ID, run.Status))
	}
	return run, nil
}
