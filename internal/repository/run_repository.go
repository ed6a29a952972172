package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/noah-isme/assignment-sync/internal/models"
	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
)

// DefaultRunCapacity bounds how many finished runs are remembered.
const DefaultRunCapacity = 50

// RunRepository keeps sync runs in memory for the lifetime of the process.
type RunRepository struct {
	mu       sync.RWMutex
	runs     map[string]*models.SyncRun
	capacity int
}

// NewRunRepository constructs an empty repository.
func NewRunRepository(capacity int) *RunRepository {
	if capacity <= 0 {
		capacity = DefaultRunCapacity
	}
	return &RunRepository{runs: make(map[string]*models.SyncRun), capacity: capacity}
}

// Create stores a new run, evicting the oldest finished runs beyond capacity.
func (r *RunRepository) Create(_ context.Context, run *models.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = cloneRun(run)
	r.evictLocked()
	return nil
}

// Update replaces a stored run.
func (r *RunRepository) Update(_ context.Context, run *models.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "sync run not found")
	}
	r.runs[run.ID] = cloneRun(run)
	return nil
}

// FindByID returns a copy of the run with id.
func (r *RunRepository) FindByID(_ context.Context, id string) (*models.SyncRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync run not found")
	}
	return cloneRun(run), nil
}

// List returns runs newest first.
func (r *RunRepository) List(_ context.Context) ([]models.SyncRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runs := make([]models.SyncRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, *cloneRun(run))
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (r *RunRepository) evictLocked() {
	if len(r.runs) <= r.capacity {
		return
	}
	finished := make([]*models.SyncRun, 0, len(r.runs))
	for _, run := range r.runs {
		if run.Done() {
			finished = append(finished, run)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})
	for _, run := range finished {
		if len(r.runs) <= r.capacity {
			return
		}
		delete(r.runs, run.ID)
	}
}

func cloneRun(run *models.SyncRun) *models.SyncRun {
	if run == nil {
		return nil
	}
	copied := *run
	if run.Options.Tabs != nil {
		copied.Options.Tabs = append([]string(nil), run.Options.Tabs...)
	}
	return &copied
}
