package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/assignment-sync/internal/models"
	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
)

func TestRunRepositoryCreateFindUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(0)

	run := &models.SyncRun{ID: "run-1", Status: models.SyncRunQueued, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, run))

	run.Status = models.SyncRunRunning
	stored, err := repo.FindByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncRunQueued, stored.Status)

	require.NoError(t, repo.Update(ctx, run))
	stored, err = repo.FindByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncRunRunning, stored.Status)

	_, err = repo.FindByID(ctx, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.True(t, errors.Is(repo.Update(ctx, &models.SyncRun{ID: "missing"}), appErrors.ErrNotFound))
}

func TestRunRepositoryEvictsOldestFinished(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(2)
	base := time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		status := models.SyncRunFinished
		if i == 0 {
			status = models.SyncRunRunning
		}
		require.NoError(t, repo.Create(ctx, &models.SyncRun{
			ID:        fmt.Sprintf("run-%d", i),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-0", runs[1].ID)
}
