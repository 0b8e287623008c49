package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/epireve/currency-api/internal/apperror"
	"github.com/epireve/currency-api/internal/platform/sqlite"
	domain "github.com/epireve/currency-api/internal/run"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newRun(status domain.Status) *domain.Run {
	return &domain.Run{
		ID:        uuid.NewString(),
		StartDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		Bases:     []string{"EUR", "USD", "GBP"},
		Status:    status,
	}
}

func TestCreate_And_Get(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	r := newRun(domain.StatusRunning)
	require.NoError(t, repo.Create(ctx, r))

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, r.ID, got.ID)
	require.Equal(t, domain.StatusRunning, got.Status)
	require.Equal(t, []string{"EUR", "USD", "GBP"}, got.Bases)
	require.True(t, got.StartDate.Equal(r.StartDate))
	require.True(t, got.EndDate.Equal(r.EndDate))
	require.Empty(t, got.Error)
	require.False(t, got.CreatedAt.IsZero())
}

func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)

	_, err := repo.Get(context.Background(), uuid.NewString())

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperror.NotFound, appErr.Code())
}

func TestUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	r := newRun(domain.StatusRunning)
	require.NoError(t, repo.Create(ctx, r))

	r.Status = domain.StatusFailed
	r.Error = "write missing dates: permission denied"
	r.RowsPersisted = 1234
	r.MissingDates = 3
	require.NoError(t, repo.Update(ctx, r))

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, got.Status)
	require.Equal(t, "write missing dates: permission denied", got.Error)
	require.EqualValues(t, 1234, got.RowsPersisted)
	require.Equal(t, 3, got.MissingDates)
}

func TestList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	first := newRun(domain.StatusCompleted)
	second := newRun(domain.StatusRunning)
	third := newRun(domain.StatusCompleted)
	for _, r := range []*domain.Run{first, second, third} {
		require.NoError(t, repo.Create(ctx, r))
	}

	all, err := repo.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Same-second inserts fall back to insertion order, newest first.
	require.Equal(t, third.ID, all[0].ID)

	completed, err := repo.List(ctx, domain.StatusCompleted, 10)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	for _, r := range completed {
		require.Equal(t, domain.StatusCompleted, r.Status)
	}

	limited, err := repo.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRecoverStale(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	stale := newRun(domain.StatusRunning)
	done := newRun(domain.StatusCompleted)
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, done))

	n, err := repo.RecoverStale(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInterrupted, got.Status)
	require.NotEmpty(t, got.Error)

	got, err = repo.Get(ctx, done.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.Status)
}
