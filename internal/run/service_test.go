package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/epireve/currency-api/internal/apperror"
)

type mockRepo struct {
	mu         sync.Mutex
	runs       map[string]*Run
	staleCount int64
	recoverErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{runs: make(map[string]*Run)}
}

func (m *mockRepo) Create(_ context.Context, r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.runs[r.ID] = &cp
	return nil
}

func (m *mockRepo) Update(ctx context.Context, r *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.runs[r.ID] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, apperror.New(apperror.NotFound, "run not found")
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, status Status, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		if status != "" && r.Status != status {
			continue
		}
		if len(result) == limit {
			break
		}
		result = append(result, *r)
	}
	return result, nil
}

func (m *mockRepo) RecoverStale(_ context.Context) (int64, error) {
	return m.staleCount, m.recoverErr
}

func beginRun(t *testing.T, svc *Service) *Run {
	t.Helper()
	r, err := svc.Begin(context.Background(),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		[]string{"EUR", "USD"},
	)
	require.NoError(t, err)
	return r
}

func TestService_RecoverStaleRuns(t *testing.T) {
	repo := newMockRepo()
	repo.staleCount = 2
	svc := NewService(repo, nil)

	require.NoError(t, svc.RecoverStaleRuns(context.Background()))

	repo.recoverErr = errors.New("db locked")
	require.Error(t, svc.RecoverStaleRuns(context.Background()))
}

func TestService_Begin(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)

	r := beginRun(t, svc)
	require.NotEmpty(t, r.ID)
	require.Equal(t, StatusRunning, r.Status)

	stored, err := svc.Get(context.Background(), GetRunRequest{ID: r.ID})
	require.NoError(t, err)
	require.Equal(t, []string{"EUR", "USD"}, stored.Bases)
}

func TestService_Finish(t *testing.T) {
	tests := []struct {
		name       string
		runErr     error
		wantStatus Status
	}{
		{name: "completed", runErr: nil, wantStatus: StatusCompleted},
		{name: "interrupted", runErr: fmt.Errorf("run: %w", context.Canceled), wantStatus: StatusInterrupted},
		{name: "failed", runErr: errors.New("write missing dates: disk full"), wantStatus: StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			svc := NewService(repo, nil)
			r := beginRun(t, svc)

			err := svc.Finish(context.Background(), r, Result{RowsPersisted: 42, MissingDates: 1}, tt.runErr)
			require.NoError(t, err)

			stored, err := svc.Get(context.Background(), GetRunRequest{ID: r.ID})
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, stored.Status)
			require.EqualValues(t, 42, stored.RowsPersisted)
			require.Equal(t, 1, stored.MissingDates)
			if tt.runErr != nil {
				require.Equal(t, tt.runErr.Error(), stored.Error)
			}
		})
	}
}

func TestService_Finish_AfterCancel(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	r := beginRun(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, svc.Finish(ctx, r, Result{}, ctx.Err()))
	stored, err := svc.Get(context.Background(), GetRunRequest{ID: r.ID})
	require.NoError(t, err)
	require.Equal(t, StatusInterrupted, stored.Status)
}

func TestService_Get_InvalidID(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	_, err := svc.Get(context.Background(), GetRunRequest{ID: "42"})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperror.BadRequest, appErr.Code())
}

func TestService_List(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	done := beginRun(t, svc)
	require.NoError(t, svc.Finish(ctx, done, Result{}, nil))
	beginRun(t, svc)

	runs, err := svc.List(ctx, ListRunsRequest{Status: StatusRunning})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	_, err = svc.List(ctx, ListRunsRequest{Status: "exploded"})
	require.Error(t, err)

	_, err = svc.List(ctx, ListRunsRequest{Limit: 1000})
	require.Error(t, err)
}
