package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// RecoverStaleRuns marks runs left in the running state by a previous
// process as interrupted.
func (s *Service) RecoverStaleRuns(ctx context.Context) error {
	n, err := s.repo.RecoverStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("marked stale runs as interrupted", "count", n)
	}
	return nil
}

// Begin records a new running run for the given range and bases.
func (s *Service) Begin(ctx context.Context, from, to time.Time, bases []string) (*Run, error) {
	r := &Run{
		ID:        uuid.NewString(),
		StartDate: from,
		EndDate:   to,
		Bases:     bases,
		Status:    StatusRunning,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return r, nil
}

// Finish stores the final state of r. A cancelled context marks the run as
// interrupted, any other error as failed.
func (s *Service) Finish(ctx context.Context, r *Run, res Result, runErr error) error {
	r.RowsPersisted = res.RowsPersisted
	r.MissingDates = res.MissingDates

	switch {
	case runErr == nil:
		r.Status = StatusCompleted
		r.Error = ""
	case errors.Is(runErr, context.Canceled):
		r.Status = StatusInterrupted
		r.Error = runErr.Error()
	default:
		r.Status = StatusFailed
		r.Error = runErr.Error()
	}

	// The run context may already be cancelled; the final write must still land.
	if err := s.repo.Update(context.WithoutCancel(ctx), r); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, req GetRunRequest) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, req.ID)
}

func (s *Service) List(ctx context.Context, req ListRunsRequest) ([]Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = maxListLimit
	}
	return s.repo.List(ctx, req.Status, limit)
}
