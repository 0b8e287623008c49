package run

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/epireve/currency-api/internal/apperror"
	domain "github.com/epireve/currency-api/internal/run"
)

const dateFormat = "2006-01-02"

const selectColumns = `SELECT id, start_date, end_date, bases, status, error,
		rows_persisted, missing_dates, created_at, updated_at
		FROM scrape_runs`

var _ domain.Repository = (*Repository)(nil)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, run *domain.Run) error {
	const query = `INSERT INTO scrape_runs (id, start_date, end_date, bases, status)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.StartDate.Format(dateFormat), run.EndDate.Format(dateFormat),
		strings.Join(run.Bases, ","),
		string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	run.CreatedAt = time.Now().UTC()
	run.UpdatedAt = run.CreatedAt
	return nil
}

func (r *Repository) Update(ctx context.Context, run *domain.Run) error {
	const query = `UPDATE scrape_runs SET status = ?, error = ?, rows_persisted = ?, missing_dates = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`

	var runErr sql.NullString
	if run.Error != "" {
		runErr = sql.NullString{String: run.Error, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, string(run.Status), runErr, run.RowsPersisted, run.MissingDates, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	run.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, "run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (r *Repository) List(ctx context.Context, status domain.Status, limit int) ([]domain.Run, error) {
	query := selectColumns + ` WHERE 1=1`

	var args []any
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// RecoverStale marks runs still flagged as running as interrupted. Only one
// pipeline runs per database, so any such run belongs to a dead process.
func (r *Repository) RecoverStale(ctx context.Context) (int64, error) {
	const query = `UPDATE scrape_runs SET status = 'interrupted',
		error = 'process exited before the run finished',
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE status = 'running'`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("recover stale runs: %w", err)
	}

	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*domain.Run, error) {
	run := &domain.Run{}
	var startStr, endStr, bases, status, createdStr, updatedStr string
	var runErr sql.NullString

	if err := s.Scan(
		&run.ID, &startStr, &endStr, &bases, &status, &runErr,
		&run.RowsPersisted, &run.MissingDates, &createdStr, &updatedStr,
	); err != nil {
		return nil, err
	}

	run.Status = domain.Status(status)
	if runErr.Valid {
		run.Error = runErr.String
	}
	if bases != "" {
		run.Bases = strings.Split(bases, ",")
	}
	run.StartDate, _ = time.Parse(dateFormat, startStr)
	run.EndDate, _ = time.Parse(dateFormat, endStr)
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	return run, nil
}
