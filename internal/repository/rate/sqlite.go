package rate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	domain "github.com/epireve/currency-api/internal/rate"
)

const dateFormat = domain.DateFormat

// statementRows caps the rows per INSERT statement to stay well below
// SQLite's bound-parameter limit.
const statementRows = 500

var _ domain.Repository = (*Repository)(nil)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Flush upserts rows keyed by (date, base_currency, target_currency) in a
// single transaction. Either every row is written or none is.
func (r *Repository) Flush(ctx context.Context, rows []domain.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("flush rates: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for i := 0; i < len(rows); i += statementRows {
		end := min(i+statementRows, len(rows))
		batch := rows[i:end]

		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)*5)
		for j, row := range batch {
			placeholders[j] = "(?, ?, ?, ?, ?)"
			args = append(args,
				row.Date.Format(dateFormat),
				row.Base,
				row.Target,
				row.Rate,
				row.DownloadedAt.UTC().Format(time.RFC3339),
			)
		}

		query := fmt.Sprintf( //nolint:gosec // placeholders are not user input
			`INSERT INTO exchange_rates (date, base_currency, target_currency, rate, downloaded_at)
			VALUES %s
			ON CONFLICT (date, base_currency, target_currency)
			DO UPDATE SET rate = excluded.rate, downloaded_at = excluded.downloaded_at`,
			strings.Join(placeholders, ", "),
		)

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("flush rates: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("flush rates: commit: %w", err)
	}
	return total, nil
}

func (r *Repository) Exists(ctx context.Context, date time.Time, base string) (bool, error) {
	const query = `SELECT COUNT(*) FROM exchange_rates
		WHERE date = ? AND base_currency = ?`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, date.Format(dateFormat), base).Scan(&n); err != nil {
		return false, fmt.Errorf("count rates: %w", err)
	}
	return n > 0, nil
}

// PersistedPairs lists every (date, base) pair with at least one stored row
// in the inclusive range.
func (r *Repository) PersistedPairs(ctx context.Context, from, to time.Time) ([]domain.Pair, error) {
	const query = `SELECT DISTINCT date, base_currency FROM exchange_rates
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, base_currency ASC`

	rows, err := r.db.QueryContext(ctx, query, from.Format(dateFormat), to.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("persisted pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pairs []domain.Pair
	for rows.Next() {
		var dateStr, base string
		if err := rows.Scan(&dateStr, &base); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		d, err := time.Parse(dateFormat, dateStr)
		if err != nil {
			continue
		}
		pairs = append(pairs, domain.Pair{Date: d, Base: base})
	}

	return pairs, rows.Err()
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchange_rates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rates: %w", err)
	}
	return n, nil
}
