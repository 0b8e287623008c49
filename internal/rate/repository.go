package rate

import (
	"context"
	"time"
)

type Repository interface {
	Flush(ctx context.Context, rows []Row) (int64, error)
	Exists(ctx context.Context, date time.Time, base string) (bool, error)
	PersistedPairs(ctx context.Context, from, to time.Time) ([]Pair, error)
	Count(ctx context.Context) (int64, error)
}
