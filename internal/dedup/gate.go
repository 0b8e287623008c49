package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/epireve/currency-api/internal/rate"
)

// Store is the committed-data view the gate consults.
type Store interface {
	Exists(ctx context.Context, date time.Time, base string) (bool, error)
	PersistedPairs(ctx context.Context, from, to time.Time) ([]rate.Pair, error)
}

// Gate answers whether a (date, base) pair already has rows in storage.
// Stored rows are never deleted, so positive answers are cached for the
// lifetime of the gate. Negative answers always go to the store.
type Gate struct {
	store  Store
	cache  *ristretto.Cache
	logger *slog.Logger
}

type Option func(*Gate)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

func NewGate(store Store, maxItems int64, opts ...Option) (*Gate, error) {
	if maxItems <= 0 {
		maxItems = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10 * maxItems,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}

	g := &Gate{store: store, cache: c, logger: slog.Default()}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

func (g *Gate) AlreadyPersisted(ctx context.Context, date time.Time, base string) (bool, error) {
	key := rate.Pair{Date: date, Base: base}.Key()
	if _, ok := g.cache.Get(key); ok {
		return true, nil
	}

	ok, err := g.store.Exists(ctx, date, base)
	if err != nil {
		return false, fmt.Errorf("dedup check %s: %w", key, err)
	}
	if ok {
		g.cache.Set(key, struct{}{}, 1)
	}
	return ok, nil
}

// Warm loads every persisted pair in [from, to] with a single query.
func (g *Gate) Warm(ctx context.Context, from, to time.Time) (int, error) {
	pairs, err := g.store.PersistedPairs(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("warm dedup cache: %w", err)
	}
	g.MarkPersisted(pairs...)
	g.cache.Wait()
	g.logger.Debug("dedup cache warmed", "pairs", len(pairs))
	return len(pairs), nil
}

// MarkPersisted records pairs whose rows were just committed.
func (g *Gate) MarkPersisted(pairs ...rate.Pair) {
	for _, p := range pairs {
		g.cache.Set(p.Key(), struct{}{}, 1)
	}
}

func (g *Gate) Close() {
	g.cache.Close()
}
