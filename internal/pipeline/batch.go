package pipeline

import (
	"context"
	"log/slog"

	"github.com/epireve/currency-api/internal/metrics"
	"github.com/epireve/currency-api/internal/rate"
)

// Batch buffers rows until it holds size rows. It is not safe for concurrent
// use; only the orchestrator loop touches it.
type Batch struct {
	rows []rate.Row
	size int
}

func NewBatch(size int) *Batch {
	if size <= 0 {
		size = 1
	}
	return &Batch{rows: make([]rate.Row, 0, size), size: size}
}

// Add appends r and reports whether the batch is now full.
func (b *Batch) Add(r rate.Row) bool {
	b.rows = append(b.rows, r)
	return len(b.rows) >= b.size
}

// Take returns the buffered rows and empties the batch.
func (b *Batch) Take() []rate.Row {
	rows := b.rows
	b.rows = make([]rate.Row, 0, b.size)
	return rows
}

func (b *Batch) Len() int { return len(b.rows) }

// Store writes a batch atomically.
type Store interface {
	Flush(ctx context.Context, rows []rate.Row) (int64, error)
}

// Marker is told about pairs whose rows were committed.
type Marker interface {
	MarkPersisted(pairs ...rate.Pair)
}

// Persister commits batches. A failed batch is logged and dropped; it is
// never retried.
type Persister struct {
	store   Store
	marker  Marker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type PersisterOption func(*Persister)

func WithMarker(m Marker) PersisterOption {
	return func(p *Persister) { p.marker = m }
}

func WithPersisterLogger(l *slog.Logger) PersisterOption {
	return func(p *Persister) { p.logger = l }
}

func WithPersisterMetrics(m *metrics.Metrics) PersisterOption {
	return func(p *Persister) { p.metrics = m }
}

func NewPersister(store Store, opts ...PersisterOption) *Persister {
	p := &Persister{store: store, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Persister) Flush(ctx context.Context, rows []rate.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := p.store.Flush(ctx, rows)
	if err != nil {
		p.logger.Error("batch flush failed, rows dropped", "rows", len(rows), "error", err)
		if p.metrics != nil {
			p.metrics.FlushFailures.Inc()
		}
		return 0, err
	}

	if p.metrics != nil {
		p.metrics.RowsPersisted.Add(float64(len(rows)))
	}
	if p.marker != nil {
		p.marker.MarkPersisted(uniquePairs(rows)...)
	}
	p.logger.Debug("batch flushed", "rows", len(rows), "affected", n)
	return int64(len(rows)), nil
}

func uniquePairs(rows []rate.Row) []rate.Pair {
	seen := make(map[string]struct{})
	var pairs []rate.Pair
	for _, r := range rows {
		p := r.Pair()
		if _, ok := seen[p.Key()]; ok {
			continue
		}
		seen[p.Key()] = struct{}{}
		pairs = append(pairs, p)
	}
	return pairs
}
