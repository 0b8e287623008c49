package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/epireve/currency-api/internal/metrics"
	"github.com/epireve/currency-api/internal/rate"
)

type recordingMarker struct {
	mu    sync.Mutex
	pairs []rate.Pair
}

func (m *recordingMarker) MarkPersisted(pairs ...rate.Pair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs = append(m.pairs, pairs...)
}

func TestBatch(t *testing.T) {
	b := NewBatch(2)
	require.False(t, b.Add(rate.Row{Base: "EUR", Target: "USD"}))
	require.Equal(t, 1, b.Len())
	require.True(t, b.Add(rate.Row{Base: "EUR", Target: "GBP"}))

	rows := b.Take()
	require.Len(t, rows, 2)
	require.Zero(t, b.Len())
	require.Equal(t, "USD", rows[0].Target)
}

func TestPersister_Flush(t *testing.T) {
	store := &memStore{}
	marker := &recordingMarker{}
	m := metrics.New()
	p := NewPersister(store, WithMarker(marker), WithPersisterMetrics(m))

	n, err := p.Flush(context.Background(), []rate.Row{
		{Date: date(4, 1), Base: "EUR", Target: "USD"},
		{Date: date(4, 1), Base: "EUR", Target: "GBP"},
		{Date: date(4, 1), Base: "USD", Target: "EUR"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.Equal(t, []rate.Pair{{Date: date(4, 1), Base: "EUR"}, {Date: date(4, 1), Base: "USD"}}, marker.pairs)
	require.InDelta(t, 3, testutil.ToFloat64(m.RowsPersisted), 0)
}

func TestPersister_FlushEmpty(t *testing.T) {
	store := &memStore{}
	p := NewPersister(store)

	n, err := p.Flush(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, store.flushes)
}

func TestPersister_FlushError(t *testing.T) {
	store := &memStore{failOn: 1}
	marker := &recordingMarker{}
	m := metrics.New()
	p := NewPersister(store, WithMarker(marker), WithPersisterMetrics(m))

	_, err := p.Flush(context.Background(), []rate.Row{{Date: date(4, 1), Base: "EUR", Target: "USD"}})
	require.Error(t, err)
	require.False(t, errors.Is(err, context.Canceled))
	require.Empty(t, marker.pairs)
	require.InDelta(t, 1, testutil.ToFloat64(m.FlushFailures), 0)
}
