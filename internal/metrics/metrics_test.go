package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.RowsPersisted.Add(3)
	a.FetchAttempts.WithLabelValues(ResultStatus).Inc()

	require.InDelta(t, 3, testutil.ToFloat64(a.RowsPersisted), 0)
	require.InDelta(t, 0, testutil.ToFloat64(b.RowsPersisted), 0)
	require.InDelta(t, 1, testutil.ToFloat64(a.FetchAttempts.WithLabelValues(ResultStatus)), 0)

	n, err := testutil.GatherAndCount(a.Registry(), "fxscrape_rows_persisted_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
