package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/epireve/currency-api/internal/rate"
)

// WriteMissingDates overwrites path with one date per line in ascending
// order. With no dates, an existing file from an earlier run is removed.
func WriteMissingDates(path string, dates []time.Time) error {
	if path == "" {
		return nil
	}
	if len(dates) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale missing dates file: %w", err)
		}
		return nil
	}

	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var b strings.Builder
	for _, d := range sorted {
		b.WriteString(d.Format(rate.DateFormat))
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil { //nolint:gosec // diagnostic artifact, not sensitive
		return fmt.Errorf("write missing dates: %w", err)
	}
	return nil
}
