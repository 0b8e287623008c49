package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "", "")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, []string{"EUR", "USD", "GBP"}, cfg.BaseCurrencies)
	assert.Equal(t, "exchange_rates.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 3, cfg.RetryCount)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BackoffUnit)
	assert.Equal(t, 100*time.Millisecond, cfg.BackoffJitter)
	assert.Equal(t, "missing_dates.log", cfg.MissingDatesPath)
	assert.Equal(t, "v1", cfg.APIVersion)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("FXSCRAPE_START_DATE", "2024-06-01")
	t.Setenv("FXSCRAPE_END_DATE", "2024-06-30")
	t.Setenv("FXSCRAPE_BASE_CURRENCIES", "jpy, chf")
	t.Setenv("FXSCRAPE_CONCURRENCY", "12")
	t.Setenv("FXSCRAPE_BACKOFF_UNIT", "250ms")

	cfg, err := Load(New(), "", "")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, []string{"JPY", "CHF"}, cfg.BaseCurrencies)
	assert.Equal(t, 12, cfg.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffUnit)
}

func TestLoad_Files(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fxscrape.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("batch_size: 200\ndb_path: rates.db\n"), 0o600))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("FXSCRAPE_RETRY_COUNT=7\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("FXSCRAPE_RETRY_COUNT") })

	cfg, err := Load(New(), cfgPath, envPath)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.BatchSize)
	assert.Equal(t, "rates.db", cfg.DBPath)
	assert.Equal(t, 7, cfg.RetryCount)
}

func TestLoad_MissingFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(New(), filepath.Join(dir, "absent.yaml"), filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"end before start", "FXSCRAPE_END_DATE", "2024-01-01"},
		{"bad date", "FXSCRAPE_START_DATE", "April 1st"},
		{"bad base", "FXSCRAPE_BASE_CURRENCIES", "EURO"},
		{"duplicate base", "FXSCRAPE_BASE_CURRENCIES", "EUR,eur"},
		{"zero concurrency", "FXSCRAPE_CONCURRENCY", "0"},
		{"negative retries", "FXSCRAPE_RETRY_COUNT", "-1"},
		{"zero batch", "FXSCRAPE_BATCH_SIZE", "0"},
		{"zero cache", "FXSCRAPE_DEDUP_CACHE_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(New(), "", "")
			require.Error(t, err)
		})
	}
}
