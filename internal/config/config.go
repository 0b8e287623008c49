package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/epireve/currency-api/internal/fetcher"
	"github.com/epireve/currency-api/internal/rate"
)

const EnvPrefix = "FXSCRAPE"

type Config struct {
	StartDate      time.Time `mapstructure:"-"`
	EndDate        time.Time `mapstructure:"-"`
	StartDateRaw   string    `mapstructure:"start_date"`
	EndDateRaw     string    `mapstructure:"end_date"`
	BaseCurrencies []string  `mapstructure:"base_currencies"`

	DBPath         string `mapstructure:"db_path"`
	DedupCacheSize int64  `mapstructure:"dedup_cache_size"`

	APIVersion  string        `mapstructure:"api_version"`
	URLTemplate string        `mapstructure:"url_template"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	Concurrency   int           `mapstructure:"concurrency"`
	RetryCount    int           `mapstructure:"retry_count"`
	BatchSize     int           `mapstructure:"batch_size"`
	BackoffUnit   time.Duration `mapstructure:"backoff_unit"`
	BackoffJitter time.Duration `mapstructure:"backoff_jitter"`

	MissingDatesPath string `mapstructure:"missing_dates_path"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	MetricsAddr string `mapstructure:"metrics_addr"`
	Port        string `mapstructure:"port"`
}

// New returns a viper instance with every key defaulted and bound to its
// FXSCRAPE_ environment variable.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("start_date", "2024-04-01")
	v.SetDefault("end_date", "2025-01-01")
	v.SetDefault("base_currencies", []string{"EUR", "USD", "GBP"})
	v.SetDefault("db_path", "exchange_rates.db")
	v.SetDefault("dedup_cache_size", 100_000)
	v.SetDefault("api_version", "v1")
	v.SetDefault("url_template", fetcher.DefaultURLTemplate)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("concurrency", 5)
	v.SetDefault("retry_count", 3)
	v.SetDefault("batch_size", 50)
	v.SetDefault("backoff_unit", time.Second)
	v.SetDefault("backoff_jitter", 100*time.Millisecond)
	v.SetDefault("missing_dates_path", "missing_dates.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("port", "8080")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the optional config and .env files, then decodes and validates
// the merged settings. Missing files are not an error.
func Load(v *viper.Viper, configFile, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	var err error
	if c.StartDate, err = time.Parse(rate.DateFormat, strings.TrimSpace(c.StartDateRaw)); err != nil {
		return fmt.Errorf("invalid start_date %q: %w", c.StartDateRaw, err)
	}
	if c.EndDate, err = time.Parse(rate.DateFormat, strings.TrimSpace(c.EndDateRaw)); err != nil {
		return fmt.Errorf("invalid end_date %q: %w", c.EndDateRaw, err)
	}

	bases := make([]string, 0, len(c.BaseCurrencies))
	for _, b := range c.BaseCurrencies {
		for _, part := range strings.Split(b, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				bases = append(bases, part)
			}
		}
	}
	c.BaseCurrencies = bases
	return nil
}

func (c Config) Validate() error {
	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("end_date %s is before start_date %s",
			c.EndDate.Format(rate.DateFormat), c.StartDate.Format(rate.DateFormat))
	}
	if len(c.BaseCurrencies) == 0 {
		return errors.New("base_currencies must not be empty")
	}
	seen := make(map[string]struct{}, len(c.BaseCurrencies))
	for _, b := range c.BaseCurrencies {
		if !rate.ValidCode(b) {
			return fmt.Errorf("invalid base currency %q", b)
		}
		if _, ok := seen[b]; ok {
			return fmt.Errorf("duplicate base currency %q", b)
		}
		seen[b] = struct{}{}
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}

	positive := []struct {
		key string
		val int64
	}{
		{"concurrency", int64(c.Concurrency)},
		{"retry_count", int64(c.RetryCount)},
		{"batch_size", int64(c.BatchSize)},
		{"dedup_cache_size", c.DedupCacheSize},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.key, p.val)
		}
	}

	if c.BackoffUnit < 0 || c.BackoffJitter < 0 {
		return errors.New("backoff durations must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http_timeout must be positive")
	}
	return nil
}
