package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/epireve/currency-api/internal/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffUnit = time.Second
	defaultJitter      = 100 * time.Millisecond
	defaultUserAgent   = "fxscrape/1.0"

	// maxBodyBytes bounds a single payload read.
	maxBodyBytes = 8 << 20
)

// Outcome is the final classification of a fetch.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeExhausted
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

var (
	// ErrStatus wraps any non-200, non-404 response.
	ErrStatus = errors.New("unexpected status")
	// ErrInvalidBody marks a 200 response whose body is not valid JSON.
	ErrInvalidBody = errors.New("invalid json body")
)

// Result carries the payload for OutcomeOK. For the other outcomes Err holds
// the last attempt's error, if any.
type Result struct {
	Payload  []byte
	Outcome  Outcome
	Attempts int
	Status   int
	Err      error
}

type Fetcher struct {
	client      *http.Client
	maxAttempts int
	unit        time.Duration
	jitter      time.Duration
	userAgent   string
	logger      *slog.Logger
	metrics     *metrics.Metrics

	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Fetcher)

func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithBackoff sets the base unit and the jitter bound. The wait after failed
// attempt k is unit*2^k plus a uniform draw from [0, jitter).
func WithBackoff(unit, jitter time.Duration) Option {
	return func(f *Fetcher) {
		f.unit = unit
		f.jitter = jitter
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      http.DefaultClient,
		maxAttempts: defaultMaxAttempts,
		unit:        defaultBackoffUnit,
		jitter:      defaultJitter,
		userAgent:   defaultUserAgent,
		logger:      slog.Default(),
		sleep:       sleepCtx,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch retrieves url with bounded retries. It never returns an error and
// never panics on network failures; the outcome is reported in Result.
func (f *Fetcher) Fetch(ctx context.Context, url string) Result {
	start := time.Now()
	res := f.fetch(ctx, url)
	if f.metrics != nil {
		f.metrics.Fetches.WithLabelValues(res.Outcome.String()).Inc()
		f.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}
	return res
}

func (f *Fetcher) fetch(ctx context.Context, url string) Result {
	var res Result

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Outcome = OutcomeCanceled
			res.Err = err
			return res
		}

		res.Attempts = attempt
		body, status, err := f.do(ctx, url)
		res.Status = status

		switch {
		case err != nil:
			if ctx.Err() != nil {
				res.Outcome = OutcomeCanceled
				res.Err = ctx.Err()
				return res
			}
			f.observe(metrics.ResultTransport)
		case status == http.StatusNotFound:
			f.observe(metrics.ResultNotFound)
			f.logger.Debug("resource not found", "url", url)
			res.Outcome = OutcomeNotFound
			res.Err = nil
			return res
		case status != http.StatusOK:
			f.observe(metrics.ResultStatus)
			err = fmt.Errorf("%w: %d", ErrStatus, status)
		case !gjson.ValidBytes(body):
			f.observe(metrics.ResultInvalid)
			err = ErrInvalidBody
		default:
			f.observe(metrics.ResultOK)
			res.Outcome = OutcomeOK
			res.Payload = body
			res.Err = nil
			return res
		}

		res.Err = err
		f.logger.Warn("fetch attempt failed",
			"url", url, "attempt", attempt, "maxAttempts", f.maxAttempts, "status", status, "error", err)

		if attempt == f.maxAttempts {
			break
		}
		if err := f.sleep(ctx, f.backoff(attempt)); err != nil {
			res.Outcome = OutcomeCanceled
			res.Err = err
			return res
		}
	}

	res.Outcome = OutcomeExhausted
	f.logger.Error("fetch failed after retries", "url", url, "attempts", res.Attempts, "error", res.Err)
	return res
}

func (f *Fetcher) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	d := f.unit << attempt
	if f.jitter > 0 {
		d += rand.N(f.jitter)
	}
	return d
}

func (f *Fetcher) observe(result string) {
	if f.metrics != nil {
		f.metrics.FetchAttempts.WithLabelValues(result).Inc()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
