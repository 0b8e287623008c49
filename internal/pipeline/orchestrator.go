package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/epireve/currency-api/internal/fetcher"
	"github.com/epireve/currency-api/internal/metrics"
	"github.com/epireve/currency-api/internal/rate"
)

// warmWindowDays is the span of dates whose persisted pairs are preloaded
// into the gate at once.
const warmWindowDays = 60

type Gate interface {
	AlreadyPersisted(ctx context.Context, date time.Time, base string) (bool, error)
}

// Warmer is implemented by gates that can preload a date window.
type Warmer interface {
	Warm(ctx context.Context, from, to time.Time) (int, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) fetcher.Result
}

type Locator interface {
	URL(day time.Time, base string) string
}

type Config struct {
	From             time.Time
	To               time.Time
	Bases            []string
	Concurrency      int
	BatchSize        int
	MissingDatesPath string
}

func (c Config) validate() error {
	if len(c.Bases) == 0 {
		return errors.New("no base currencies configured")
	}
	for _, b := range c.Bases {
		if !rate.ValidCode(b) {
			return fmt.Errorf("invalid base currency %q", b)
		}
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.To.Before(c.From) {
		return errors.New("end date before start date")
	}
	return nil
}

// Status tags what a single (date, base) task produced.
type Status string

const (
	StatusFetched Status = "fetched"
	StatusSkipped Status = "skipped"
	StatusAbsent  Status = "absent"
	StatusInvalid Status = "invalid"
	StatusFailed  Status = "failed"
)

type Outcome struct {
	Date   time.Time
	Base   string
	Status Status
	Rows   []rate.Row
	Err    error
}

type Report struct {
	Dates         int
	Tasks         int
	Fetched       int
	Skipped       int
	Absent        int
	Invalid       int
	Failed        int
	RowsPersisted int64
	FlushFailures int
	MissingDates  []time.Time
	MissingPath   string
}

func (r *Report) count(s Status) {
	r.Tasks++
	switch s {
	case StatusFetched:
		r.Fetched++
	case StatusSkipped:
		r.Skipped++
	case StatusAbsent:
		r.Absent++
	case StatusInvalid:
		r.Invalid++
	case StatusFailed:
		r.Failed++
	}
}

type Orchestrator struct {
	cfg       Config
	gate      Gate
	fetcher   Fetcher
	locator   Locator
	persister *Persister
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(cfg Config, gate Gate, f Fetcher, loc Locator, p *Persister, opts ...Option) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	// Stored rows carry upper-case bases; the gate must be asked the same way.
	bases := make([]string, len(cfg.Bases))
	for i, b := range cfg.Bases {
		bases[i] = strings.ToUpper(b)
	}
	cfg.Bases = bases
	o := &Orchestrator{
		cfg:       cfg,
		gate:      gate,
		fetcher:   f,
		locator:   loc,
		persister: p,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run processes every day of the configured range in order. Tasks for one day
// run concurrently under a run-wide admission cap; the next day starts only
// after all of them have finished.
//
// On cancellation the buffered rows are dropped and ctx.Err() is returned
// together with the partial report. Committed batches stay in place.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{MissingPath: o.cfg.MissingDatesPath}
	sem := semaphore.NewWeighted(int64(o.cfg.Concurrency))
	batch := NewBatch(o.cfg.BatchSize)

	days := Days(o.cfg.From, o.cfg.To)
	o.logger.Info("run started",
		"from", o.cfg.From.Format(rate.DateFormat),
		"to", o.cfg.To.Format(rate.DateFormat),
		"days", len(days),
		"bases", o.cfg.Bases,
		"tasks", len(days)*len(o.cfg.Bases),
	)

	warmer, _ := o.gate.(Warmer)
	var windows []DateRange
	if warmer != nil && len(days) > 0 {
		windows = SplitDateRange(days[0], days[len(days)-1], warmWindowDays)
	}
	var missing []time.Time

	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return o.interrupted(report, batch, missing, err)
		}

		if len(windows) > 0 && day.Equal(windows[0].From) {
			if _, err := warmer.Warm(ctx, windows[0].From, windows[0].To); err != nil {
				o.logger.Warn("dedup warm-up failed, falling back to point reads", "error", err)
			}
			windows = windows[1:]
		}

		outcomes := o.processDay(ctx, sem, day)
		if err := ctx.Err(); err != nil {
			return o.interrupted(report, batch, missing, err)
		}

		var dayRows int
		for _, oc := range outcomes {
			report.count(oc.Status)
			for _, row := range oc.Rows {
				dayRows++
				if batch.Add(row) {
					o.flush(ctx, batch, report)
				}
			}
		}

		report.Dates++
		if dayRows == 0 {
			missing = append(missing, day)
			if o.metrics != nil {
				o.metrics.MissingDates.Inc()
			}
		}
		if o.metrics != nil {
			o.metrics.DatesProcessed.Inc()
		}

		o.logger.Info("date processed",
			"date", day.Format(rate.DateFormat),
			"progress", fmt.Sprintf("%d/%d", i+1, len(days)),
			"rows", dayRows,
			"pending", batch.Len(),
		)
	}

	o.flush(ctx, batch, report)
	report.MissingDates = missing

	if err := WriteMissingDates(o.cfg.MissingDatesPath, missing); err != nil {
		return report, err
	}

	o.logger.Info("run finished",
		"dates", report.Dates,
		"fetched", report.Fetched,
		"skipped", report.Skipped,
		"absent", report.Absent,
		"invalid", report.Invalid,
		"failed", report.Failed,
		"rowsPersisted", report.RowsPersisted,
		"flushFailures", report.FlushFailures,
		"missingDates", len(missing),
	)
	return report, nil
}

func (o *Orchestrator) interrupted(report *Report, batch *Batch, missing []time.Time, err error) (*Report, error) {
	dropped := batch.Take()
	report.MissingDates = missing
	o.logger.Warn("run interrupted",
		"datesProcessed", report.Dates,
		"rowsPersisted", report.RowsPersisted,
		"droppedRows", len(dropped),
	)
	return report, err
}

func (o *Orchestrator) flush(ctx context.Context, batch *Batch, report *Report) {
	if batch.Len() == 0 {
		return
	}
	n, err := o.persister.Flush(ctx, batch.Take())
	if err != nil {
		report.FlushFailures++
		return
	}
	report.RowsPersisted += n
}

// processDay runs one task per base and returns the outcomes in base order.
func (o *Orchestrator) processDay(ctx context.Context, sem *semaphore.Weighted, day time.Time) []Outcome {
	outcomes := make([]Outcome, len(o.cfg.Bases))

	var g errgroup.Group
	for i, base := range o.cfg.Bases {
		g.Go(func() error {
			outcomes[i] = o.runTask(ctx, sem, day, base)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (o *Orchestrator) runTask(ctx context.Context, sem *semaphore.Weighted, day time.Time, base string) (out Outcome) {
	out = Outcome{Date: day, Base: base}
	log := o.logger.With("date", day.Format(rate.DateFormat), "base", base)

	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Rows = nil
			out.Err = fmt.Errorf("task panic: %v", r)
			log.Error("task panicked", "panic", r)
		}
	}()

	if err := sem.Acquire(ctx, 1); err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	defer sem.Release(1)

	if o.metrics != nil {
		o.metrics.InFlight.Inc()
		defer o.metrics.InFlight.Dec()
	}

	done, err := o.gate.AlreadyPersisted(ctx, day, base)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		log.Error("dedup check failed", "error", err)
		return out
	}
	if done {
		out.Status = StatusSkipped
		if o.metrics != nil {
			o.metrics.DedupSkips.Inc()
		}
		log.Debug("already persisted, skipping")
		return out
	}

	res := o.fetcher.Fetch(ctx, o.locator.URL(day, base))
	switch res.Outcome {
	case fetcher.OutcomeOK:
	case fetcher.OutcomeNotFound:
		out.Status = StatusAbsent
		log.Info("no data upstream")
		return out
	default:
		out.Status = StatusFailed
		out.Err = res.Err
		log.Error("fetch failed", "outcome", res.Outcome.String(), "attempts", res.Attempts, "error", res.Err)
		return out
	}

	snap, err := rate.Validate(res.Payload, base)
	if err != nil {
		out.Status = StatusInvalid
		out.Err = err
		if o.metrics != nil {
			o.metrics.ValidationFailures.Inc()
		}
		log.Error("payload rejected", "error", err)
		return out
	}
	switch {
	case snap.Date.IsZero():
		log.Warn("payload date is not a calendar day", "payloadDate", snap.RawDate)
	case !snap.Date.Equal(day):
		log.Warn("payload date differs from requested date", "payloadDate", snap.RawDate)
	}

	out.Status = StatusFetched
	out.Rows = snap.Rows(day, o.now().UTC())
	return out
}
