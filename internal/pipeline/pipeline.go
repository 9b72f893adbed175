package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wadc/flowsync/internal/aggregate"
	"github.com/wadc/flowsync/internal/config"
	"github.com/wadc/flowsync/internal/export"
	"github.com/wadc/flowsync/internal/metrics"
	"github.com/wadc/flowsync/internal/model"
	"github.com/wadc/flowsync/internal/reconcile"
	"github.com/wadc/flowsync/internal/store"
)

// Pipeline names used in logs and metrics.
const (
	NameMonthly   = "monthly"
	NameHourly    = "hourly"
	NameAggregate = "aggregate"
)

// Exporter runs one export job to completion.
type Exporter interface {
	Export(ctx context.Context, req export.Request, filter export.Filter) ([]model.FlowRecord, error)
}

// MonthlyResult summarizes a monthly run.
type MonthlyResult struct {
	Start, End time.Time
	Records    int
	Reconcile  reconcile.Result
	Aggregated int
}

// HourlyResult summarizes an hourly run.
type HourlyResult struct {
	Start, End time.Time
	Appended   map[string]int // Readings inserted per route
	Failed     []string       // Routes whose export or insert failed
}

// Pipeline wires the exporter, reconciler and aggregator to one store.
type Pipeline struct {
	cfg        config.PipelineConfig
	resetMonth time.Month
	exporter   Exporter
	store      store.Store
	reconciler *reconcile.Engine
	aggregator *aggregate.Engine
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates a Pipeline. A nil logger uses slog.Default.
func New(cfg config.PipelineConfig, exp Exporter, s store.Store, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	resetMonth := time.Month(cfg.ResetMonth)
	if resetMonth < time.January || resetMonth > time.December {
		resetMonth = time.Month(config.DefaultResetMonth)
	}
	return &Pipeline{
		cfg:        cfg,
		resetMonth: resetMonth,
		exporter:   exp,
		store:      s,
		reconciler: reconcile.NewEngine(s,
			reconcile.WithResetMonth(resetMonth),
			reconcile.WithLogger(logger),
			reconcile.WithMetrics(m),
		),
		aggregator: aggregate.NewEngine(s, logger, m),
		logger:     logger,
		metrics:    m,
	}
}

// Monthly exports the audit window for now, reconciles it and recomputes
// statistics. Per-record store failures do not stop aggregation; they are
// returned joined once the run completes.
func (p *Pipeline) Monthly(ctx context.Context, now time.Time) (res MonthlyResult, err error) {
	logger := p.runLogger(NameMonthly)
	began := time.Now()
	defer func() { p.metrics.ObserveRun(NameMonthly, time.Since(began), err) }()

	start, end, period := MonthlyWindow(now)
	res.Start, res.End = start, end
	logger.Info("monthly run starting",
		"start", start.Format(time.DateTime),
		"end", end.Format(time.DateTime),
		"period", period.Format(model.MonthLayout),
	)

	records, err := p.exporter.Export(ctx, export.MonthlyRequest(start, end), nil)
	if err != nil {
		return res, fmt.Errorf("monthly export: %w", err)
	}
	res.Records = len(records)

	rec, recErr := p.reconciler.Reconcile(ctx, records, period)
	res.Reconcile = rec
	if recErr != nil && len(rec.Failures) == 0 {
		// Archive failure or cancellation: nothing reliable to aggregate.
		return res, fmt.Errorf("reconcile: %w", recErr)
	}

	n, aggErr := p.aggregator.Run(ctx)
	res.Aggregated = n
	if aggErr != nil {
		aggErr = fmt.Errorf("aggregate: %w", aggErr)
	}
	if recErr != nil {
		recErr = fmt.Errorf("reconcile: %w", recErr)
	}

	logger.Info("monthly run finished",
		"records", res.Records,
		"created", rec.Created,
		"updated", rec.Updated,
		"appended", rec.Appended,
		"failed", len(rec.Failures),
		"aggregated", n,
		"elapsed", time.Since(began),
	)
	return res, errors.Join(recErr, aggErr)
}

// Hourly exports the reporting window for now on every configured route
// and appends the wireless readings. A route that fails is logged and
// reported; the remaining routes still run.
func (p *Pipeline) Hourly(ctx context.Context, now time.Time) (res HourlyResult, err error) {
	logger := p.runLogger(NameHourly)
	began := time.Now()
	defer func() { p.metrics.ObserveRun(NameHourly, time.Since(began), err) }()

	start, end := HourlyWindow(now, p.cfg.DayStartHour)
	res.Start, res.End = start, end
	res.Appended = make(map[string]int, len(p.cfg.Routes))
	logger.Info("hourly run starting",
		"start", start.Format(time.DateTime),
		"end", end.Format(time.DateTime),
		"routes", p.cfg.Routes,
	)

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)

	for _, route := range p.cfg.Routes {
		g.Go(func() error {
			n, err := p.route(ctx, logger, route, start, end)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("route failed", "route", route, "error", err)
				res.Failed = append(res.Failed, route)
				errs = append(errs, fmt.Errorf("route %s: %w", route, err))
				return nil
			}
			res.Appended[route] = n
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("hourly run finished",
		"routes", len(p.cfg.Routes),
		"failed", len(res.Failed),
		"elapsed", time.Since(began),
	)
	return res, errors.Join(errs...)
}

func (p *Pipeline) route(ctx context.Context, logger *slog.Logger, route string, start, end time.Time) (int, error) {
	records, err := p.exporter.Export(ctx, export.HourlyRequest(route, start, end), export.WirelessOnly)
	if err != nil {
		return 0, err
	}

	readings := make([]model.Reading, 0, len(records))
	for i := range records {
		readings = append(readings, records[i].ToReading(route))
	}

	n, err := p.store.AppendReadings(ctx, readings)
	if err != nil {
		return n, fmt.Errorf("append readings: %w", err)
	}
	p.metrics.ReadingsAppended(route, n)
	logger.Info("route collected", "route", route, "records", len(records), "inserted", n)
	return n, nil
}

// Aggregate recomputes statistics for every entity. With rebuild set the
// month slots are first rebuilt from the history recorded since the last
// reset before now.
func (p *Pipeline) Aggregate(ctx context.Context, now time.Time, rebuild bool) (n int, err error) {
	logger := p.runLogger(NameAggregate)
	began := time.Now()
	defer func() { p.metrics.ObserveRun(NameAggregate, time.Since(began), err) }()

	if rebuild {
		rebuilt, err := p.aggregator.RebuildMonths(ctx, HistoryStart(now, p.resetMonth))
		if err != nil {
			return 0, fmt.Errorf("rebuild months: %w", err)
		}
		logger.Info("rebuilt month slots", "entities", rebuilt)
	}

	n, err = p.aggregator.Run(ctx)
	if err != nil {
		return n, fmt.Errorf("aggregate: %w", err)
	}
	return n, nil
}

func (p *Pipeline) runLogger(name string) *slog.Logger {
	return p.logger.With("pipeline", name, "run_id", uuid.NewString())
}
