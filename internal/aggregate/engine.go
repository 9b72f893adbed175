package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wadc/flowsync/internal/metrics"
	"github.com/wadc/flowsync/internal/model"
	"github.com/wadc/flowsync/internal/store"
)

// Engine recomputes statistics for every stored entity.
type Engine struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an Engine. A nil logger uses slog.Default().
func NewEngine(s store.Store, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, logger: logger, metrics: m}
}

// Run recomputes and stores the statistics of every entity. Entities that
// fail to save are reported in the returned error; the rest are still
// written. Returns the number of entities written.
func (e *Engine) Run(ctx context.Context) (int, error) {
	entities, err := e.store.ListEntities(ctx)
	if err != nil {
		return 0, fmt.Errorf("list entities: %w", err)
	}

	var (
		written int
		errs    []error
	)
	for i := range entities {
		if err := ctx.Err(); err != nil {
			return written, errors.Join(append(errs, err)...)
		}
		ent := &entities[i]
		Recompute(ent)
		if err := e.store.UpdateStats(ctx, ent); err != nil {
			errs = append(errs, fmt.Errorf("entity %d (%s): %w", ent.ID, ent.KeyString(), err))
			continue
		}
		written++
		e.metrics.StatsWritten()
	}

	e.logger.Info("recomputed statistics", "entities", len(entities), "written", written, "failed", len(errs))
	return written, errors.Join(errs...)
}

// RebuildMonths re-derives month slots from each entity's period-value
// history at or after since. For each month the latest observation wins.
// Months without history in that range keep their current value. Statistics
// are not recomputed.
//
// since is normally the first period of the current slot year, so history
// archived by the last reset is not replayed.
func (e *Engine) RebuildMonths(ctx context.Context, since time.Time) (int, error) {
	entities, err := e.store.ListEntities(ctx)
	if err != nil {
		return 0, fmt.Errorf("list entities: %w", err)
	}

	var (
		written int
		errs    []error
	)
	for i := range entities {
		if err := ctx.Err(); err != nil {
			return written, errors.Join(append(errs, err)...)
		}
		ent := &entities[i]
		values, err := e.store.ListPeriodValues(ctx, ent)
		if err != nil {
			errs = append(errs, fmt.Errorf("entity %d history: %w", ent.ID, err))
			continue
		}
		if !applyHistory(ent, values, since) {
			continue
		}
		if err := e.store.UpdateStats(ctx, ent); err != nil {
			errs = append(errs, fmt.Errorf("entity %d (%s): %w", ent.ID, ent.KeyString(), err))
			continue
		}
		written++
	}

	e.logger.Info("rebuilt month slots",
		"since", since.Format(model.MonthLayout),
		"entities", len(entities),
		"written", written,
		"failed", len(errs),
	)
	return written, errors.Join(errs...)
}

// applyHistory sets month slots from values at or after since, oldest
// first, and reports whether any slot was set.
func applyHistory(ent *model.Entity, values []model.PeriodValue, since time.Time) bool {
	changed := false
	for _, v := range values {
		if v.FlowTime.IsZero() || v.FlowTime.Before(since) {
			continue
		}
		ent.SetMonth(v.FlowTime.Month(), model.NormalizeFlow(v.Flow))
		changed = true
	}
	return changed
}
