package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wadc/flowsync/internal/metrics"
	"github.com/wadc/flowsync/internal/model"
	"github.com/wadc/flowsync/internal/store"
)

// Store operations named in StoreWriteError.
const (
	OpFind   = "find"
	OpCreate = "create"
	OpUpdate = "update"
	OpAppend = "append"
)

// StoreWriteError reports a store failure for one record of a batch.
type StoreWriteError struct {
	Index int    // Position of the record in the batch
	Key   string // Natural key of the record
	Op    string
	Err   error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("record %d (%s): %s: %v", e.Index, e.Key, e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// Result summarizes one Reconcile call.
type Result struct {
	Created  int
	Updated  int
	Appended int
	Reset    int // Entities whose month slots were cleared
	Archived int // Entities copied by the yearly archive
	Failures []*StoreWriteError
}

// Engine reconciles monthly records into a store.
type Engine struct {
	store      store.Store
	matcher    *Matcher
	resetMonth time.Month
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithResetMonth sets the month whose run archives and resets month slots.
func WithResetMonth(m time.Month) Option {
	return func(e *Engine) {
		e.resetMonth = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an Engine. The reset month defaults to March.
func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		resetMonth: time.March,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.matcher = NewMatcher(s, e.logger)
	return e
}

// Reconcile applies records observed during the run for period.
//
// Store failures are collected per record and the batch continues; the
// returned error joins them and is nil when every write succeeded. A failed
// yearly archive aborts the batch before anything is written.
func (e *Engine) Reconcile(ctx context.Context, records []model.FlowRecord, period time.Time) (Result, error) {
	var res Result

	resetting := period.Month() == e.resetMonth
	if resetting {
		n, err := e.archive(ctx, period.Year()-1)
		if err != nil {
			return res, err
		}
		res.Archived = n
	}

	// Entities already reset during this batch.
	reset := make(map[int64]bool)

	for i := range records {
		if err := ctx.Err(); err != nil {
			return res, errors.Join(append(joinable(res.Failures), err)...)
		}
		e.apply(ctx, i, &records[i], resetting, reset, &res)
	}

	e.logger.Info("reconciled batch",
		"period", period.Format(model.MonthLayout),
		"records", len(records),
		"created", res.Created,
		"updated", res.Updated,
		"appended", res.Appended,
		"reset", res.Reset,
		"failed", len(res.Failures),
	)

	return res, errors.Join(joinable(res.Failures)...)
}

func (e *Engine) archive(ctx context.Context, year int) (int, error) {
	a, ok := e.store.(store.Archiver)
	if !ok {
		e.logger.Warn("store cannot archive; month slots reset without a copy", "year", year)
		return 0, nil
	}
	n, err := a.ArchiveYear(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("archive %d before reset: %w", year, err)
	}
	e.logger.Info("archived month slots", "year", year, "entities", n)
	return n, nil
}

func (e *Engine) apply(ctx context.Context, i int, r *model.FlowRecord, resetting bool, reset map[int64]bool, res *Result) {
	flow := model.ParseFlow(r.Flow)
	month, hasMonth := model.ParseMonth(r.FlowTime)
	serial := model.ParseSerial(r.Serial)

	fail := func(op, key string, err error) {
		e.metrics.RecordFailed()
		e.logger.Warn("store write failed", "index", i, "key", key, "op", op, "error", err)
		res.Failures = append(res.Failures, &StoreWriteError{Index: i, Key: key, Op: op, Err: err})
	}

	ent, err := e.matcher.Resolve(ctx, r)
	if err != nil {
		fail(OpFind, Query(r).String(), err)
		return
	}

	if ent == nil {
		ent = &model.Entity{Serial: serial}
		describe(ent, r)
		ent.ReadMethod = r.ReadMethod.String()
		ent.Longitude, ent.Latitude = coordinates(r)
		if hasMonth {
			ent.SetMonth(month.Month(), model.NormalizeFlow(flow))
		}
		if err := e.store.CreateEntity(ctx, ent); err != nil {
			fail(OpCreate, ent.KeyString(), err)
			return
		}
		res.Created++
		e.metrics.EntityCreated()
	} else {
		// Counted as reset only after the cleared entity is stored.
		clearing := resetting && !reset[ent.ID]
		if clearing {
			ent.ResetMonths()
		}
		if serial != nil {
			ent.Serial = serial
		}
		describe(ent, r)
		ent.ReadMethod = model.ReadMethodFor(r.ReadMethod.String(), flow)
		if hasMonth {
			ent.SetMonth(month.Month(), model.NormalizeFlow(flow))
		}
		if err := e.store.UpdateEntity(ctx, ent); err != nil {
			fail(OpUpdate, ent.KeyString(), err)
			return
		}
		if clearing {
			reset[ent.ID] = true
			res.Reset++
			e.metrics.MonthsReset()
		}
		res.Updated++
		e.metrics.EntityUpdated()
	}

	if !hasMonth {
		return
	}
	pv := model.PeriodValue{
		ID:       uuid.New(),
		Serial:   serial,
		Address:  ent.Address,
		Flow:     flow,
		FlowTime: month,
	}
	if err := e.store.AppendPeriodValue(ctx, pv); err != nil {
		fail(OpAppend, ent.KeyString(), err)
		return
	}
	res.Appended++
	e.metrics.PeriodValueAppended()
}

// describe overwrites the descriptive fields of ent from r.
func describe(ent *model.Entity, r *model.FlowRecord) {
	ent.AccountName = r.AccountName.String()
	ent.AccountID = r.AccountID.String()
	ent.Address = store.NormalizeAddress(r.Address.String())
	ent.City = r.City.String()
	ent.ServiceStart = model.ParseServiceStart(r.ServiceStart)
}

// coordinates returns both coordinates, or neither when either is missing.
func coordinates(r *model.FlowRecord) (lon, lat *float64) {
	lon = model.ParseCoordinate(r.Longitude)
	lat = model.ParseCoordinate(r.Latitude)
	if lon == nil || lat == nil {
		return nil, nil
	}
	return lon, lat
}

func joinable(failures []*StoreWriteError) []error {
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errs
}
