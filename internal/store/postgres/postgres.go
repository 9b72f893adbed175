package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wadc/flowsync/internal/config"
	"github.com/wadc/flowsync/internal/database"
	"github.com/wadc/flowsync/internal/model"
	"github.com/wadc/flowsync/internal/store"
)

// ErrNotFound is returned when an update targets a missing entity.
var ErrNotFound = errors.New("entity not found")

// Store is the PostgreSQL store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.Archiver = (*Store)(nil)
)

// Open connects to cfg and migrates the schema.
func Open(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*Store, error) {
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool, logger), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var (
	entityCols   = strings.Join(store.EntityColumns, ", ")
	entitySelect = "SELECT id, " + entityCols + " FROM entities"
)

func (s *Store) FindEntities(ctx context.Context, q store.KeyQuery) ([]model.Entity, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case q.Serial != nil && q.MatchAddress():
		rows, err = s.pool.Query(ctx, entitySelect+" WHERE serial = $1 OR address = $2 ORDER BY id", *q.Serial, q.Address)
	case q.Serial != nil:
		rows, err = s.pool.Query(ctx, entitySelect+" WHERE serial = $1 ORDER BY id", *q.Serial)
	default:
		rows, err = s.pool.Query(ctx, entitySelect+" WHERE address = $1 ORDER BY id", q.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("find entities: %w", err)
	}
	return scanEntities(rows)
}

func (s *Store) ListEntities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.pool.Query(ctx, entitySelect+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return scanEntities(rows)
}

func (s *Store) CreateEntity(ctx context.Context, e *model.Entity) error {
	err := s.pool.QueryRow(ctx,
		"INSERT INTO entities ("+entityCols+") VALUES ("+placeholders(1, len(store.EntityColumns))+") RETURNING id",
		entityArgs(e)...,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

func (s *Store) UpdateEntity(ctx context.Context, e *model.Entity) error {
	sets := make([]string, len(store.EntityColumns))
	for i, c := range store.EntityColumns {
		sets[i] = c + " = $" + strconv.Itoa(i+1)
	}
	args := append(entityArgs(e), e.ID)
	query := "UPDATE entities SET " + strings.Join(sets, ", ") +
		", updated_at = now() WHERE id = $" + strconv.Itoa(len(args))
	return s.execOne(ctx, "update entity", query, args...)
}

func (s *Store) UpdateStats(ctx context.Context, e *model.Entity) error {
	sets := make([]string, 0, 15)
	args := make([]any, 0, 16)
	for m := time.January; m <= time.December; m++ {
		args = append(args, e.Month(m))
		sets = append(sets, model.MonthSlotName(m)+" = $"+strconv.Itoa(len(args)))
	}
	for _, c := range []struct {
		col string
		v   *float64
	}{{"annual_avg", e.AnnualAvg}, {"summer_flow", e.SummerFlow}, {"peak_flow", e.PeakFlow}} {
		args = append(args, c.v)
		sets = append(sets, c.col+" = $"+strconv.Itoa(len(args)))
	}
	args = append(args, e.ID)
	query := "UPDATE entities SET " + strings.Join(sets, ", ") +
		", updated_at = now() WHERE id = $" + strconv.Itoa(len(args))
	return s.execOne(ctx, "update stats", query, args...)
}

func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (s *Store) AppendPeriodValue(ctx context.Context, v model.PeriodValue) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	var flowTime *time.Time
	if !v.FlowTime.IsZero() {
		flowTime = &v.FlowTime
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO period_values (id, serial, address, flow, flow_time) VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.Serial, v.Address, v.Flow, flowTime,
	)
	if err != nil {
		return fmt.Errorf("insert period value: %w", err)
	}
	return nil
}

func (s *Store) ListPeriodValues(ctx context.Context, e *model.Entity) ([]model.PeriodValue, error) {
	const cols = "SELECT id, serial, address, flow, flow_time FROM period_values"
	var (
		rows pgx.Rows
		err  error
	)
	if e.Serial != nil {
		rows, err = s.pool.Query(ctx,
			cols+" WHERE serial = $1 OR (serial IS NULL AND address = $2) ORDER BY flow_time, created_at",
			*e.Serial, e.Address)
	} else {
		rows, err = s.pool.Query(ctx, cols+" WHERE serial IS NULL AND address = $1 ORDER BY flow_time, created_at", e.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("list period values: %w", err)
	}
	defer rows.Close()

	var out []model.PeriodValue
	for rows.Next() {
		var (
			v        model.PeriodValue
			flowTime *time.Time
		)
		if err := rows.Scan(&v.ID, &v.Serial, &v.Address, &v.Flow, &flowTime); err != nil {
			return nil, fmt.Errorf("scan period value: %w", err)
		}
		if flowTime != nil {
			v.FlowTime = flowTime.UTC()
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// AppendReadings inserts readings using pgx.Batch with ON CONFLICT DO NOTHING.
// Returns the number of rows inserted.
func (s *Store) AppendReadings(ctx context.Context, readings []model.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range readings {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		batch.Queue(`
			INSERT INTO readings (
				id, route, account_name, serial, endpoint_type, flow, flow_unit, address,
				leak_rate, leak_start, backflow, battery, flow_time
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Route, r.AccountName, r.Serial, r.EndpointType, r.Flow, r.FlowUnit, r.Address,
			r.LeakRate, r.LeakStart, r.Backflow, r.Battery, r.FlowTime)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range readings {
		ct, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert reading: %w", err)
		}
		inserted += int(ct.RowsAffected())
	}

	if conflicts := len(readings) - inserted; conflicts > 0 {
		s.logger.Debug("readings already stored", "conflicts", conflicts)
	}
	return inserted, nil
}

// ArchiveYear copies month slots and statistics into entity_archive.
func (s *Store) ArchiveYear(ctx context.Context, year int) (int, error) {
	cols := "serial, address, " + strings.Join(store.MonthColumns, ", ") + ", annual_avg, summer_flow, peak_flow"
	ct, err := s.pool.Exec(ctx,
		"INSERT INTO entity_archive (year, entity_id, "+cols+") "+
			"SELECT $1, id, "+cols+" FROM entities "+
			"ON CONFLICT (year, entity_id) DO NOTHING",
		year,
	)
	if err != nil {
		return 0, fmt.Errorf("archive year %d: %w", year, err)
	}
	return int(ct.RowsAffected()), nil
}

func scanEntities(rows pgx.Rows) ([]model.Entity, error) {
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		dest := []any{
			&e.ID, &e.Serial, &e.Address, &e.AccountName, &e.AccountID, &e.City,
			&e.ServiceStart, &e.ReadMethod, &e.Longitude, &e.Latitude,
		}
		for m := time.January; m <= time.December; m++ {
			dest = append(dest, &e.Months[m])
		}
		dest = append(dest, &e.AnnualAvg, &e.SummerFlow, &e.PeakFlow)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func entityArgs(e *model.Entity) []any {
	args := []any{
		e.Serial, e.Address, e.AccountName, e.AccountID, e.City,
		e.ServiceStart, e.ReadMethod, e.Longitude, e.Latitude,
	}
	for m := time.January; m <= time.December; m++ {
		args = append(args, e.Month(m))
	}
	return append(args, e.AnnualAvg, e.SummerFlow, e.PeakFlow)
}

// placeholders renders "$from, ..., $(from+n-1)".
func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(ps, ", ")
}
