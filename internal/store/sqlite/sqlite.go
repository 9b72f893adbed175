package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wadc/flowsync/internal/model"
	"github.com/wadc/flowsync/internal/store"
)

// Store is a single-file SQLite store.
type Store struct {
	db *sql.DB
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.Archiver = (*Store)(nil)
)

// New opens (creating if needed) the database at path and migrates it.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	entityCols   = strings.Join(store.EntityColumns, ", ")
	entitySelect = "SELECT id, " + entityCols + " FROM entities"
)

func (s *Store) FindEntities(ctx context.Context, q store.KeyQuery) ([]model.Entity, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case q.Serial != nil && q.MatchAddress():
		rows, err = s.db.QueryContext(ctx,
			entitySelect+" WHERE serial = ? OR address = ? ORDER BY id", *q.Serial, q.Address)
	case q.Serial != nil:
		rows, err = s.db.QueryContext(ctx,
			entitySelect+" WHERE serial = ? ORDER BY id", *q.Serial)
	default:
		rows, err = s.db.QueryContext(ctx,
			entitySelect+" WHERE address = ? ORDER BY id", q.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("find entities: %w", err)
	}
	return scanEntities(rows)
}

func (s *Store) ListEntities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx, entitySelect+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return scanEntities(rows)
}

func (s *Store) CreateEntity(ctx context.Context, e *model.Entity) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(store.EntityColumns)), ", ")
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO entities ("+entityCols+", created_at, updated_at) VALUES ("+placeholders+", ?, ?)",
		append(entityArgs(e), now(), now())...,
	)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert entity id: %w", err)
	}
	e.ID = id
	return nil
}

func (s *Store) UpdateEntity(ctx context.Context, e *model.Entity) error {
	sets := make([]string, len(store.EntityColumns))
	for i, c := range store.EntityColumns {
		sets[i] = c + " = ?"
	}
	args := append(entityArgs(e), now(), e.ID)
	return s.execOne(ctx, "update entity",
		"UPDATE entities SET "+strings.Join(sets, ", ")+", updated_at = ? WHERE id = ?", args...)
}

func (s *Store) UpdateStats(ctx context.Context, e *model.Entity) error {
	sets := make([]string, 0, 15)
	args := make([]any, 0, 17)
	for m := time.January; m <= time.December; m++ {
		sets = append(sets, model.MonthSlotName(m)+" = ?")
		args = append(args, nullFloat(e.Month(m)))
	}
	sets = append(sets, "annual_avg = ?", "summer_flow = ?", "peak_flow = ?", "updated_at = ?")
	args = append(args, nullFloat(e.AnnualAvg), nullFloat(e.SummerFlow), nullFloat(e.PeakFlow), now(), e.ID)
	return s.execOne(ctx, "update stats",
		"UPDATE entities SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
}

func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}

func (s *Store) AppendPeriodValue(ctx context.Context, v model.PeriodValue) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO period_values (id, serial, address, flow, flow_time, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID.String(), nullInt(v.Serial), v.Address, v.Flow, formatTime(v.FlowTime), now(),
	)
	if err != nil {
		return fmt.Errorf("insert period value: %w", err)
	}
	return nil
}

// ListPeriodValues returns the history linked to e, oldest first: rows with
// e's serial plus serial-less rows at e's address.
func (s *Store) ListPeriodValues(ctx context.Context, e *model.Entity) ([]model.PeriodValue, error) {
	const cols = "SELECT id, serial, address, flow, flow_time FROM period_values"
	var (
		rows *sql.Rows
		err  error
	)
	if e.Serial != nil {
		rows, err = s.db.QueryContext(ctx,
			cols+" WHERE serial = ? OR (serial IS NULL AND address = ?) ORDER BY flow_time, created_at, rowid",
			*e.Serial, e.Address)
	} else {
		rows, err = s.db.QueryContext(ctx, cols+" WHERE serial IS NULL AND address = ? ORDER BY flow_time, created_at, rowid", e.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("list period values: %w", err)
	}
	defer rows.Close()

	var out []model.PeriodValue
	for rows.Next() {
		var (
			id       string
			serial   sql.NullInt64
			v        model.PeriodValue
			flowTime sql.NullString
		)
		if err := rows.Scan(&id, &serial, &v.Address, &v.Flow, &flowTime); err != nil {
			return nil, fmt.Errorf("scan period value: %w", err)
		}
		v.ID, _ = uuid.Parse(id)
		v.Serial = int64Ptr(serial)
		if t := parseTime(flowTime); t != nil {
			v.FlowTime = *t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// AppendReadings inserts readings in one transaction. Readings already
// stored (same id) are skipped.
func (s *Store) AppendReadings(ctx context.Context, readings []model.Reading) (n int, err error) {
	if len(readings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin readings tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (
			id, route, account_name, serial, endpoint_type, flow, flow_unit, address,
			leak_rate, leak_start, backflow, battery, flow_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare readings insert: %w", err)
	}
	defer stmt.Close()

	for i := range readings {
		r := readings[i]
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		res, err := stmt.ExecContext(ctx,
			r.ID.String(), r.Route, r.AccountName, nullInt(r.Serial), r.EndpointType,
			r.Flow, r.FlowUnit, r.Address, r.LeakRate, formatTimePtr(r.LeakStart),
			r.Backflow, r.Battery, formatTimePtr(r.FlowTime),
		)
		if err != nil {
			return 0, fmt.Errorf("insert reading: %w", err)
		}
		affected, _ := res.RowsAffected()
		n += int(affected)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit readings: %w", err)
	}
	return n, nil
}

// ArchiveYear copies month slots and statistics into entity_archive.
func (s *Store) ArchiveYear(ctx context.Context, year int) (int, error) {
	cols := "serial, address, " + strings.Join(store.MonthColumns, ", ") + ", annual_avg, summer_flow, peak_flow"
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO entity_archive (year, entity_id, "+cols+", archived_at) "+
			"SELECT ?, id, "+cols+", ? FROM entities WHERE true "+
			"ON CONFLICT(year, entity_id) DO NOTHING",
		year, now(),
	)
	if err != nil {
		return 0, fmt.Errorf("archive year %d: %w", year, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive year %d: %w", year, err)
	}
	return int(n), nil
}

// ArchivedMonths returns the archived month slots of an entity for year.
func (s *Store) ArchivedMonths(ctx context.Context, year int, entityID int64) ([13]*float64, error) {
	var months [13]*float64
	vals := make([]sql.NullFloat64, 12)
	dest := make([]any, 12)
	for i := range vals {
		dest[i] = &vals[i]
	}
	err := s.db.QueryRowContext(ctx,
		"SELECT "+strings.Join(store.MonthColumns, ", ")+" FROM entity_archive WHERE year = ? AND entity_id = ?",
		year, entityID,
	).Scan(dest...)
	if err != nil {
		return months, fmt.Errorf("read archive: %w", err)
	}
	for i, v := range vals {
		months[i+1] = floatPtr(v)
	}
	return months, nil
}

func (s *Store) migrate() error {
	monthDefs := make([]string, len(store.MonthColumns))
	for i, c := range store.MonthColumns {
		monthDefs[i] = c + " REAL"
	}
	months := strings.Join(monthDefs, ",\n\t\t\t")

	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS entities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			serial INTEGER,
			address TEXT NOT NULL DEFAULT '',
			account_name TEXT NOT NULL DEFAULT '',
			account_id TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			service_start TEXT,
			read_method TEXT NOT NULL DEFAULT '',
			longitude REAL,
			latitude REAL,
			` + months + `,
			annual_avg REAL,
			summer_flow REAL,
			peak_flow REAL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS entities_serial_idx ON entities (serial);`,
		`CREATE INDEX IF NOT EXISTS entities_address_idx ON entities (address);`,
		`CREATE TABLE IF NOT EXISTS period_values (
			id TEXT PRIMARY KEY,
			serial INTEGER,
			address TEXT NOT NULL DEFAULT '',
			flow REAL NOT NULL,
			flow_time TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS period_values_serial_idx ON period_values (serial);`,
		`CREATE TABLE IF NOT EXISTS readings (
			id TEXT PRIMARY KEY,
			route TEXT NOT NULL,
			account_name TEXT NOT NULL DEFAULT '',
			serial INTEGER,
			endpoint_type TEXT NOT NULL DEFAULT '',
			flow REAL NOT NULL,
			flow_unit TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			leak_rate REAL NOT NULL DEFAULT 0,
			leak_start TEXT,
			backflow REAL NOT NULL DEFAULT 0,
			battery TEXT NOT NULL DEFAULT '',
			flow_time TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS entity_archive (
			year INTEGER NOT NULL,
			entity_id INTEGER NOT NULL,
			serial INTEGER,
			address TEXT NOT NULL DEFAULT '',
			` + months + `,
			annual_avg REAL,
			summer_flow REAL,
			peak_flow REAL,
			archived_at TEXT NOT NULL,
			PRIMARY KEY (year, entity_id)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

func scanEntities(rows *sql.Rows) ([]model.Entity, error) {
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var (
			e            model.Entity
			serial       sql.NullInt64
			serviceStart sql.NullString
			lon, lat     sql.NullFloat64
			months       [12]sql.NullFloat64
			annual       sql.NullFloat64
			summer       sql.NullFloat64
			peak         sql.NullFloat64
		)
		dest := []any{
			&e.ID, &serial, &e.Address, &e.AccountName, &e.AccountID, &e.City,
			&serviceStart, &e.ReadMethod, &lon, &lat,
		}
		for i := range months {
			dest = append(dest, &months[i])
		}
		dest = append(dest, &annual, &summer, &peak)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}

		e.Serial = int64Ptr(serial)
		e.ServiceStart = parseTime(serviceStart)
		e.Longitude = floatPtr(lon)
		e.Latitude = floatPtr(lat)
		for i, m := range months {
			e.Months[i+1] = floatPtr(m)
		}
		e.AnnualAvg = floatPtr(annual)
		e.SummerFlow = floatPtr(summer)
		e.PeakFlow = floatPtr(peak)
		out = append(out, e)
	}
	return out, rows.Err()
}

func entityArgs(e *model.Entity) []any {
	args := []any{
		nullInt(e.Serial), e.Address, e.AccountName, e.AccountID, e.City,
		formatTimePtr(e.ServiceStart), e.ReadMethod, nullFloat(e.Longitude), nullFloat(e.Latitude),
	}
	for m := time.January; m <= time.December; m++ {
		args = append(args, nullFloat(e.Month(m)))
	}
	return append(args, nullFloat(e.AnnualAvg), nullFloat(e.SummerFlow), nullFloat(e.PeakFlow))
}

// tsLayout is fixed-width so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func now() string {
	return time.Now().UTC().Format(tsLayout)
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
