package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/wadc/flowsync/internal/model"
)

// Store persists entities and their history.
//
// FindEntities returns matches ordered by id. Implementations do not wrap
// multiple calls in a transaction.
type Store interface {
	FindEntities(ctx context.Context, q KeyQuery) ([]model.Entity, error)
	CreateEntity(ctx context.Context, e *model.Entity) error
	UpdateEntity(ctx context.Context, e *model.Entity) error
	AppendPeriodValue(ctx context.Context, v model.PeriodValue) error
	ListEntities(ctx context.Context) ([]model.Entity, error)
	UpdateStats(ctx context.Context, e *model.Entity) error
	ListPeriodValues(ctx context.Context, e *model.Entity) ([]model.PeriodValue, error)
	AppendReadings(ctx context.Context, readings []model.Reading) (int, error)
	Close() error
}

// Archiver is implemented by stores that can snapshot entity month slots
// before the yearly reset.
type Archiver interface {
	// ArchiveYear copies every entity's month slots and statistics under
	// year and returns the number of entities copied. Entities already
	// archived for year are left untouched.
	ArchiveYear(ctx context.Context, year int) (int, error)
}

// KeyQuery selects entities by natural key: serial OR address when a serial
// is known, address alone otherwise. A blank address never matches, so a
// serial with no address selects by serial only.
type KeyQuery struct {
	Serial  *int64
	Address string
}

// KeyFor builds the query for a record's key components.
func KeyFor(serial *int64, address string) KeyQuery {
	return KeyQuery{Serial: serial, Address: NormalizeAddress(address)}
}

// Empty reports whether the query cannot match anything.
func (q KeyQuery) Empty() bool {
	return q.Serial == nil && q.Address == ""
}

// MatchAddress reports whether the address term takes part in the lookup.
func (q KeyQuery) MatchAddress() bool {
	return q.Address != ""
}

// String renders the predicate as SQL text, for logs.
func (q KeyQuery) String() string {
	addr := "address = " + QuoteLiteral(q.Address)
	if q.Serial == nil {
		return addr
	}
	serial := "serial = " + strconv.FormatInt(*q.Serial, 10)
	if !q.MatchAddress() {
		return serial
	}
	return serial + " OR " + addr
}

// NormalizeAddress trims surrounding whitespace.
func NormalizeAddress(a string) string {
	return strings.TrimSpace(a)
}

// QuoteLiteral quotes s as a SQL string literal, doubling apostrophes.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// MonthColumns are the month slot column names, January first.
var MonthColumns = func() []string {
	cols := make([]string, 0, 12)
	for m := time.January; m <= time.December; m++ {
		cols = append(cols, model.MonthSlotName(m))
	}
	return cols
}()

// EntityColumns lists the stored entity columns other than id, in the order
// backends read and write them.
var EntityColumns = func() []string {
	cols := []string{
		"serial", "address", "account_name", "account_id", "city",
		"service_start", "read_method", "longitude", "latitude",
	}
	cols = append(cols, MonthColumns...)
	return append(cols, "annual_avg", "summer_flow", "peak_flow")
}()
