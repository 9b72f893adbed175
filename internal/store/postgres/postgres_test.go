package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadc/flowsync/internal/database"
	"github.com/wadc/flowsync/internal/model"
	"github.com/wadc/flowsync/internal/store"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", placeholders(1, 3))
	assert.Equal(t, "$4", placeholders(4, 1))
	assert.Equal(t, "", placeholders(1, 0))
}

func TestEntityArgs(t *testing.T) {
	serial := int64(42)
	e := &model.Entity{Serial: &serial, Address: "1 Main St", ReadMethod: "Radio"}
	e.SetMonth(time.June, 0.5)

	args := entityArgs(e)
	require.Len(t, args, len(store.EntityColumns))
	assert.Equal(t, &serial, args[0])
	assert.Equal(t, "1 Main St", args[1])
	assert.Equal(t, "Radio", args[6])

	june := args[9+int(time.June)-1].(*float64)
	require.NotNil(t, june)
	assert.Equal(t, 0.5, *june)
	assert.Nil(t, args[9].(*float64))
}

func ptr[T any](v T) *T { return &v }

// openTestStore connects to FLOWSYNC_TEST_DATABASE_URL, skipping when unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("FLOWSYNC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FLOWSYNC_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for _, table := range []string{"entity_archive", "readings", "period_values", "entities"} {
		_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS "+table)
	}
	require.NoError(t, database.Migrate(ctx, pool))
	return New(pool, nil)
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	serial := int64(1500123)
	e := &model.Entity{Serial: &serial, Address: "O'Brien Rd", ReadMethod: "Radio"}
	e.SetMonth(time.June, 0.002750)
	require.NoError(t, s.CreateEntity(ctx, e))
	require.NotZero(t, e.ID)

	found, err := s.FindEntities(ctx, store.KeyFor(nil, "O'Brien Rd"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, e.ID, found[0].ID)
	require.NotNil(t, found[0].Month(time.June))
	assert.InDelta(t, 0.002750, *found[0].Month(time.June), 1e-9)

	other := int64(7)
	found, err = s.FindEntities(ctx, store.KeyFor(&other, "O'Brien Rd"))
	require.NoError(t, err)
	assert.Len(t, found, 1)

	e.ReadMethod = "Inactive-Radio"
	require.NoError(t, s.UpdateEntity(ctx, e))

	require.NoError(t, s.AppendPeriodValue(ctx, model.PeriodValue{
		Serial:   &serial,
		Address:  e.Address,
		Flow:     120.5,
		FlowTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.AppendPeriodValue(ctx, model.PeriodValue{
		Address:  e.Address,
		Flow:     60,
		FlowTime: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}))
	values, err := s.ListPeriodValues(ctx, e)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, 120.5, values[0].Flow)
	assert.Nil(t, values[1].Serial)

	blank := &model.Entity{Serial: ptr(int64(42))}
	require.NoError(t, s.CreateEntity(ctx, blank))
	found, err = s.FindEntities(ctx, store.KeyFor(ptr(int64(43)), ""))
	require.NoError(t, err)
	assert.Empty(t, found)

	n, err := s.ArchiveYear(ctx, 2023)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.ArchiveYear(ctx, 2023)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	readings := []model.Reading{{Route: "21", Serial: &serial, Flow: 3}}
	inserted, err := s.AppendReadings(ctx, readings)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	missing := &model.Entity{ID: 999999}
	assert.ErrorIs(t, s.UpdateStats(ctx, missing), ErrNotFound)
}
