package reconcile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadc/flowsync/internal/model"
	"github.com/wadc/flowsync/internal/store/sqlite"
)

func TestReconcileBlankAddressesAgainstSQLite(t *testing.T) {
	s, err := sqlite.New(filepath.Join(t.TempDir(), "flowsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	res, err := NewEngine(s).Reconcile(ctx, []model.FlowRecord{
		record("100", "", "10", "2024-06"),
		record("200", "", "20", "2024-06"),
	}, july)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)

	ents, err := s.ListEntities(ctx)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, int64(100), *ents[0].Serial)
	assert.Equal(t, int64(200), *ents[1].Serial)

	// Re-observing a serial still updates its own entity.
	res, err = NewEngine(s).Reconcile(ctx, []model.FlowRecord{
		record("200", "", "30", "2024-06"),
	}, july)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)
}
