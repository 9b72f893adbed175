package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ExportSubmitted("Monthly")
	m.ExportFailed()
	m.Poll()
	m.EntityCreated()
	m.EntityUpdated()
	m.PeriodValueAppended()
	m.RecordFailed()
	m.MonthsReset()
	m.StatsWritten()
	m.ReadingsAppended("21", 3)
	m.ObserveRun("monthly", time.Second, nil)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.ExportSubmitted("Hourly")
	m.ExportSubmitted("Hourly")
	m.EntityCreated()
	m.ReadingsAppended("26", 5)
	m.ReadingsAppended("26", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.exportsSubmitted.WithLabelValues("Hourly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordsCreated))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.readingsAppended.WithLabelValues("26")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Poll()
	m.ObserveRun("monthly", 2*time.Second, nil)
	m.ObserveRun("hourly", time.Second, errors.New("boom"))

	path := filepath.Join(t.TempDir(), "flowsync.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "flowsync_export_status_polls_total 1"))
	assert.True(t, strings.Contains(text, `flowsync_last_success_timestamp_seconds{pipeline="monthly"}`))
	assert.False(t, strings.Contains(text, `flowsync_last_success_timestamp_seconds{pipeline="hourly"}`))

	assert.NoError(t, m.WriteTextfile(""))
}
