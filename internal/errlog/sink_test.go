package errlog

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadc/flowsync/internal/config"
)

func TestSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.txt")
	s := New(config.ErrorLogConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1})

	require.NoError(t, s.RecordFailure("abc-123", "2024-05-06T06:01:00Z", "report failed"))
	require.NoError(t, s.RecordFailure("def-456", "2024-05-07T06:01:00Z", "timeout"))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "Request abc-123 experienced a problem at 2024-05-06T06:01:00Z with the following message:\nreport failed\n\n" +
		"Request def-456 experienced a problem at 2024-05-07T06:01:00Z with the following message:\ntimeout\n\n"
	assert.Equal(t, want, string(data))
}

func TestSinkAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.txt")
	require.NoError(t, os.WriteFile(path, []byte("earlier\n"), 0o644))

	s := New(config.ErrorLogConfig{Path: path, MaxSizeMB: 1})
	require.NoError(t, s.RecordFailure("id", "t", "m"))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "earlier\nRequest id experienced a problem at t with the following message:\nm\n\n", string(data))
}

func TestSinkClosed(t *testing.T) {
	s := New(config.ErrorLogConfig{Path: filepath.Join(t.TempDir(), "e.txt")})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.RecordFailure("id", "t", "m"), io.ErrClosedPipe)
}
