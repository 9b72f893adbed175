package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12 Main St", "'12 Main St'"},
		{"O'Brien Rd", "'O''Brien Rd'"},
		{"''", "''''''"},
		{"", "''"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteLiteral(tt.in), tt.in)
	}
}

func TestKeyQuery(t *testing.T) {
	serial := int64(1500123)

	q := KeyFor(&serial, "  O'Brien Rd ")
	assert.Equal(t, "O'Brien Rd", q.Address)
	assert.Equal(t, "serial = 1500123 OR address = 'O''Brien Rd'", q.String())
	assert.False(t, q.Empty())

	q = KeyFor(nil, "9 Elm St")
	assert.Equal(t, "address = '9 Elm St'", q.String())

	q = KeyFor(&serial, "   ")
	assert.False(t, q.MatchAddress())
	assert.Equal(t, "serial = 1500123", q.String())
	assert.False(t, q.Empty())

	assert.True(t, KeyFor(nil, "  ").Empty())
}

func TestMonthColumns(t *testing.T) {
	assert.Len(t, MonthColumns, 12)
	assert.Equal(t, "january_gpm", MonthColumns[0])
	assert.Equal(t, "december_gpm", MonthColumns[11])
}

func TestEntityColumns(t *testing.T) {
	assert.Len(t, EntityColumns, 24)
	assert.Equal(t, "serial", EntityColumns[0])
	assert.Equal(t, "january_gpm", EntityColumns[9])
	assert.Equal(t, "peak_flow", EntityColumns[23])
}
