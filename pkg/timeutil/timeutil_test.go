package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("202410")
	require.NoError(t, err)
	assert.Equal(t, 2024, p.Year)
	assert.Equal(t, 1, p.Term)
	assert.Equal(t, "2024-1", p.Display())

	_, err = ParsePeriod("2024")
	assert.Error(t, err)

	_, err = ParsePeriod("20a410")
	assert.Error(t, err)
}

func TestDisplayPeriod_FallsBackToCode(t *testing.T) {
	assert.Equal(t, "2023-2", DisplayPeriod("202320"))
	assert.Equal(t, "n/a", DisplayPeriod("n/a"))
}

func TestCurrentPeriod(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"april is first term", time.Date(2025, time.April, 10, 12, 0, 0, 0, SantiagoTZ), "202510"},
		{"september is second term", time.Date(2025, time.September, 1, 12, 0, 0, 0, SantiagoTZ), "202520"},
		{"january belongs to previous year", time.Date(2026, time.January, 15, 12, 0, 0, 0, SantiagoTZ), "202520"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentPeriod(tt.at).Code)
		})
	}
}

func TestPeriodNext(t *testing.T) {
	assert.Equal(t, "202420", Period{Year: 2024, Term: 1}.Next().Code)
	assert.Equal(t, "202510", Period{Year: 2024, Term: 2}.Next().Code)
}
