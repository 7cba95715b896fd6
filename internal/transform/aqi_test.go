package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
)

func TestPM25AQIOld(t *testing.T) {
	tests := []struct {
		conc float64
		want int
	}{
		{0, 0},
		{12.0, 50},
		{35.4, 100},
		{55.4, 150},
		{150.4, 200},
		{250.4, 300},
		{500.4, 500},
		{999, 500},
	}
	for _, tt := range tests {
		got, ok := PM25AQIOld(tt.conc)
		require.True(t, ok)
		assert.Equal(t, tt.want, got, "conc %v", tt.conc)
	}
}

func TestPM25AQINew(t *testing.T) {
	got, ok := PM25AQINew(9.0)
	require.True(t, ok)
	assert.Equal(t, 50, got)

	// the tables diverge between the old 12.0 and new 9.0 thresholds
	oldAQI, _ := PM25AQIOld(10.0)
	newAQI, _ := PM25AQINew(10.0)
	assert.LessOrEqual(t, oldAQI, 50)
	assert.Greater(t, newAQI, 50)

	got, ok = PM25AQINew(125.4)
	require.True(t, ok)
	assert.Equal(t, 200, got)
}

func TestPM25AQINaN(t *testing.T) {
	_, ok := PM25AQIOld(math.NaN())
	assert.False(t, ok)
	_, ok = PM25AQINew(math.NaN())
	assert.False(t, ok)
}

func TestPM25AQIForDateCutover(t *testing.T) {
	before, _ := PM25AQIForDate(10.0, "2024-05-05")
	after, _ := PM25AQIForDate(10.0, "2024-05-06")
	oldAQI, _ := PM25AQIOld(10.0)
	newAQI, _ := PM25AQINew(10.0)
	assert.Equal(t, oldAQI, before)
	assert.Equal(t, newAQI, after)

	// unparseable dates fall through to the current table
	fallback, _ := PM25AQIForDate(10.0, "not-a-date")
	assert.Equal(t, newAQI, fallback)
}

func TestCalculateAQI(t *testing.T) {
	df := core.FromRecords([]map[string]any{
		{"arithmetic_mean": 12.0, "date_local": "2020-01-15"},
		{"arithmetic_mean": nil, "date_local": "2020-01-16"},
	})
	out := CalculateAQI(df)
	assert.Equal(t, "50", out.Value(0, "aqi"))
	assert.Equal(t, "", out.Value(1, "aqi"))
}
