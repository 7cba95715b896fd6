package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
)

func dailyRecord(param, county, site, date, aqi string) map[string]any {
	return map[string]any{
		"parameter_code":   param,
		"poc":              "1",
		"parameter":        "PM2.5",
		"date_local":       date,
		"arithmetic_mean":  "8.2",
		"aqi":              aqi,
		"state_code":       "41",
		"county_code":      county,
		"site_number":      site,
		"units_of_measure": "ug/m3",
	}
}

func TestAQIDaily(t *testing.T) {
	pm := core.FromRecords([]map[string]any{
		dailyRecord("88101", "51", "4", "2020-01-01", "34"),
		dailyRecord("88101", "51", "4", "2020-01-01", "34"), // duplicate
		dailyRecord("88101", "51", "4", "2020-01-02", ""),   // no AQI
	})
	ozone := core.FromRecords([]map[string]any{
		dailyRecord("44201", "67", "11", "2020-01-01", "41"),
	})

	out := AQIDaily([]*core.Frame{pm, ozone, {}})
	require.Equal(t, 2, out.NumRows())

	assert.Equal(t, aqiDailyFields, out.Columns)
	assert.Equal(t, "410510004", out.Value(0, "site_code"))
	assert.Equal(t, "410670011", out.Value(1, "site_code"))
	assert.False(t, out.HasColumn("state_code"), "raw geographic codes folded into site_code")
}

func TestAQIDailyDefaultsStateToOregon(t *testing.T) {
	rec := dailyRecord("88101", "51", "4", "2020-01-01", "34")
	rec["state_code"] = ""
	out := AQIDaily([]*core.Frame{core.FromRecords([]map[string]any{rec})})
	require.Equal(t, 1, out.NumRows())
	assert.Equal(t, "410510004", out.Value(0, "site_code"))
}

func TestAQIDailyEmptyInput(t *testing.T) {
	assert.True(t, AQIDaily(nil).Empty())
	assert.True(t, AQIDaily([]*core.Frame{{}}).Empty())
}
