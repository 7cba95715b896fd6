package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
)

func rawEnvistaFrame() *core.Frame {
	f := core.NewFrame("datetime", "channel_id", "value", "status", "valid", "description",
		"site", "method_code", "by_date", "parameter", "units_of_measure", "latitude", "longitude")
	f.Rows = append(f.Rows,
		[]string{"2024-01-01 01:00:00", "12", "8.4", "1", "true", "Ok", "Portland SE Lafayette", "170", "hour", "PM2.5 Est", "ug/m3", "45.49", "-122.60"},
		[]string{"2024-01-01 00:05:00", "12", "7.9", "9", "true", "Ok", "Portland SE Lafayette", "170", "five_min", "PM2.5 Est", "ug/m3", "45.49", "-122.60"},
	)
	return f
}

func TestStandardizeEnvista(t *testing.T) {
	out := StandardizeEnvista(rawEnvistaFrame(), map[string]string{"9": "suspect"})

	assert.Equal(t, envistaColumns, out.Columns)
	require.Equal(t, 2, out.NumRows())

	// hour rows shift back one hour, five_min rows five minutes
	assert.Equal(t, "2024-01-01 00:00:00", out.Value(0, "datetime"))
	assert.Equal(t, "2024-01-01 00:00:00", out.Value(1, "datetime"))

	assert.Equal(t, "8.4", out.Value(0, "sample_measurement"))
	assert.Equal(t, "1", out.Value(0, "qualifier"))
	assert.Equal(t, "1", out.Value(0, "simple_qual"), "unmapped qualifiers pass through")
	assert.Equal(t, "suspect", out.Value(1, "simple_qual"))

	assert.Equal(t, "envista", out.Value(0, "data_source"))
	assert.Equal(t, "-9999", out.Value(0, "poc"))
	assert.Equal(t, "hourly", out.Value(0, "sample_frequency"))
	assert.Equal(t, "Portland SE Lafayette", out.Value(0, "site"))
}

func TestStandardizeEnvistaNoQualifierTable(t *testing.T) {
	out := StandardizeEnvista(rawEnvistaFrame(), nil)
	assert.Equal(t, "9", out.Value(1, "simple_qual"))
}
