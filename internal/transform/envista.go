package transform

import (
	"time"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
)

// resolutionOffsets shift Envista interval-end timestamps back to the
// interval start, per reporting resolution.
var resolutionOffsets = map[string]time.Duration{
	"five_min": 5 * time.Minute,
	"hour":     time.Hour,
	"day":      24 * time.Hour,
}

var envistaColumns = []string{
	"datetime", "sample_measurement", "units_of_measure", "qualifier",
	"simple_qual", "data_source", "method_code", "parameter",
	"poc", "site", "latitude", "longitude", "sample_frequency",
}

// StandardizeEnvista rewrites a raw Envista channel frame into the staging
// layout: timestamps shifted to interval starts, measurement and qualifier
// columns renamed, the qualifier mapped through the simple-qualifier table
// when one is given, and the fixed constants stamped on.
func StandardizeEnvista(df *core.Frame, qualifiers map[string]string) *core.Frame {
	if offsetCol := df.ColumnIndex("by_date"); offsetCol >= 0 {
		dtCol := df.ColumnIndex("datetime")
		for row := range df.Rows {
			offset, ok := resolutionOffsets[df.Rows[row][offsetCol]]
			if !ok || dtCol < 0 {
				continue
			}
			if t, err := time.Parse("2006-01-02 15:04:05", df.Rows[row][dtCol]); err == nil {
				df.Rows[row][dtCol] = t.Add(-offset).Format("2006-01-02 15:04:05")
			}
		}
	}

	df.Rename(map[string]string{
		"value":  "sample_measurement",
		"status": "qualifier",
	})

	df.AddComputedColumn("simple_qual", func(row int) string {
		q := df.Value(row, "qualifier")
		if mapped, ok := qualifiers[q]; ok {
			return mapped
		}
		return q
	})
	df.AddColumn("data_source", "envista")
	df.AddColumn("poc", "-9999")
	df.AddColumn("sample_frequency", "hourly")

	return df.Select(envistaColumns...)
}
