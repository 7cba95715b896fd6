package transform

import (
	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
)

var aqiDailyFields = []string{
	"parameter_code", "poc", "parameter", "sample_duration_code",
	"sample_duration", "date_local", "units_of_measure", "event_type",
	"observation_count", "observation_percent", "validity_indicator",
	"arithmetic_mean", "first_max_value", "first_max_hour", "aqi",
	"method_code", "method", "site_code", "latitude", "longitude", "county",
}

// AQIDaily consolidates one year's raw daily files: concatenate, build the
// site code (defaulting the state to Oregon's 41), keep the reporting field
// set, drop rows with no AQI, and deduplicate.
func AQIDaily(frames []*core.Frame) *core.Frame {
	combined := &core.Frame{}
	for _, f := range frames {
		if !f.Empty() {
			combined.Concat(f)
		}
	}
	if combined.Empty() {
		return combined
	}

	combined.AddComputedColumn("site_code", func(row int) string {
		state := intOrZero(combined.Value(row, "state_code"))
		if state != 41 {
			state = 41
		}
		return SiteCode(core.FormatValue(state),
			combined.Value(row, "county_code"),
			combined.Value(row, "site_number"))
	})

	out := withColumns(combined, aqiDailyFields)
	out = out.Filter(func(row int) bool { return out.Value(row, "aqi") != "" })
	out.DropDuplicates()
	return out
}
