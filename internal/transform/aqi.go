package transform

import (
	"math"
	"time"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
)

// aqiCutoff is when the revised EPA PM2.5 breakpoints took effect.
var aqiCutoff = time.Date(2024, 5, 6, 0, 0, 0, 0, time.FixedZone("PST", -8*3600))

type aqiBreak struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

// Pre-May-2024 PM2.5 breakpoints.
var pm25BreaksOld = []aqiBreak{
	{0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// Revised breakpoints effective 2024-05-06.
var pm25BreaksNew = []aqiBreak{
	{0, 9.0, 0, 50},
	{9.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 125.4, 151, 200},
	{125.5, 225.4, 201, 300},
	{225.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

func pm25AQI(concentration float64, breaks []aqiBreak) (int, bool) {
	if math.IsNaN(concentration) {
		return 0, false
	}
	for _, b := range breaks {
		if concentration <= b.cHigh {
			return int(math.Round((b.iHigh-b.iLow)/(b.cHigh-b.cLow)*(concentration-b.cLow) + b.iLow)), true
		}
	}
	return 500, true
}

// PM25AQIOld applies the pre-2024 breakpoints. ok is false for NaN input.
func PM25AQIOld(concentration float64) (int, bool) {
	return pm25AQI(concentration, pm25BreaksOld)
}

// PM25AQINew applies the revised breakpoints.
func PM25AQINew(concentration float64) (int, bool) {
	return pm25AQI(concentration, pm25BreaksNew)
}

// PM25AQIForDate picks the breakpoint table by the measurement date:
// strictly before 2024-05-06 (Pacific) uses the old table.
func PM25AQIForDate(concentration float64, dateLocal string) (int, bool) {
	t, err := time.ParseInLocation("2006-01-02", dateLocal, aqiCutoff.Location())
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02 15:04:05", dateLocal, aqiCutoff.Location())
	}
	if err != nil || !t.Before(aqiCutoff) {
		return PM25AQINew(concentration)
	}
	return PM25AQIOld(concentration)
}

// CalculateAQI adds an aqi column computed from arithmetic_mean and
// date_local. Rows without a numeric mean get an empty aqi.
func CalculateAQI(df *core.Frame) *core.Frame {
	df.AddComputedColumn("aqi", func(row int) string {
		aqi, ok := PM25AQIForDate(parseNum(df.Value(row, "arithmetic_mean")), df.Value(row, "date_local"))
		if !ok {
			return ""
		}
		return core.FormatValue(aqi)
	})
	return df
}
