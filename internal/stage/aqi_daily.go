package stage

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/metrics"
)

var aqiDailyStagedColumns = []string{
	"site_code", "date_local", "event_type", "aqi", "aqi_category",
	"ozone_poc", "ozone_observation_percent", "ozone_validity_indicator", "ozone_aqi",
	"pm25_poc", "pm25_observation_percent", "pm25_validity_indicator", "pm25_aqi",
}

// AQICategory is one row of the AQI classification table: an inclusive
// index range and its label.
type AQICategory struct {
	Name string
	Low  float64
	High float64
}

// AQICategories classifies AQI values. Ranges are kept sorted ascending.
type AQICategories []AQICategory

// LoadAQICategories reads the classification table. The source repeats the
// same ranges per pollutant, so duplicates collapse.
func LoadAQICategories(path string) (AQICategories, error) {
	f, err := loaders.ReadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("read aqi categories: %w", err)
	}
	for _, col := range []string{"aqi_category", "low_aqi", "high_aqi"} {
		if !f.HasColumn(col) {
			return nil, fmt.Errorf("aqi categories %s: missing column %q", path, col)
		}
	}
	seen := map[string]bool{}
	var cats AQICategories
	for i := 0; i < f.NumRows(); i++ {
		name := f.Value(i, "aqi_category")
		low, lowOK := f.Float(i, "low_aqi")
		high, highOK := f.Float(i, "high_aqi")
		if name == "" || !lowOK || !highOK {
			continue
		}
		key := fmt.Sprintf("%s|%v|%v", name, low, high)
		if seen[key] {
			continue
		}
		seen[key] = true
		cats = append(cats, AQICategory{Name: name, Low: low, High: high})
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("aqi categories %s: no usable rows", path)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Low < cats[j].Low })
	return cats, nil
}

// Classify returns the category label for an AQI value. Values above every
// range get the highest category.
func (c AQICategories) Classify(aqi float64) string {
	if math.IsNaN(aqi) || len(c) == 0 {
		return ""
	}
	for _, cat := range c {
		if aqi >= cat.Low && aqi <= cat.High {
			return cat.Name
		}
	}
	return c[len(c)-1].Name
}

// AQIDaily consolidates the per-year AQI transforms to one row per site per
// date: the overall AQI is the worst of the pollutant AQIs, with PM2.5
// monitor selection favoring regulatory monitors over sensors.
func (s *Stager) AQIDaily(years []int) (TableResult, error) {
	cats, err := LoadAQICategories(s.Layout.AQICategoriesFile)
	if err != nil {
		return TableResult{Table: "fct_aqi_daily"}, err
	}
	res := TableResult{Table: "fct_aqi_daily"}
	for _, year := range years {
		f, err := s.readAQIYear(year)
		if err != nil {
			return res, fmt.Errorf("year %d: %w", year, err)
		}
		out := consolidateAQIYear(f, cats)
		if out.Empty() {
			continue
		}
		path := filepath.Join(s.Layout.Staged, "fct_aqi_daily", fmt.Sprintf("aqi_aqs_daily_%d.csv", year))
		if err := loaders.WriteCSV(out, path); err != nil {
			return res, err
		}
		metrics.RowsWrittenTotal.WithLabelValues("stage", "fct_aqi_daily").Add(float64(out.NumRows()))
		res.Years++
		res.Rows += out.NumRows()
	}
	s.log().Info("staged fact table",
		zap.String("table", "fct_aqi_daily"), zap.Int("years", res.Years), zap.Int("rows", res.Rows))
	return res, nil
}

type siteDate struct {
	site string
	date string
}

type aqiObs struct {
	poc      string
	obsPct   string
	validity string
	aqi      string
	aqiVal   float64
	mean     float64
	priority int
}

// pm25Priority ranks PM2.5 sources: FRM/FEM monitors first, then other AQS
// monitors, then sensors reported under POC 99.
func pm25Priority(code, poc string) int {
	switch {
	case code == "88101":
		return 1
	case code == "88502" && poc != "99":
		return 2
	case code == "88502":
		return 3
	}
	return 999
}

func consolidateAQIYear(f *core.Frame, cats AQICategories) *core.Frame {
	if f.Empty() {
		return &core.Frame{}
	}
	valid := f.Filter(func(row int) bool {
		return f.Value(row, "validity_indicator") == "Y"
	})

	ozone := map[siteDate]aqiObs{}
	pm25 := map[siteDate]aqiObs{}
	events := map[siteDate]string{}
	var order []siteDate

	record := func(key siteDate, event string) {
		if _, ok := events[key]; !ok {
			events[key] = event
			order = append(order, key)
		}
	}
	parse := func(s string) float64 {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}

	for _, pollutant := range []string{"ozone", "pm25"} {
		for i := 0; i < valid.NumRows(); i++ {
			code := valid.Value(i, "parameter_code")
			isOzone := code == "44201"
			isPM := code == "88101" || code == "88502"
			if (pollutant == "ozone") != isOzone || (!isOzone && !isPM) {
				continue
			}
			key := siteDate{valid.Value(i, "site_code"), valid.Value(i, "date_local")}
			obs := aqiObs{
				poc:      valid.Value(i, "poc"),
				obsPct:   valid.Value(i, "observation_percent"),
				validity: valid.Value(i, "validity_indicator"),
				aqi:      valid.Value(i, "aqi"),
				aqiVal:   parse(valid.Value(i, "aqi")),
				mean:     parse(valid.Value(i, "arithmetic_mean")),
			}
			if isOzone {
				record(key, valid.Value(i, "event_type"))
				if _, exists := ozone[key]; !exists {
					ozone[key] = obs
				}
				continue
			}
			obs.priority = pm25Priority(code, obs.poc)
			record(key, valid.Value(i, "event_type"))
			best, exists := pm25[key]
			if !exists || obs.priority < best.priority ||
				(obs.priority == best.priority && obs.mean > best.mean) {
				pm25[key] = obs
			}
		}
	}

	out := core.NewFrame(aqiDailyStagedColumns...)
	for _, key := range order {
		oz, hasOz := ozone[key]
		pm, hasPM := pm25[key]

		overall := math.NaN()
		if hasOz && !math.IsNaN(oz.aqiVal) {
			overall = oz.aqiVal
		}
		if hasPM && !math.IsNaN(pm.aqiVal) && (math.IsNaN(overall) || pm.aqiVal > overall) {
			overall = pm.aqiVal
		}
		if math.IsNaN(overall) {
			continue
		}

		row := []string{
			key.site, key.date, events[key],
			strconv.FormatFloat(overall, 'f', -1, 64),
			cats.Classify(overall),
			"", "", "", "",
			"", "", "", "",
		}
		if hasOz {
			row[5], row[6], row[7], row[8] = oz.poc, oz.obsPct, oz.validity, oz.aqi
		}
		if hasPM {
			row[9], row[10], row[11], row[12] = pm.poc, pm.obsPct, pm.validity, pm.aqi
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
