// Package stage consolidates transform-layer CSVs into the staged
// analytical layer: fact tables with fixed schemas plus dimension copies.
// Geographic fields stay out of the fact tables; they live in dim_sites.
package stage

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/metrics"
)

var criteriaDailyColumns = []string{
	"parameter_code", "poc", "parameter", "sample_duration_code",
	"sample_duration", "date_local", "units_of_measure", "event_type",
	"observation_count", "observation_percent", "validity_indicator",
	"arithmetic_mean", "first_max_value", "first_max_hour", "aqi",
	"method_code", "method", "site_code",
}

var toxicsSampleColumns = []string{
	"site_code", "parameter_code", "poc", "parameter", "date_local",
	"sample_measurement", "units_of_measure", "sample_measurement_ug_m3",
	"trv_cancer", "trv_noncancer", "trv_acute",
	"xtrv_cancer", "xtrv_noncancer", "xtrv_acute",
	"qualifier", "sample_duration", "sample_frequency",
	"detection_limit", "uncertainty", "method_type", "method", "method_code",
}

var toxicsAnnualColumns = []string{
	"site_code", "parameter", "sample_duration", "parameter_code", "poc",
	"method", "year", "units_of_measure", "observation_count",
	"observation_percent", "validity_indicator", "valid_day_count",
	"required_day_count", "exceptional_data_count", "null_observation_count",
	"primary_exceedance_count", "secondary_exceedance_count",
	"certification_indicator", "arithmetic_mean", "arithmetic_mean_ug_m3",
	"ugm3_converted", "xtrv_cancer", "xtrv_noncancer", "standard_deviation",
	"first_max_value", "first_max_value_ug_m3", "xtrv_acute_first",
	"first_max_datetime", "second_max_value", "second_max_value_ug_m3",
	"xtrv_acute_second", "second_max_datetime", "third_max_value",
	"third_max_datetime", "fourth_max_value", "fourth_max_datetime",
	"first_max_nonoverlap_value", "first_max_n_o_datetime",
	"second_max_nonoverlap_value", "second_max_n_o_datetime",
	"ninety_ninth_percentile", "ninety_eighth_percentile",
	"ninety_fifth_percentile", "ninetieth_percentile",
	"seventy_fifth_percentile", "fiftieth_percentile", "tenth_percentile",
}

// Layout names the transform-layer inputs and the staged output root.
type Layout struct {
	TransformAQI       string // per-year AQI daily transforms
	TransformTRVSample string // trv_sample_{year}.csv
	TransformTRVAnnual string // trv_annual_{year}.csv
	MonitorsFile       string // transform-layer aqs_monitors.csv
	PollutantsFile     string // ops dimPollutant.csv
	AQICategoriesFile  string // ops dimAQI.csv
	Staged             string
}

// Stager runs the consolidations. Methods write per-table subdirectories
// under Layout.Staged.
type Stager struct {
	Layout Layout
	Log    *zap.Logger
}

func (s *Stager) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

// TableResult summarizes one staged table.
type TableResult struct {
	Table string
	Years int
	Rows  int
}

// RunAll executes every consolidation for the given years. Fact tables that
// produce no rows are skipped, not failed; missing dimension inputs fail.
func (s *Stager) RunAll(years []int) ([]TableResult, error) {
	var out []TableResult
	steps := []struct {
		name string
		run  func([]int) (TableResult, error)
	}{
		{"fct_criteria_daily", s.CriteriaDaily},
		{"fct_toxics_sample", s.ToxicsSample},
		{"fct_toxics_annual", s.ToxicsAnnual},
		{"fct_aqi_daily", s.AQIDaily},
	}
	for _, step := range steps {
		res, err := step.run(years)
		if err != nil {
			return out, fmt.Errorf("stage %s: %w", step.name, err)
		}
		out = append(out, res)
	}
	for _, dim := range []struct {
		name string
		run  func() (int, error)
	}{
		{"dim_pollutant", s.DimPollutant},
		{"dim_sites", s.DimSites},
	} {
		rows, err := dim.run()
		if err != nil {
			return out, fmt.Errorf("stage %s: %w", dim.name, err)
		}
		out = append(out, TableResult{Table: dim.name, Years: 1, Rows: rows})
	}
	return out, nil
}

// CriteriaDaily consolidates the per-year AQI daily transforms into
// fct_criteria_daily_{year}.csv with the fixed fact schema.
func (s *Stager) CriteriaDaily(years []int) (TableResult, error) {
	return s.factPerYear("fct_criteria_daily", years, criteriaDailyColumns, func(year int) (*core.Frame, error) {
		return s.readAQIYear(year)
	})
}

// ToxicsSample consolidates trv_sample_{year}.csv into
// fct_toxics_sample_{year}.csv.
func (s *Stager) ToxicsSample(years []int) (TableResult, error) {
	return s.factPerYear("fct_toxics_sample", years, toxicsSampleColumns, func(year int) (*core.Frame, error) {
		return readOptionalCSV(filepath.Join(s.Layout.TransformTRVSample, fmt.Sprintf("trv_sample_%d.csv", year)))
	})
}

// ToxicsAnnual consolidates trv_annual_{year}.csv into
// fct_toxics_annual_{year}.csv.
func (s *Stager) ToxicsAnnual(years []int) (TableResult, error) {
	return s.factPerYear("fct_toxics_annual", years, toxicsAnnualColumns, func(year int) (*core.Frame, error) {
		return readOptionalCSV(filepath.Join(s.Layout.TransformTRVAnnual, fmt.Sprintf("trv_annual_%d.csv", year)))
	})
}

// DimPollutant copies the pollutant reference table into the staged layer.
func (s *Stager) DimPollutant() (int, error) {
	return s.copyTable(s.Layout.PollutantsFile, "dim_pollutant", "dim_pollutant.csv")
}

// DimSites copies the monitors inventory into the staged layer.
func (s *Stager) DimSites() (int, error) {
	return s.copyTable(s.Layout.MonitorsFile, "dim_sites", "dim_sites.csv")
}

func (s *Stager) copyTable(src, table, name string) (int, error) {
	f, err := loaders.ReadCSV(src)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", src, err)
	}
	if f.Empty() {
		return 0, fmt.Errorf("empty dimension input %s", src)
	}
	out := filepath.Join(s.Layout.Staged, table, name)
	if err := loaders.WriteCSV(f, out); err != nil {
		return 0, err
	}
	metrics.RowsWrittenTotal.WithLabelValues("stage", table).Add(float64(f.NumRows()))
	s.log().Info("staged dimension", zap.String("table", table), zap.Int("rows", f.NumRows()))
	return f.NumRows(), nil
}

func (s *Stager) factPerYear(table string, years []int, columns []string, read func(int) (*core.Frame, error)) (TableResult, error) {
	res := TableResult{Table: table}
	for _, year := range years {
		f, err := read(year)
		if err != nil {
			return res, fmt.Errorf("year %d: %w", year, err)
		}
		f = conform(f, columns)
		if f.Empty() {
			s.log().Debug("no rows for staged year",
				zap.String("table", table), zap.Int("year", year))
			continue
		}
		out := filepath.Join(s.Layout.Staged, table, fmt.Sprintf("%s_%d.csv", table, year))
		if err := loaders.WriteCSV(f, out); err != nil {
			return res, err
		}
		metrics.RowsWrittenTotal.WithLabelValues("stage", table).Add(float64(f.NumRows()))
		res.Years++
		res.Rows += f.NumRows()
	}
	s.log().Info("staged fact table",
		zap.String("table", table), zap.Int("years", res.Years), zap.Int("rows", res.Rows))
	return res, nil
}

// readAQIYear concatenates every AQI transform file for a year. Both AQS and
// Envista transforms land in the same directory with the year in the name.
func (s *Stager) readAQIYear(year int) (*core.Frame, error) {
	matches, err := filepath.Glob(filepath.Join(s.Layout.TransformAQI, fmt.Sprintf("*aqi*%d.csv", year)))
	if err != nil {
		return nil, err
	}
	combined := &core.Frame{}
	for _, path := range matches {
		f, err := loaders.ReadCSV(path)
		if err != nil {
			s.log().Warn("skipping unreadable transform file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		combined.Concat(f)
	}
	return combined, nil
}

func readOptionalCSV(path string) (*core.Frame, error) {
	f, err := loaders.ReadCSV(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &core.Frame{}, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// conform fits a frame to the fact schema: missing columns come in blank,
// extras drop, and rows with no values at all drop too.
func conform(f *core.Frame, columns []string) *core.Frame {
	if f.Empty() {
		return &core.Frame{}
	}
	for _, col := range columns {
		if !f.HasColumn(col) {
			f.AddColumn(col, "")
		}
	}
	out := f.Select(columns...)
	return out.Filter(func(row int) bool {
		for _, cell := range out.Rows[row] {
			if cell != "" {
				return true
			}
		}
		return false
	})
}
