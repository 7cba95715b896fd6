package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
)

func testLayout(t *testing.T) Layout {
	t.Helper()
	root := t.TempDir()
	return Layout{
		TransformAQI:       filepath.Join(root, "transform", "aqi"),
		TransformTRVSample: filepath.Join(root, "transform", "trv", "sample"),
		TransformTRVAnnual: filepath.Join(root, "transform", "trv", "annual"),
		MonitorsFile:       filepath.Join(root, "transform", "monitors", "aqs_monitors.csv"),
		PollutantsFile:     filepath.Join(root, "ops", "dimPollutant.csv"),
		AQICategoriesFile:  filepath.Join(root, "ops", "dimAQI.csv"),
		Staged:             filepath.Join(root, "staged"),
	}
}

func writeFrame(t *testing.T, path string, records []map[string]any) {
	t.Helper()
	require.NoError(t, loaders.WriteCSV(core.FromRecords(records), path))
}

func TestCriteriaDailyConformsSchema(t *testing.T) {
	s := &Stager{Layout: testLayout(t)}
	writeFrame(t, filepath.Join(s.Layout.TransformAQI, "aqi_aqs_daily_2020.csv"), []map[string]any{
		{
			"parameter_code": "88101", "poc": "1", "parameter": "PM2.5",
			"date_local": "2020-01-01", "arithmetic_mean": "8.2", "aqi": "34",
			"site_code": "410510004", "validity_indicator": "Y",
			"latitude": "45.49", // geographic fields stay out of the fact table
		},
	})

	res, err := s.CriteriaDaily([]int{2020, 2021})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Years)
	assert.Equal(t, 1, res.Rows)

	out, err := loaders.ReadCSV(filepath.Join(s.Layout.Staged, "fct_criteria_daily", "fct_criteria_daily_2020.csv"))
	require.NoError(t, err)
	assert.Equal(t, criteriaDailyColumns, out.Columns)
	assert.False(t, out.HasColumn("latitude"))
	assert.Equal(t, "", out.Value(0, "sample_duration"), "absent source columns come in blank")
	assert.Equal(t, "34", out.Value(0, "aqi"))
}

func TestToxicsSampleSkipsMissingYears(t *testing.T) {
	s := &Stager{Layout: testLayout(t)}
	writeFrame(t, filepath.Join(s.Layout.TransformTRVSample, "trv_sample_2019.csv"), []map[string]any{
		{"site_code": "0510004", "parameter_code": "71432", "sample_measurement": "2.0"},
	})

	res, err := s.ToxicsSample([]int{2018, 2019})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Years)

	_, statErr := os.Stat(filepath.Join(s.Layout.Staged, "fct_toxics_sample", "fct_toxics_sample_2018.csv"))
	assert.True(t, os.IsNotExist(statErr))

	out, err := loaders.ReadCSV(filepath.Join(s.Layout.Staged, "fct_toxics_sample", "fct_toxics_sample_2019.csv"))
	require.NoError(t, err)
	assert.Equal(t, toxicsSampleColumns, out.Columns)
}

func TestToxicsAnnualSchema(t *testing.T) {
	s := &Stager{Layout: testLayout(t)}
	writeFrame(t, filepath.Join(s.Layout.TransformTRVAnnual, "trv_annual_2019.csv"), []map[string]any{
		{"site_code": "410510004", "parameter_code": "71432", "arithmetic_mean_ug_m3": "3.83"},
	})

	res, err := s.ToxicsAnnual([]int{2019})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)

	out, err := loaders.ReadCSV(filepath.Join(s.Layout.Staged, "fct_toxics_annual", "fct_toxics_annual_2019.csv"))
	require.NoError(t, err)
	assert.Equal(t, toxicsAnnualColumns, out.Columns)
	assert.Equal(t, "3.83", out.Value(0, "arithmetic_mean_ug_m3"))
}

func TestDimensionCopies(t *testing.T) {
	s := &Stager{Layout: testLayout(t)}
	writeFrame(t, s.Layout.PollutantsFile, []map[string]any{
		{"aqs_parameter": "88101", "analyte_name_deq": "PM2.5", "group_store": "pm25"},
	})
	writeFrame(t, s.Layout.MonitorsFile, []map[string]any{
		{"site_number": "0004", "county_code": "051", "parameter_code": "88101"},
	})

	rows, err := s.DimPollutant()
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	rows, err = s.DimSites()
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	for _, rel := range []string{
		filepath.Join("dim_pollutant", "dim_pollutant.csv"),
		filepath.Join("dim_sites", "dim_sites.csv"),
	} {
		_, err := os.Stat(filepath.Join(s.Layout.Staged, rel))
		assert.NoError(t, err, rel)
	}
}

func TestDimPollutantMissingInputFails(t *testing.T) {
	s := &Stager{Layout: testLayout(t)}
	_, err := s.DimPollutant()
	assert.Error(t, err)
}
