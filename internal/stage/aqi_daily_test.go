package stage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
)

func writeCategories(t *testing.T, path string) {
	t.Helper()
	// ranges repeat per pollutant in the source table
	writeFrame(t, path, []map[string]any{
		{"pollutant": "ozone", "aqi_category": "Good", "low_aqi": "0", "high_aqi": "50"},
		{"pollutant": "pm25", "aqi_category": "Good", "low_aqi": "0", "high_aqi": "50"},
		{"pollutant": "ozone", "aqi_category": "Moderate", "low_aqi": "51", "high_aqi": "100"},
		{"pollutant": "ozone", "aqi_category": "Unhealthy", "low_aqi": "101", "high_aqi": "500"},
	})
}

func TestLoadAQICategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dimAQI.csv")
	writeCategories(t, path)

	cats, err := LoadAQICategories(path)
	require.NoError(t, err)
	require.Len(t, cats, 3)

	assert.Equal(t, "Good", cats.Classify(34))
	assert.Equal(t, "Moderate", cats.Classify(51))
	// above every range: worst category
	assert.Equal(t, "Unhealthy", cats.Classify(900))
}

func TestPM25Priority(t *testing.T) {
	assert.Equal(t, 1, pm25Priority("88101", "99"))
	assert.Equal(t, 2, pm25Priority("88502", "1"))
	assert.Equal(t, 3, pm25Priority("88502", "99"))
	assert.Equal(t, 999, pm25Priority("44201", "1"))
}

func aqiRec(code, poc, site, date, mean, aqi, validity string) map[string]any {
	return map[string]any{
		"parameter_code": code, "poc": poc, "site_code": site,
		"date_local": date, "arithmetic_mean": mean, "aqi": aqi,
		"validity_indicator": validity, "event_type": "None",
		"observation_percent": "100",
	}
}

func TestConsolidateAQIYear(t *testing.T) {
	cats := AQICategories{
		{Name: "Good", Low: 0, High: 50},
		{Name: "Moderate", Low: 51, High: 100},
	}
	f := core.FromRecords([]map[string]any{
		// regulatory monitor outranks the sensor despite its lower mean
		aqiRec("88101", "1", "410510004", "2020-01-01", "8.0", "34", "Y"),
		aqiRec("88502", "99", "410510004", "2020-01-01", "20.0", "68", "Y"),
		aqiRec("44201", "1", "410510004", "2020-01-01", "0.041", "55", "Y"),
		// invalid records never contribute
		aqiRec("88101", "1", "410510004", "2020-01-02", "40.0", "112", "N"),
		// pm25-only site-date
		aqiRec("88502", "99", "410670011", "2020-01-01", "5.0", "21", "Y"),
	})

	out := consolidateAQIYear(f, cats)
	require.Equal(t, 2, out.NumRows())
	assert.Equal(t, aqiDailyStagedColumns, out.Columns)

	// overall AQI is the worse of ozone 55 and selected pm25 34
	assert.Equal(t, "410510004", out.Value(0, "site_code"))
	assert.Equal(t, "55", out.Value(0, "aqi"))
	assert.Equal(t, "Moderate", out.Value(0, "aqi_category"))
	assert.Equal(t, "34", out.Value(0, "pm25_aqi"))
	assert.Equal(t, "1", out.Value(0, "pm25_poc"))
	assert.Equal(t, "55", out.Value(0, "ozone_aqi"))

	assert.Equal(t, "410670011", out.Value(1, "site_code"))
	assert.Equal(t, "21", out.Value(1, "aqi"))
	assert.Equal(t, "", out.Value(1, "ozone_aqi"))
}

func TestConsolidateAQIYearSamePriorityHigherMeanWins(t *testing.T) {
	cats := AQICategories{{Name: "Good", Low: 0, High: 50}}
	f := core.FromRecords([]map[string]any{
		aqiRec("88502", "1", "410510004", "2020-01-01", "6.0", "25", "Y"),
		aqiRec("88502", "2", "410510004", "2020-01-01", "9.0", "38", "Y"),
	})
	out := consolidateAQIYear(f, cats)
	require.Equal(t, 1, out.NumRows())
	assert.Equal(t, "38", out.Value(0, "pm25_aqi"))
	assert.Equal(t, "2", out.Value(0, "pm25_poc"))
}

func TestAQIDailyEndToEnd(t *testing.T) {
	s := &Stager{Layout: testLayout(t)}
	writeCategories(t, s.Layout.AQICategoriesFile)
	writeFrame(t, filepath.Join(s.Layout.TransformAQI, "aqi_aqs_daily_2020.csv"), []map[string]any{
		aqiRec("88101", "1", "410510004", "2020-01-01", "8.0", "34", "Y"),
	})

	res, err := s.AQIDaily([]int{2020})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)

	out, err := loaders.ReadCSV(filepath.Join(s.Layout.Staged, "fct_aqi_daily", "aqi_aqs_daily_2020.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Good", out.Value(0, "aqi_category"))
}
