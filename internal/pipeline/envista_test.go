package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core/client"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/envista"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
)

func newEnvistaRunner(t *testing.T, handler http.Handler) *EnvistaRunner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	root := t.TempDir()
	breaker := client.NewBreaker("envista", filepath.Join(root, "envista_health.json"), 5, 30*time.Minute)
	c := client.New(client.Options{API: "envista", Retries: 1}, client.NewRateLimiter(0, 0), breaker, nil)

	return &EnvistaRunner{
		Extractor:       &envista.Extractor{Client: c, BaseURL: srv.URL + "/"},
		Qualifiers:      map[string]string{"9": "suspect"},
		MonitorsDir:     filepath.Join(root, "raw", "envista", "monitors"),
		MeasurementsDir: filepath.Join(root, "raw", "envista", "measurements"),
	}
}

func TestStations(t *testing.T) {
	r := newEnvistaRunner(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`[{"stationId":2,"name":"Portland SE Lafayette","active":true,"monitors":[
			{"channelId":12,"name":"PM2.5 Est","alias":"PM25","active":true,"typeId":1}]}]`))
	}))

	rows, err := r.Stations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	f, err := loaders.ReadCSV(filepath.Join(r.MonitorsDir, "envista_stations_metadata.csv"))
	require.NoError(t, err)
	assert.Equal(t, "PM2.5 Est", f.Value(0, "monitor_name"))
}

func TestMeasurementsStandardizesAndAppends(t *testing.T) {
	r := newEnvistaRunner(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.URL.Path, "/data/99") {
			http.Error(w, "no such channel", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"data":{
			"datetime":["2024-01-15T01:00:00-08:00"],
			"channels":[{"id":12,"value":8.4,"status":9,"valid":true,"description":"Ok"}]}}`))
	}))

	meta := envista.SiteMeta{Site: "Portland SE Lafayette", Interval: "hour", Parameter: "PM2.5 Est", Units: "ug/m3"}
	targets := []EnvistaTarget{
		{StationID: 2, ChannelID: 12, Meta: meta},
		{StationID: 2, ChannelID: 99, Meta: meta}, // fails, skipped
	}

	rows, err := r.Measurements(context.Background(), targets, "2024-01-15", "2024-01-16")
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	f, err := loaders.ReadCSV(filepath.Join(r.MeasurementsDir, "envista_Portland-SE-Lafayette_12.csv"))
	require.NoError(t, err)
	require.Equal(t, 1, f.NumRows())
	assert.Equal(t, "2024-01-15 00:00:00", f.Value(0, "datetime"))
	assert.Equal(t, "8.4", f.Value(0, "sample_measurement"))
	assert.Equal(t, "suspect", f.Value(0, "simple_qual"))
}

func TestMeasurementsAllTargetsFailing(t *testing.T) {
	r := newEnvistaRunner(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	_, err := r.Measurements(context.Background(), []EnvistaTarget{{StationID: 1, ChannelID: 2}}, "a", "b")
	assert.Error(t, err)
}
