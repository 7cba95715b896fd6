package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BDATE", "2019-01-01")
	t.Setenv("EDATE", "2020-12-31")
	t.Setenv("STATE_CODE", "41")
	t.Setenv("DATAREPO_ROOT", "/data/soar")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.AQS.HTTP.Timeout())
	assert.Equal(t, 6, cfg.AQS.HTTP.Retries)
	assert.InDelta(t, 1.5, cfg.AQS.HTTP.BackoffFactor, 1e-9)
	assert.Equal(t, 60*time.Second, cfg.AQS.HTTP.MaxWait())
	assert.Equal(t, time.Duration(0), cfg.AQS.HTTP.MinDelay())
	assert.Equal(t, 5, cfg.AQS.HTTP.MaxRPS)
	assert.Equal(t, 5, cfg.AQS.HTTP.BreakerThreshold)
	assert.Equal(t, 30*time.Minute, cfg.AQS.HTTP.BreakerCooldown())
	assert.Equal(t, 3, cfg.AQS.SampleYearWorkers)
	assert.Equal(t, 3, cfg.AQS.AnnualYearWorkers)
	assert.Equal(t, 3, cfg.AQS.DailyYearWorkers)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.TestMode)
}

func TestLoadEnvOverridesAndAliases(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AQS_EMAIL", "me@example.org")
	t.Setenv("AQS_KEY", "goldencrane42")
	t.Setenv("AQS_MAX_RPS", "2")
	t.Setenv("ENVISTA_USER", "deq") // legacy alias
	t.Setenv("ENV_KEY", "hunter2")
	t.Setenv("ENV_URL", "https://envista.example/")
	t.Setenv("AQS_TEST_MODE", "true")
	t.Setenv("AQS_SAMPLE_YEAR_WORKERS", "4")
	t.Setenv("AQS_ANNUAL_YEAR_WORKERS", "2")
	t.Setenv("AQS_DAILY_YEAR_WORKERS", "1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "me@example.org", cfg.AQS.Email)
	assert.Equal(t, 2, cfg.AQS.HTTP.MaxRPS)
	assert.Equal(t, "deq", cfg.Envista.User)
	assert.True(t, cfg.TestMode)
	assert.Equal(t, 4, cfg.AQS.SampleYearWorkers)
	assert.Equal(t, 2, cfg.AQS.AnnualYearWorkers)
	assert.Equal(t, 1, cfg.AQS.DailyYearWorkers)

	assert.NoError(t, cfg.ValidateAQS())
	assert.NoError(t, cfg.ValidateEnvista())
}

func TestLoadConfigFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "soar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aqs:\n  sample_year_workers: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.AQS.SampleYearWorkers)
	assert.Equal(t, 3, cfg.AQS.AnnualYearWorkers)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStateZeroPadded(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STATE_CODE", "1")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "01", cfg.State)
}

func TestClampedBeginDate(t *testing.T) {
	cfg := &Config{BDate: "1999-06-01", EDate: "2006-12-31"}
	b, err := cfg.ClampedBeginDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), b)

	years, err := cfg.Years()
	require.NoError(t, err)
	assert.Equal(t, []int{2005, 2006}, years)
}

func TestValidateAQS(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateAQS())

	cfg.AQS.Email = "not-an-email"
	cfg.AQS.Key = "goldencrane42"
	assert.Error(t, cfg.ValidateAQS())

	cfg.AQS.Email = "me@example.org"
	cfg.AQS.Key = "short"
	assert.Error(t, cfg.ValidateAQS())

	cfg.AQS.Key = "goldencrane42"
	assert.NoError(t, cfg.ValidateAQS())
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataRoot: "/data/soar", OpsDir: "ops"}
	p := cfg.Paths()
	assert.Equal(t, filepath.Join("/data/soar", "raw", "aqs", "sample"), p.RawSample)
	assert.Equal(t, filepath.Join("/data/soar", "raw", "aqs", "_ctl"), p.Ctl)
	assert.Equal(t, filepath.Join("/data/soar", "transform", "trv", "annual"), p.TransformTRVAnnual)
	assert.Equal(t, filepath.Join("ops", "dimPollutant.csv"), cfg.PollutantsFile())
}
