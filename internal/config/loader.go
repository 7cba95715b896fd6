// Package config loads the pipeline configuration: viper defaults, an
// optional YAML file, a .env file for local credentials, and environment
// variables, merged in that order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load builds the configuration. configFile may be empty; when set it must
// exist and parse. Environment variables win over the file.
func Load(configFile string) (*Config, error) {
	// .env is a convenience for local runs; absence is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.State = zfill(strings.TrimSpace(cfg.State), 2)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	for _, api := range []string{"aqs", "envista"} {
		v.SetDefault(api+".http.timeout", 120)
		v.SetDefault(api+".http.retries", 6)
		v.SetDefault(api+".http.backoff_factor", 1.5)
		v.SetDefault(api+".http.retry_max_wait", 60)
		v.SetDefault(api+".http.min_delay", 0.0)
		v.SetDefault(api+".http.max_rps", 5)
		v.SetDefault(api+".http.circuit_threshold", 5)
		v.SetDefault(api+".http.circuit_cooldown", 1800)
	}
	v.SetDefault("aqs.sample_year_workers", 3)
	v.SetDefault("aqs.annual_year_workers", 3)
	v.SetDefault("aqs.daily_year_workers", 3)

	v.SetDefault("ops_dir", "ops")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
}

// bindEnv maps the environment variable names the original deployment used,
// including the legacy aliases.
func bindEnv(v *viper.Viper) {
	bind := func(key string, names ...string) {
		// error only fires with zero names
		_ = v.BindEnv(append([]string{key}, names...)...)
	}

	bind("aqs.email", "AQS_EMAIL")
	bind("aqs.key", "AQS_KEY", "AQS_Key")
	bind("aqs.sample_year_workers", "AQS_SAMPLE_YEAR_WORKERS")
	bind("aqs.annual_year_workers", "AQS_ANNUAL_YEAR_WORKERS")
	bind("aqs.daily_year_workers", "AQS_DAILY_YEAR_WORKERS")
	bind("aqs.http.timeout", "AQS_TIMEOUT")
	bind("aqs.http.retries", "AQS_RETRIES")
	bind("aqs.http.backoff_factor", "AQS_BACKOFF_FACTOR")
	bind("aqs.http.retry_max_wait", "AQS_RETRY_MAX_WAIT")
	bind("aqs.http.min_delay", "AQS_MIN_DELAY")
	bind("aqs.http.max_rps", "AQS_MAX_RPS")
	bind("aqs.http.circuit_threshold", "AQS_CIRCUIT_THRESHOLD")
	bind("aqs.http.circuit_cooldown", "AQS_CIRCUIT_COOLDOWN")

	bind("envista.user", "ENV_USER", "ENVISTA_USER")
	bind("envista.key", "ENV_KEY", "ENVISTA_KEY")
	bind("envista.url", "ENV_URL", "ENVISTA_URL")
	bind("envista.http.timeout", "ENV_TIMEOUT")
	bind("envista.http.retries", "ENV_RETRIES")
	bind("envista.http.backoff_factor", "ENV_BACKOFF_FACTOR")
	bind("envista.http.retry_max_wait", "ENV_RETRY_MAX_WAIT")
	bind("envista.http.min_delay", "ENV_MIN_DELAY")
	bind("envista.http.max_rps", "ENV_MAX_RPS")
	bind("envista.http.circuit_threshold", "ENV_CIRCUIT_THRESHOLD")
	bind("envista.http.circuit_cooldown", "ENV_CIRCUIT_COOLDOWN")

	bind("bdate", "BDATE")
	bind("edate", "EDATE")
	bind("state_code", "STATE_CODE")
	bind("datarepo_root", "DATAREPO_ROOT")
	bind("ops_dir", "OPS_DIR")
	bind("test_mode", "AQS_TEST_MODE")

	bind("server.port", "OPS_PORT")
	bind("logging.level", "LOG_LEVEL")
	bind("logging.json", "LOG_JSON")
}

func zfill(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
