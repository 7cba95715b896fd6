package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// minBDate is the extraction policy floor: no requests for data before it.
var minBDate = time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)

// Limits applied when test mode is on.
const (
	TestModeParamLimit = 5
	TestModeYearLimit  = 2
)

// Config is the full pipeline configuration, merged from defaults, an
// optional config file, a .env file, and environment variables.
type Config struct {
	AQS     AQSConfig     `mapstructure:"aqs"`
	Envista EnvistaConfig `mapstructure:"envista"`

	// BDate/EDate are ISO dates bounding the extraction range.
	BDate string `mapstructure:"bdate"`
	EDate string `mapstructure:"edate"`

	// State is the FIPS code, zero-padded to two digits at load time.
	State string `mapstructure:"state_code"`

	// DataRoot is the data lake root; every layer path hangs off it.
	DataRoot string `mapstructure:"datarepo_root"`

	// OpsDir holds the reference tables (dimPollutant.csv, dimAQI.csv).
	OpsDir string `mapstructure:"ops_dir"`

	TestMode bool `mapstructure:"test_mode"`

	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// HTTPConfig tunes one API family's client. Durations are plain seconds to
// match the environment variable contract.
type HTTPConfig struct {
	TimeoutSec    int     `mapstructure:"timeout"`
	Retries       int     `mapstructure:"retries"`
	BackoffFactor float64 `mapstructure:"backoff_factor"`
	MaxWaitSec    int     `mapstructure:"retry_max_wait"`
	MinDelaySec   float64 `mapstructure:"min_delay"`
	MaxRPS        int     `mapstructure:"max_rps"`

	BreakerThreshold   int `mapstructure:"circuit_threshold"`
	BreakerCooldownSec int `mapstructure:"circuit_cooldown"`
}

func (h HTTPConfig) Timeout() time.Duration { return time.Duration(h.TimeoutSec) * time.Second }
func (h HTTPConfig) MaxWait() time.Duration { return time.Duration(h.MaxWaitSec) * time.Second }
func (h HTTPConfig) MinDelay() time.Duration {
	return time.Duration(h.MinDelaySec * float64(time.Second))
}
func (h HTTPConfig) BreakerCooldown() time.Duration {
	return time.Duration(h.BreakerCooldownSec) * time.Second
}

// AQSConfig carries the EPA AQS credentials and tuning. Each service runs
// its years under its own worker count.
type AQSConfig struct {
	Email string `mapstructure:"email"`
	Key   string `mapstructure:"key"`

	HTTP              HTTPConfig `mapstructure:"http"`
	SampleYearWorkers int        `mapstructure:"sample_year_workers"`
	AnnualYearWorkers int        `mapstructure:"annual_year_workers"`
	DailyYearWorkers  int        `mapstructure:"daily_year_workers"`
}

// EnvistaConfig carries the Envista credentials and tuning.
type EnvistaConfig struct {
	User string `mapstructure:"user"`
	Key  string `mapstructure:"key"`
	URL  string `mapstructure:"url"`

	HTTP HTTPConfig `mapstructure:"http"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Paths are the data lake layer directories derived from DataRoot.
type Paths struct {
	Root string

	RawSample      string
	RawAnnual      string
	RawDaily       string
	RawMonitors    string
	RawEnvMonitors string
	RawEnvSample   string
	Logs           string
	Metadata       string
	Ctl            string

	TransformTRVSample string
	TransformTRVAnnual string
	TransformAQI       string
	TransformMonitors  string

	Staged string
}

// Paths derives the layer directories. Nothing is created here; writers
// create their own directories.
func (c *Config) Paths() Paths {
	root := c.DataRoot
	return Paths{
		Root:           root,
		RawSample:      filepath.Join(root, "raw", "aqs", "sample"),
		RawAnnual:      filepath.Join(root, "raw", "aqs", "annual"),
		RawDaily:       filepath.Join(root, "raw", "aqs", "daily"),
		RawMonitors:    filepath.Join(root, "raw", "aqs", "monitors"),
		RawEnvMonitors: filepath.Join(root, "raw", "envista", "monitors"),
		RawEnvSample:   filepath.Join(root, "raw", "envista", "sample"),
		Logs:           filepath.Join(root, "raw", "aqs", "logs"),
		Metadata:       filepath.Join(root, "metadata"),
		Ctl:            filepath.Join(root, "raw", "aqs", "_ctl"),

		TransformTRVSample: filepath.Join(root, "transform", "trv", "sample"),
		TransformTRVAnnual: filepath.Join(root, "transform", "trv", "annual"),
		TransformAQI:       filepath.Join(root, "transform", "aqi"),
		TransformMonitors:  filepath.Join(root, "transform", "monitors"),

		Staged: filepath.Join(root, "staged"),
	}
}

// PollutantsFile is the parameter reference table.
func (c *Config) PollutantsFile() string {
	return filepath.Join(c.OpsDir, "dimPollutant.csv")
}

// AQICategoriesFile is the AQI classification table.
func (c *Config) AQICategoriesFile() string {
	return filepath.Join(c.OpsDir, "dimAQI.csv")
}

// BeginDate parses BDate. Use ClampedBeginDate for extraction requests.
func (c *Config) BeginDate() (time.Time, error) {
	return parseISODate("BDATE", c.BDate)
}

// EndDate parses EDate.
func (c *Config) EndDate() (time.Time, error) {
	return parseISODate("EDATE", c.EDate)
}

// ClampedBeginDate enforces the 2005-01-01 extraction floor.
func (c *Config) ClampedBeginDate() (time.Time, error) {
	b, err := c.BeginDate()
	if err != nil {
		return time.Time{}, err
	}
	if b.Before(minBDate) {
		return minBDate, nil
	}
	return b, nil
}

// Years lists every calendar year in the clamped extraction range.
func (c *Config) Years() ([]int, error) {
	b, err := c.ClampedBeginDate()
	if err != nil {
		return nil, err
	}
	e, err := c.EndDate()
	if err != nil {
		return nil, err
	}
	var years []int
	for y := b.Year(); y <= e.Year(); y++ {
		years = append(years, y)
	}
	return years, nil
}

// ValidateAQS checks the AQS credentials before any extraction starts.
func (c *Config) ValidateAQS() error {
	if c.AQS.Email == "" || c.AQS.Key == "" {
		return fmt.Errorf("missing AQS_EMAIL or AQS_KEY in environment")
	}
	if !strings.Contains(c.AQS.Email, "@") || !strings.Contains(c.AQS.Email, ".") {
		return fmt.Errorf("AQS_EMAIL does not look like an email address")
	}
	if len(strings.TrimSpace(c.AQS.Key)) < 10 {
		return fmt.Errorf("AQS_KEY looks invalid (too short)")
	}
	return nil
}

// ValidateEnvista checks the Envista credentials.
func (c *Config) ValidateEnvista() error {
	if c.Envista.User == "" || c.Envista.Key == "" || c.Envista.URL == "" {
		return fmt.Errorf("missing ENV_USER, ENV_KEY, or ENV_URL in environment")
	}
	return nil
}

func parseISODate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is not set", name)
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}
