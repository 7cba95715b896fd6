// Package cmd wires the pipeline services into the soar CLI.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/config"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/observability"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/server"
)

var (
	cfgFile string
	verbose bool
	logJSON bool

	versionInfo server.Info
)

// SetVersionInfo receives the build identity from main's ldflags.
func SetVersionInfo(version, commit, date string) {
	versionInfo = server.Info{Version: version, Commit: commit, Date: date}
}

var rootCmd = &cobra.Command{
	Use:   "soar",
	Short: "Air quality data pipeline for the Oregon data lake",
	Long: `soar extracts EPA AQS and Envista air quality data into the data lake,
transforms it (TRV exceedances, AQI), and consolidates staged fact tables.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug log level)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(level, cfg.Logging.JSON || logJSON)
}
