package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
)

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "Fetch the AQS monitor inventory for every parameter and year",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if err := cfg.ValidateAQS(); err != nil {
			return err
		}
		params, err := core.LoadParameters(cfg.PollutantsFile())
		if err != nil {
			return err
		}
		chunks, err := yearChunks(cfg)
		if err != nil {
			return err
		}

		ext, _ := newAQSExtractor(cfg, log)
		rows, err := ext.FetchMonitors(cmd.Context(), params.Params, chunks)
		if err != nil {
			return err
		}
		log.Info("monitor inventory written", zap.Int("rows", rows))
		return nil
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Fetch AQS API availability and field metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if err := cfg.ValidateAQS(); err != nil {
			return err
		}
		ext, _ := newAQSExtractor(cfg, log)
		return ext.FetchMetadata(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(monitorsCmd)
	rootCmd.AddCommand(metadataCmd)
}
