package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/output"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/pipeline"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/stage"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Run TRV and AQI transforms over the raw layer",
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

		params, err := core.LoadParameters(cfg.PollutantsFile())
		if err != nil {
			return err
		}
		years, err := cfg.Years()
		if err != nil {
			return err
		}

		paths := cfg.Paths()
		tr := &pipeline.Transformer{
			RawSample:    paths.RawSample,
			RawAnnual:    paths.RawAnnual,
			RawDaily:     paths.RawDaily,
			TRVSampleDir: paths.TransformTRVSample,
			TRVAnnualDir: paths.TransformTRVAnnual,
			AQIDir:       paths.TransformAQI,
			Params:       params,
			Log:          log,
		}
		results, err := tr.RunAll(years)
		if len(results) > 0 {
			fmt.Println(output.TransformSummary(results))
		}
		return err
	},
}

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Consolidate transforms into the staged fact and dimension tables",
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

		years, err := cfg.Years()
		if err != nil {
			return err
		}

		paths := cfg.Paths()
		s := &stage.Stager{
			Layout: stage.Layout{
				TransformAQI:       paths.TransformAQI,
				TransformTRVSample: paths.TransformTRVSample,
				TransformTRVAnnual: paths.TransformTRVAnnual,
				MonitorsFile:       filepath.Join(paths.TransformMonitors, "aqs_monitors.csv"),
				PollutantsFile:     cfg.PollutantsFile(),
				AQICategoriesFile:  cfg.AQICategoriesFile(),
				Staged:             paths.Staged,
			},
			Log: log,
		}
		results, err := s.RunAll(years)
		if len(results) > 0 {
			fmt.Println(output.StageSummary(results))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(stageCmd)
}
