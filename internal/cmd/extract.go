package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/aqs"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/config"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/core/client"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/core/engine"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/envista"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/output"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/pipeline"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/server"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run extraction services against the upstream APIs",
}

var extractAQSCmd = &cobra.Command{
	Use:   "aqs",
	Short: "Extract AQS sample, annual, and daily data year by year",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtractAQS(cmd.Context())
	},
}

var extractEnvistaCmd = &cobra.Command{
	Use:   "envista",
	Short: "Extract the Envista station inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtractEnvista(cmd.Context())
	},
}

func init() {
	extractCmd.AddCommand(extractAQSCmd)
	extractCmd.AddCommand(extractEnvistaCmd)
	rootCmd.AddCommand(extractCmd)
}

func runExtractAQS(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	all := params.Params
	criteria := params.Criteria()
	if cfg.TestMode {
		all = limitParams(all, config.TestModeParamLimit)
		criteria = limitParams(criteria, config.TestModeParamLimit)
		if len(chunks) > config.TestModeYearLimit {
			chunks = chunks[:config.TestModeYearLimit]
		}
		log.Info("test mode limits applied",
			zap.Int("params", len(all)), zap.Int("years", len(chunks)))
	}

	ext, breaker := newAQSExtractor(cfg, log)

	paths := cfg.Paths()
	orch := &engine.Orchestrator{
		Checkpoints: engine.NewCheckpointStore(paths.Ctl),
		Ledger:      engine.NewLedger(filepath.Join(paths.Logs, "skipped_parameters.csv")),
		Breaker:     breaker,
		MetadataDir: paths.Metadata,
		Log:         log,
	}

	services := []engine.Service{
		{Name: "sample", Params: all, Process: ext.SampleProcess(), YearWorkers: cfg.AQS.SampleYearWorkers},
		{Name: "annual", Params: all, Process: ext.AnnualProcess(), YearWorkers: cfg.AQS.AnnualYearWorkers},
		{Name: "daily", Params: criteria, Process: ext.DailyProcess(), YearWorkers: cfg.AQS.DailyYearWorkers},
	}

	srv := server.New(cfg.Server.Port, versionInfo, log)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("ops server stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	rep, err := orch.Run(ctx, services, chunks)
	if rep != nil {
		fmt.Println(output.RunSummary(rep))
	}
	return err
}

func runExtractEnvista(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateEnvista(); err != nil {
		return err
	}

	paths := cfg.Paths()
	h := cfg.Envista.HTTP
	breaker := client.NewBreaker("envista",
		filepath.Join(paths.Ctl, "envista_health.json"), h.BreakerThreshold, h.BreakerCooldown())
	c := client.New(client.Options{
		API:           "envista",
		Timeout:       h.Timeout(),
		Retries:       h.Retries,
		BackoffFactor: h.BackoffFactor,
		MaxWait:       h.MaxWait(),
		Username:      cfg.Envista.User,
		Password:      cfg.Envista.Key,
	}, client.NewRateLimiter(h.MaxRPS, h.MinDelay()), breaker, log)

	base := cfg.Envista.URL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	runner := &pipeline.EnvistaRunner{
		Extractor:       &envista.Extractor{Client: c, BaseURL: base, Log: log},
		MonitorsDir:     paths.RawEnvMonitors,
		MeasurementsDir: paths.RawEnvSample,
		Log:             log,
	}

	rows, err := runner.Stations(ctx)
	if err != nil {
		return err
	}
	log.Info("envista extraction complete", zap.Int("station_monitors", rows))
	return nil
}

// newAQSExtractor builds the shared AQS client stack.
func newAQSExtractor(cfg *config.Config, log *zap.Logger) (*aqs.Extractor, *client.Breaker) {
	paths := cfg.Paths()
	h := cfg.AQS.HTTP
	breaker := client.NewBreaker("aqs",
		filepath.Join(paths.Ctl, "aqs_health.json"), h.BreakerThreshold, h.BreakerCooldown())
	c := client.New(client.Options{
		API:           "aqs",
		Timeout:       h.Timeout(),
		Retries:       h.Retries,
		BackoffFactor: h.BackoffFactor,
		MaxWait:       h.MaxWait(),
	}, client.NewRateLimiter(h.MaxRPS, h.MinDelay()), breaker, log)

	return &aqs.Extractor{
		Client: c,
		Creds:  aqs.Credentials{Email: cfg.AQS.Email, Key: cfg.AQS.Key},
		State:  cfg.State,
		Dirs: aqs.Dirs{
			Sample:   paths.RawSample,
			Annual:   paths.RawAnnual,
			Daily:    paths.RawDaily,
			Monitors: paths.TransformMonitors,
			Logs:     paths.Logs,
			Metadata: paths.Metadata,
		},
		Log:   log,
		Clock: time.Now,
	}, breaker
}

func yearChunks(cfg *config.Config) ([]engine.YearChunk, error) {
	begin, err := cfg.ClampedBeginDate()
	if err != nil {
		return nil, err
	}
	end, err := cfg.EndDate()
	if err != nil {
		return nil, err
	}
	chunks := engine.YearChunks(begin, end)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("empty extraction range %s..%s", cfg.BDate, cfg.EDate)
	}
	return chunks, nil
}

func limitParams(params []core.Parameter, limit int) []core.Parameter {
	if len(params) > limit {
		return params[:limit]
	}
	return params
}
