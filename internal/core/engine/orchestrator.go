package engine

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/metrics"
)

// ProcessFunc extracts one parameter for one year chunk and returns the
// number of rows written. Returned errors are recorded to the ledger and
// skipped; they never abort the year.
type ProcessFunc func(ctx context.Context, param core.Parameter, chunk YearChunk) (int, error)

// Service is one extraction pass over years x parameters.
type Service struct {
	Name        string
	Params      []core.Parameter
	Process     ProcessFunc
	YearWorkers int
}

// Breaker is the health gate checked once before a run starts. Satisfied by
// client.Breaker.
type Breaker interface {
	IsOpen() bool
}

// ServiceResult aggregates one service's run.
type ServiceResult struct {
	Service string `json:"service"`
	Rows    int64  `json:"rows"`
	Skipped int64  `json:"skipped"`
	Years   int    `json:"years"`
}

// Report summarizes a whole pipeline run and is persisted as the run
// manifest.
type Report struct {
	RunID      string          `json:"run_id"`
	Status     string          `json:"status"` // complete, degraded, aborted
	Reason     string          `json:"reason,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Services   []ServiceResult `json:"services,omitempty"`
}

// Orchestrator walks services consecutively, years concurrently within a
// service, and parameters sequentially within a year. The sequential
// parameter loop is what makes the per-year checkpoint a meaningful resume
// point.
type Orchestrator struct {
	Checkpoints *CheckpointStore
	Ledger      *Ledger
	Breaker     Breaker
	MetadataDir string
	Log         *zap.Logger
	Clock       func() time.Time
}

func (o *Orchestrator) clock() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

func (o *Orchestrator) log() *zap.Logger {
	if o.Log != nil {
		return o.Log
	}
	return zap.NewNop()
}

// Run executes services in order over the given year chunks. When the
// circuit breaker is already open no extraction happens at all; a degraded
// manifest is written so downstream consumers can tell a skipped run from a
// missing one. The returned error is reserved for setup failures and
// context cancellation; ordinary parameter failures end up in the ledger.
func (o *Orchestrator) Run(ctx context.Context, services []Service, chunks []YearChunk) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: o.clock().UTC(),
	}

	if o.Breaker != nil && o.Breaker.IsOpen() {
		report.Status = "degraded"
		report.Reason = "circuit is open; skipping extraction"
		report.FinishedAt = o.clock().UTC()
		o.log().Warn("circuit open at start, writing degraded manifest")
		if err := o.writeManifest("run_manifest_degraded.json", report); err != nil {
			return report, err
		}
		return report, nil
	}

	for _, svc := range services {
		result, err := o.runService(ctx, svc, chunks)
		report.Services = append(report.Services, result)
		if err != nil {
			report.Status = "aborted"
			report.Reason = err.Error()
			report.FinishedAt = o.clock().UTC()
			return report, err
		}
	}

	report.Status = "complete"
	report.FinishedAt = o.clock().UTC()
	if err := o.writeManifest("run_manifest.json", report); err != nil {
		return report, err
	}
	return report, nil
}

func (o *Orchestrator) runService(ctx context.Context, svc Service, chunks []YearChunk) (ServiceResult, error) {
	result := ServiceResult{Service: svc.Name, Years: len(chunks)}
	workers := svc.YearWorkers
	if workers <= 0 {
		workers = 1
	}
	o.log().Info("starting service",
		zap.String("service", svc.Name),
		zap.Int("years", len(chunks)),
		zap.Int("parameters", len(svc.Params)),
		zap.Int("year_workers", workers))

	var rows, skipped int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			metrics.YearsInFlight.WithLabelValues(svc.Name).Inc()
			defer metrics.YearsInFlight.WithLabelValues(svc.Name).Dec()
			return o.runYear(gctx, svc, chunk, &rows, &skipped)
		})
	}
	err := g.Wait()
	result.Rows = atomic.LoadInt64(&rows)
	result.Skipped = atomic.LoadInt64(&skipped)
	if err != nil {
		return result, err
	}

	if err := o.Checkpoints.MarkServiceComplete(svc.Name); err != nil {
		return result, err
	}
	o.log().Info("service complete",
		zap.String("service", svc.Name),
		zap.Int64("rows", result.Rows),
		zap.Int64("skipped", result.Skipped))
	return result, nil
}

// runYear walks the parameter list sequentially, resuming past the
// checkpoint. The checkpoint advances after every parameter, failed ones
// included; failures land in the ledger instead of blocking the head of
// every resumed run.
func (o *Orchestrator) runYear(ctx context.Context, svc Service, chunk YearChunk, rows, skipped *int64) error {
	cp := o.Checkpoints.Load(svc.Name, chunk.Year)
	start := cp.LastParamIndex + 1
	if start > 0 {
		o.log().Info("resuming from checkpoint",
			zap.String("service", svc.Name),
			zap.Int("year", chunk.Year),
			zap.Int("skip_params", start))
	}

	for i, param := range svc.Params {
		if i < start {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := svc.Process(ctx, param, chunk)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			o.log().Warn("parameter failed, recording and advancing",
				zap.String("service", svc.Name),
				zap.Int("year", chunk.Year),
				zap.String("param", param.Code),
				zap.String("label", param.Label),
				zap.Error(err))
			if lerr := o.Ledger.Record(svc.Name, chunk.Year, param, err); lerr != nil {
				return lerr
			}
			atomic.AddInt64(skipped, 1)
		} else {
			atomic.AddInt64(rows, int64(n))
			metrics.RowsWrittenTotal.WithLabelValues(svc.Name, param.GroupStore).Add(float64(n))
		}

		if err := o.Checkpoints.Save(svc.Name, chunk.Year, i); err != nil {
			return err
		}
	}

	return o.Checkpoints.Clear(svc.Name, chunk.Year)
}

func (o *Orchestrator) writeManifest(name string, report *Report) error {
	if o.MetadataDir == "" {
		return nil
	}
	return loaders.AtomicWriteJSON(filepath.Join(o.MetadataDir, name), report)
}
