package aqs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/core/client"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/core/engine"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
)

// Dirs lays out the raw AQS area of the data lake.
type Dirs struct {
	Sample   string
	Annual   string
	Daily    string
	Monitors string
	Logs     string
	Metadata string
}

// Extractor fetches AQS data through the shared resilient client and appends
// it to group-store/year CSV files. One extractor serves all services; the
// orchestrator drives it through ProcessFuncs.
type Extractor struct {
	Client *client.Client
	Creds  Credentials
	State  string
	Dirs   Dirs
	Log    *zap.Logger

	// Clock stamps audit records; tests pin it.
	Clock func() time.Time
}

func (e *Extractor) clock() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *Extractor) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

// SampleProcess returns the per-parameter-year worker for raw sample data.
// Output rows are appended exactly as the API returned them.
func (e *Extractor) SampleProcess() engine.ProcessFunc {
	return e.process("sample", e.Dirs.Sample, SampleDataURL)
}

// AnnualProcess returns the worker for annual aggregate data.
func (e *Extractor) AnnualProcess() engine.ProcessFunc {
	return e.process("annual", e.Dirs.Annual, AnnualDataURL)
}

// DailyProcess returns the worker for daily summary data.
func (e *Extractor) DailyProcess() engine.ProcessFunc {
	return e.process("daily", e.Dirs.Daily, DailyDataURL)
}

func (e *Extractor) process(service, dir string, buildURL func(Credentials, string, string, string, string) string) engine.ProcessFunc {
	return func(ctx context.Context, param core.Parameter, chunk engine.YearChunk) (int, error) {
		url := buildURL(e.Creds, param.Code, chunk.BDate, chunk.EDate, e.State)
		frame, err := e.Client.FetchRows(ctx, url)
		if err != nil {
			e.writeAudit(service, param, chunk, 0, err)
			return 0, err
		}

		rows := frame.NumRows()
		if rows > 0 {
			group := param.GroupStore
			if group == "" {
				group = "other"
			}
			out := filepath.Join(dir, fmt.Sprintf("aqs_%s_%s_%d.csv", service, group, chunk.Year))
			if err := loaders.AppendCSV(frame, out); err != nil {
				e.writeAudit(service, param, chunk, 0, err)
				return 0, err
			}
		}
		e.log().Debug("parameter extracted",
			zap.String("service", service),
			zap.String("param", param.Code),
			zap.Int("year", chunk.Year),
			zap.Int("rows", rows))
		e.writeAudit(service, param, chunk, rows, nil)
		return rows, nil
	}
}

// auditRecord is the per-parameter-year extraction trace left in the logs
// directory for operators.
type auditRecord struct {
	Parameter   string `json:"parameter"`
	AnalyteName string `json:"analyte_name"`
	GroupStore  string `json:"group_store"`
	Year        int    `json:"year"`
	Rows        int    `json:"rows"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

func (e *Extractor) writeAudit(service string, param core.Parameter, chunk engine.YearChunk, rows int, cause error) {
	if e.Dirs.Logs == "" {
		return
	}
	rec := auditRecord{
		Parameter:   param.Code,
		AnalyteName: param.Label,
		GroupStore:  param.GroupStore,
		Year:        chunk.Year,
		Rows:        rows,
		Status:      "ok",
	}
	if cause != nil {
		rec.Status = "failed"
		rec.Error = cause.Error()
	}
	ts := e.clock().UTC().Format("2006-01-02T15-04-05Z")
	name := fmt.Sprintf("%s_%s_%s_%s.json", service, param.Code, param.GroupStore, ts)
	if err := loaders.AtomicWriteJSON(filepath.Join(e.Dirs.Logs, name), rec); err != nil {
		e.log().Warn("writing audit record", zap.Error(err))
	}
}

// FetchMonitors pulls monitor metadata for every parameter across the date
// range, concatenates the yearly frames and deduplicates, then replaces the
// monitors CSV. Failed parameter-years are skipped; an error is returned
// only when nothing at all could be fetched.
func (e *Extractor) FetchMonitors(ctx context.Context, params []core.Parameter, chunks []engine.YearChunk) (int, error) {
	all := &core.Frame{}
	fetched := 0
	var lastErr error
	for _, param := range params {
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			url := MonitorsURL(e.Creds, param.Code, chunk.BDate, chunk.EDate, e.State)
			frame, err := e.Client.FetchRows(ctx, url)
			if err != nil {
				lastErr = err
				e.log().Warn("monitors fetch failed",
					zap.String("param", param.Code),
					zap.Int("year", chunk.Year),
					zap.Error(err))
				continue
			}
			fetched++
			all.Concat(frame)
		}
	}
	if fetched == 0 {
		if lastErr != nil {
			return 0, fmt.Errorf("no monitor data fetched: %w", lastErr)
		}
		return 0, fmt.Errorf("no monitor data fetched")
	}

	all.DropDuplicates()
	out := filepath.Join(e.Dirs.Monitors, "aqs_monitors.csv")
	if err := loaders.WriteCSV(all, out); err != nil {
		return 0, err
	}
	return all.NumRows(), nil
}

// FetchMetadata probes the API and snapshots the field lists for the data
// services into the metadata directory.
func (e *Extractor) FetchMetadata(ctx context.Context) error {
	avail, err := e.Client.FetchJSON(ctx, MetaIsAvailableURL())
	if err != nil {
		return fmt.Errorf("aqs availability check: %w", err)
	}
	if err := loaders.AtomicWriteJSON(filepath.Join(e.Dirs.Metadata, "aqs_is_available.json"), avail); err != nil {
		return err
	}

	for _, service := range []string{"sampleData", "annualData", "dailyData"} {
		fields, err := e.Client.FetchJSON(ctx, MetaFieldsByServiceURL(e.Creds, service))
		if err != nil {
			return fmt.Errorf("aqs fields for %s: %w", service, err)
		}
		name := fmt.Sprintf("aqs_fields_%s.json", service)
		if err := loaders.AtomicWriteJSON(filepath.Join(e.Dirs.Metadata, name), fields); err != nil {
			return err
		}
	}
	return nil
}
