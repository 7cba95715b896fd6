// Package pipeline wires the extraction, transform, and staging layers into
// runnable services for the CLI.
package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/metrics"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/transform"
)

// Transformer runs the transform layer over the raw extraction outputs.
type Transformer struct {
	RawSample string
	RawAnnual string
	RawDaily  string

	TRVSampleDir string
	TRVAnnualDir string
	AQIDir       string

	Params *core.ParameterTable
	Log    *zap.Logger
}

func (t *Transformer) log() *zap.Logger {
	if t.Log != nil {
		return t.Log
	}
	return zap.NewNop()
}

// TransformResult summarizes one transform step.
type TransformResult struct {
	Step  string
	Years int
	Rows  int
}

// RunAll executes the TRV and AQI daily transforms.
func (t *Transformer) RunAll(years []int) ([]TransformResult, error) {
	var out []TransformResult
	for _, step := range []func() (TransformResult, error){
		t.TRVSample,
		t.TRVAnnual,
		func() (TransformResult, error) { return t.AQIDaily(years) },
	} {
		res, err := step()
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// TRVSample converts every raw toxics sample year into its TRV exceedance
// table at trv_sample_{year}.csv.
func (t *Transformer) TRVSample() (TransformResult, error) {
	return t.trvStep("trv_sample", t.RawSample, "aqs_sample_toxics_*.csv", t.TRVSampleDir,
		func(f *core.Frame) *core.Frame { return transform.ToxicsSampleTRV(f, t.Params) })
}

// TRVAnnual converts every raw toxics annual year into trv_annual_{year}.csv.
func (t *Transformer) TRVAnnual() (TransformResult, error) {
	return t.trvStep("trv_annual", t.RawAnnual, "aqs_annual_toxics_*.csv", t.TRVAnnualDir,
		func(f *core.Frame) *core.Frame { return transform.ToxicsAnnualTRV(f, t.Params) })
}

func (t *Transformer) trvStep(step, rawDir, pattern, outDir string, apply func(*core.Frame) *core.Frame) (TransformResult, error) {
	res := TransformResult{Step: step}
	matches, err := filepath.Glob(filepath.Join(rawDir, pattern))
	if err != nil {
		return res, err
	}
	for _, path := range matches {
		year, ok := yearFromFilename(path)
		if !ok {
			t.log().Warn("skipping file without a trailing year", zap.String("path", path))
			continue
		}
		f, err := loaders.ReadCSV(path)
		if err != nil {
			return res, fmt.Errorf("read %s: %w", path, err)
		}
		if f.Empty() {
			continue
		}
		out := apply(f)
		dest := filepath.Join(outDir, fmt.Sprintf("%s_%d.csv", step, year))
		if err := loaders.WriteCSV(out, dest); err != nil {
			return res, err
		}
		metrics.RowsWrittenTotal.WithLabelValues("transform", step).Add(float64(out.NumRows()))
		res.Years++
		res.Rows += out.NumRows()
	}
	t.log().Info("transform step complete",
		zap.String("step", step), zap.Int("years", res.Years), zap.Int("rows", res.Rows))
	return res, nil
}

// AQIDaily combines each year's raw daily files across pollutants into one
// cleaned aqi_aqs_daily_{year}.csv.
func (t *Transformer) AQIDaily(years []int) (TransformResult, error) {
	res := TransformResult{Step: "aqi_daily"}
	for _, year := range years {
		matches, err := filepath.Glob(filepath.Join(t.RawDaily, fmt.Sprintf("aqs_daily_*_%d.csv", year)))
		if err != nil {
			return res, err
		}
		var frames []*core.Frame
		for _, path := range matches {
			f, err := loaders.ReadCSV(path)
			if err != nil {
				return res, fmt.Errorf("read %s: %w", path, err)
			}
			frames = append(frames, f)
		}
		out := transform.AQIDaily(frames)
		if out.Empty() {
			t.log().Debug("no daily records for year", zap.Int("year", year))
			continue
		}
		dest := filepath.Join(t.AQIDir, fmt.Sprintf("aqi_aqs_daily_%d.csv", year))
		if err := loaders.WriteCSV(out, dest); err != nil {
			return res, err
		}
		metrics.RowsWrittenTotal.WithLabelValues("transform", "aqi_daily").Add(float64(out.NumRows()))
		res.Years++
		res.Rows += out.NumRows()
	}
	t.log().Info("transform step complete",
		zap.String("step", res.Step), zap.Int("years", res.Years), zap.Int("rows", res.Rows))
	return res, nil
}

// yearFromFilename pulls the trailing _YYYY out of a raw extraction filename.
func yearFromFilename(path string) (int, bool) {
	base := strings.TrimSuffix(filepath.Base(path), ".csv")
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return 0, false
	}
	year, err := strconv.Atoi(base[idx+1:])
	if err != nil || year < 1000 || year > 9999 {
		return 0, false
	}
	return year, true
}
