package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/envista"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/metrics"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/transform"
)

// EnvistaTarget names one station channel to pull measurements from, with
// the metadata stamped onto its rows.
type EnvistaTarget struct {
	StationID int
	ChannelID int
	Meta      envista.SiteMeta
}

// EnvistaRunner drives the Envista service: station inventory plus
// standardized measurement extraction.
type EnvistaRunner struct {
	Extractor  *envista.Extractor
	Qualifiers map[string]string

	MonitorsDir     string
	MeasurementsDir string

	Log *zap.Logger
}

func (r *EnvistaRunner) log() *zap.Logger {
	if r.Log != nil {
		return r.Log
	}
	return zap.NewNop()
}

// Stations writes the station-monitor inventory to
// envista_stations_metadata.csv and returns the row count.
func (r *EnvistaRunner) Stations(ctx context.Context) (int, error) {
	stations, err := r.Extractor.FetchStations(ctx)
	if err != nil {
		return 0, err
	}
	f := envista.StationsFrame(stations)
	if f.Empty() {
		return 0, fmt.Errorf("envista returned no station monitors")
	}
	path := filepath.Join(r.MonitorsDir, "envista_stations_metadata.csv")
	if err := loaders.WriteCSV(f, path); err != nil {
		return 0, err
	}
	metrics.RowsWrittenTotal.WithLabelValues("envista", "monitors").Add(float64(f.NumRows()))
	r.log().Info("wrote envista station inventory", zap.Int("rows", f.NumRows()))
	return f.NumRows(), nil
}

// Measurements pulls one date window for every target, standardizes the
// rows, and appends them per site. Failed targets are logged and skipped;
// the error reports only a whole-run failure.
func (r *EnvistaRunner) Measurements(ctx context.Context, targets []EnvistaTarget, from, to string) (int, error) {
	total := 0
	fetched := 0
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		f, err := r.Extractor.FetchSiteData(ctx, target.StationID, target.ChannelID, from, to, target.Meta)
		if err != nil {
			r.log().Warn("envista fetch failed",
				zap.Int("station", target.StationID),
				zap.Int("channel", target.ChannelID),
				zap.Error(err))
			continue
		}
		fetched++
		if f.Empty() {
			continue
		}
		out := transform.StandardizeEnvista(f, r.Qualifiers)
		name := fmt.Sprintf("envista_%s_%d.csv",
			core.SanitizeFilename(target.Meta.Site), target.ChannelID)
		if err := loaders.AppendCSV(out, filepath.Join(r.MeasurementsDir, name)); err != nil {
			return total, err
		}
		metrics.RowsWrittenTotal.WithLabelValues("envista", "measurements").Add(float64(out.NumRows()))
		total += out.NumRows()
	}
	if fetched == 0 && len(targets) > 0 {
		return total, fmt.Errorf("all %d envista targets failed", len(targets))
	}
	return total, nil
}
