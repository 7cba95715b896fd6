// Package envista extracts sensor measurements from the Envista API:
// station inventory, per-station channel data, and standardization of the
// raw channel frames into the layout downstream transforms expect.
package envista

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/core/client"
)

// Station is one entry from the stations inventory. Monitors are the
// station's channels.
type Station struct {
	StationID int       `json:"stationId"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	Monitors  []Monitor `json:"monitors"`
}

// Monitor is one measurement channel on a station.
type Monitor struct {
	ChannelID int    `json:"channelId"`
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	Active    bool   `json:"active"`
	TypeID    int    `json:"typeId"`
}

// SiteMeta carries the monitor metadata stamped onto every measurement row.
type SiteMeta struct {
	Site       string
	MethodCode string
	Interval   string // five_min, hour, day
	Parameter  string
	Units      string
	Latitude   string
	Longitude  string
}

// Extractor fetches Envista data through the shared resilient client. The
// client carries the basic auth credentials.
type Extractor struct {
	Client  *client.Client
	BaseURL string // trailing slash included, e.g. https://envista.example/
	Log     *zap.Logger
}

func (e *Extractor) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

// StationsURL is the station inventory endpoint.
func (e *Extractor) StationsURL() string {
	return e.BaseURL + "v1/envista/stations"
}

// DataURL is the hourly channel data endpoint for one station.
func (e *Extractor) DataURL(stationID, channelID int, from, to string) string {
	return fmt.Sprintf("%sv1/envista/stations/%d/data/%d?from=%s&to=%s&timebase=60",
		e.BaseURL, stationID, channelID, from, to)
}

// FetchStations retrieves the full station inventory.
func (e *Extractor) FetchStations(ctx context.Context) ([]Station, error) {
	js, err := e.Client.FetchJSON(ctx, e.StationsURL())
	if err != nil {
		return nil, fmt.Errorf("fetch envista stations: %w", err)
	}
	raw, err := json.Marshal(js)
	if err != nil {
		return nil, err
	}
	var stations []Station
	if err := json.Unmarshal(raw, &stations); err != nil {
		return nil, fmt.Errorf("decode envista stations: %w", err)
	}
	return stations, nil
}

// StationsFrame flattens stations into one row per station-monitor pair for
// the dim_sites staging copy.
func StationsFrame(stations []Station) *core.Frame {
	f := core.NewFrame("station_id", "station_name", "station_active",
		"channel_id", "monitor_name", "monitor_alias", "monitor_active", "type_id")
	for _, s := range stations {
		for _, m := range s.Monitors {
			f.Rows = append(f.Rows, []string{
				core.FormatValue(s.StationID),
				s.Name,
				core.FormatValue(s.Active),
				core.FormatValue(m.ChannelID),
				m.Name,
				m.Alias,
				core.FormatValue(m.Active),
				core.FormatValue(m.TypeID),
			})
		}
	}
	return f
}

// FetchSiteData retrieves one channel's measurements for a date window and
// stamps the monitor metadata onto every row. An empty payload yields an
// empty frame, not an error.
func (e *Extractor) FetchSiteData(ctx context.Context, stationID, channelID int, from, to string, meta SiteMeta) (*core.Frame, error) {
	url := e.DataURL(stationID, channelID, from, to)
	js, err := e.Client.FetchJSON(ctx, url)
	if err != nil {
		return nil, err
	}
	frame := ParseResponse(js)
	if frame.Empty() {
		e.log().Debug("empty envista payload",
			zap.Int("station", stationID),
			zap.Int("channel", channelID))
		return frame, nil
	}

	frame.AddColumn("site", meta.Site)
	frame.AddColumn("method_code", meta.MethodCode)
	frame.AddColumn("by_date", meta.Interval)
	frame.AddColumn("parameter", meta.Parameter)
	frame.AddColumn("units_of_measure", meta.Units)
	frame.AddColumn("latitude", meta.Latitude)
	frame.AddColumn("longitude", meta.Longitude)
	return frame, nil
}

// ParseResponse flattens the measurement envelope: parallel data.datetime
// and data.channels arrays become one row per timestamp. Timestamps lose
// their zone offset, matching the naive local times used downstream.
func ParseResponse(js any) *core.Frame {
	root, ok := js.(map[string]any)
	if !ok {
		return &core.Frame{}
	}
	data, ok := root["data"].(map[string]any)
	if !ok {
		return &core.Frame{}
	}
	stamps, _ := data["datetime"].([]any)
	channels, _ := data["channels"].([]any)
	if len(stamps) == 0 || len(channels) == 0 {
		return &core.Frame{}
	}

	f := core.NewFrame("datetime", "channel_id", "value", "status", "valid", "description")
	for i, stamp := range stamps {
		if i >= len(channels) {
			break
		}
		ch, ok := channels[i].(map[string]any)
		if !ok {
			continue
		}
		f.Rows = append(f.Rows, []string{
			normalizeStamp(core.FormatValue(stamp)),
			core.FormatValue(ch["id"]),
			core.FormatValue(ch["value"]),
			core.FormatValue(ch["status"]),
			core.FormatValue(ch["valid"]),
			core.FormatValue(ch["description"]),
		})
	}
	return f
}

// normalizeStamp converts an RFC3339 timestamp into the zone-less
// "YYYY-MM-DD HH:MM:SS" form. Unparseable stamps pass through unchanged.
func normalizeStamp(s string) string {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02 15:04:05")
	}
	return s
}
