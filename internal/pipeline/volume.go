package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"transitnet/internal/storage"
	"transitnet/internal/volume"
)

// Volume output file names, written next to the network files.
const (
	StopVolumesFile    = "stop_volumes.csv"
	StopVolumesGeoJSON = "stop_volumes.geojson"
	ODTripsFile        = "od_trips.csv"
	ODTripsGeoJSON     = "od_trips.geojson"
)

// VolumeInputs are the raw bus passenger volume tables.
type VolumeInputs struct {
	Stops []volume.RawStopRow
	OD    []volume.RawODRow
}

// Empty reports whether neither table holds rows.
func (in VolumeInputs) Empty() bool {
	return len(in.Stops) == 0 && len(in.OD) == 0
}

// LoadVolumes reads the stored bus volume tables.
func LoadVolumes(ctx context.Context, db *storage.DB) (VolumeInputs, error) {
	var (
		in  VolumeInputs
		err error
	)
	if in.Stops, err = db.BusStopVolumes(ctx); err != nil {
		return in, err
	}
	if in.OD, err = db.BusODTrips(ctx); err != nil {
		return in, err
	}
	return in, nil
}

// VolumeReport summarizes one volume run.
type VolumeReport struct {
	Stops     volume.Report `json:"stops"`
	OD        volume.Report `json:"od"`
	Located   int           `json:"located"`
	Unlocated int           `json:"unlocated"`
	ODDropped int           `json:"od_dropped"`
}

// VolumeResult holds the pivots and their joins to stop positions.
type VolumeResult struct {
	Stops   *volume.StopTable
	Located []volume.LocatedStop
	OD      *volume.ODTable
	Lines   []volume.ODLine
	Report  VolumeReport
}

// RunVolumes pivots in and joins it to the stop positions of loc.
func RunVolumes(in VolumeInputs, loc volume.Locator, mode volume.JoinMode) *VolumeResult {
	vr := &VolumeResult{}
	vr.Stops, vr.Report.Stops = volume.Stops(in.Stops)
	vr.OD, vr.Report.OD = volume.OD(in.OD)
	vr.Located = volume.Locate(vr.Stops, loc, mode)
	for i := range vr.Located {
		if vr.Located[i].Position != nil {
			vr.Report.Located++
		} else {
			vr.Report.Unlocated++
		}
	}
	vr.Lines, vr.Report.ODDropped = volume.Lines(vr.OD, loc)
	return vr
}

// WriteVolumeFiles exports vr into dir/<kind>/. A table with no rows is
// skipped.
func WriteVolumeFiles(dir, kind string, vr *VolumeResult, logger *slog.Logger) ([]string, error) {
	out := filepath.Join(dir, kind)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var writers []namedWriter
	if len(vr.Located) > 0 {
		writers = append(writers,
			namedWriter{StopVolumesFile, func(w io.Writer) error {
				return volume.WriteStopsCSV(w, vr.Stops.Hours, vr.Located)
			}},
			namedWriter{StopVolumesGeoJSON, func(w io.Writer) error {
				return json.NewEncoder(w).Encode(volume.StopsGeoJSON(vr.Located))
			}})
	}
	if len(vr.OD.Pairs) > 0 {
		writers = append(writers,
			namedWriter{ODTripsFile, func(w io.Writer) error { return volume.WriteODCSV(w, vr.OD) }},
			namedWriter{ODTripsGeoJSON, func(w io.Writer) error {
				return json.NewEncoder(w).Encode(volume.LinesGeoJSON(vr.Lines))
			}})
	}

	paths, err := writeAll(out, writers, logger)
	if err != nil {
		return paths, err
	}
	logger.Info("volume files written", "kind", kind, "dir", out, "files", len(paths),
		"located", vr.Report.Located, "unlocated", vr.Report.Unlocated, "od_dropped", vr.Report.ODDropped)
	return paths, nil
}
