// Package gtfs converts a GTFS static feed into the raw stop and route
// tables the network builder consumes.
package gtfs

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	static "github.com/jamespfennell/gtfs"

	"transitnet/internal/geo"
	"transitnet/internal/routes"
	"transitnet/internal/stops"
)

// Tables are the raw tables extracted from a feed.
type Tables struct {
	Stops  []stops.RawRecord
	Routes []routes.RawBusRow
}

// ParseZip parses the GTFS archive at path.
func ParseZip(path string, logger *slog.Logger) (*Tables, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	data, err := static.ParseStatic(b, static.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	t := FromStatic(data)
	logger.Info("GTFS feed parsed",
		"stops", len(t.Stops),
		"route_rows", len(t.Routes),
		"trips", len(data.Trips),
	)
	return t, nil
}

// FromStatic flattens a parsed feed. Every distinct stop pattern of a route
// becomes one direction of that route, numbered in trip id order. Distances
// are cumulative great-circle kilometres when every stop of the pattern is
// located, and left empty otherwise.
func FromStatic(data *static.Static) *Tables {
	t := &Tables{Stops: make([]stops.RawRecord, 0, len(data.Stops))}
	for _, s := range data.Stops {
		rec := stops.RawRecord{Code: s.Id, Name: s.Name}
		if s.Latitude != nil && s.Longitude != nil {
			rec.X = strconv.FormatFloat(*s.Longitude, 'f', -1, 64)
			rec.Y = strconv.FormatFloat(*s.Latitude, 'f', -1, 64)
		}
		t.Stops = append(t.Stops, rec)
	}

	trips := make([]*static.ScheduledTrip, 0, len(data.Trips))
	for i := range data.Trips {
		if data.Trips[i].Route != nil && len(data.Trips[i].StopTimes) > 0 {
			trips = append(trips, &data.Trips[i])
		}
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].ID < trips[j].ID })

	seen := make(map[string]map[string]bool) // service -> pattern key
	var services []string
	patterns := make(map[string][][]*static.Stop)
	for _, trip := range trips {
		service := serviceName(trip.Route)
		pattern := stopPattern(trip)
		key := patternKey(pattern)
		if seen[service] == nil {
			seen[service] = make(map[string]bool)
			services = append(services, service)
		}
		if seen[service][key] {
			continue
		}
		seen[service][key] = true
		patterns[service] = append(patterns[service], pattern)
	}

	for _, service := range services {
		for dir, pattern := range patterns[service] {
			dists := cumulativeKm(pattern)
			for seq, stop := range pattern {
				row := routes.RawBusRow{
					ServiceNo:    service,
					Direction:    strconv.Itoa(dir + 1),
					StopSequence: strconv.Itoa(seq + 1),
					BusStopCode:  stop.Id,
				}
				if dists != nil {
					row.Distance = strconv.FormatFloat(dists[seq], 'f', -1, 64)
				}
				t.Routes = append(t.Routes, row)
			}
		}
	}
	return t
}

func serviceName(r *static.Route) string {
	if r.ShortName != "" {
		return r.ShortName
	}
	return r.Id
}

func stopPattern(trip *static.ScheduledTrip) []*static.Stop {
	sts := make([]static.ScheduledStopTime, len(trip.StopTimes))
	copy(sts, trip.StopTimes)
	sort.SliceStable(sts, func(i, j int) bool { return sts[i].StopSequence < sts[j].StopSequence })

	pattern := make([]*static.Stop, 0, len(sts))
	for _, st := range sts {
		if st.Stop != nil {
			pattern = append(pattern, st.Stop)
		}
	}
	return pattern
}

func patternKey(pattern []*static.Stop) string {
	ids := make([]string, len(pattern))
	for i, s := range pattern {
		ids[i] = s.Id
	}
	return strings.Join(ids, "\x00")
}

func cumulativeKm(pattern []*static.Stop) []float64 {
	out := make([]float64, len(pattern))
	for i, s := range pattern {
		if s.Latitude == nil || s.Longitude == nil {
			return nil
		}
		if i == 0 {
			continue
		}
		prev := pattern[i-1]
		out[i] = out[i-1] + geo.DistanceKm(
			geo.Point{Lon: *prev.Longitude, Lat: *prev.Latitude},
			geo.Point{Lon: *s.Longitude, Lat: *s.Latitude},
		)
	}
	return out
}
