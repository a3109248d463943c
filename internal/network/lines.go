package network

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"

	"transitnet/internal/routes"
	"transitnet/internal/stops"
)

// RouteLine is the path of one (service, direction) traversal through its
// located stops.
type RouteLine struct {
	ServiceID string
	Direction int
	Label     string
	Path      orb.LineString
	Polyline  string // Google encoded polyline, lat/lng order
}

// RouteLines draws one line per traversal. Stops without a location are
// skipped; traversals with fewer than two located stops produce no line.
func RouteLines(registry *stops.Table, table *routes.Table) []RouteLine {
	keys, groups := table.Groups()
	var out []RouteLine
	for _, k := range keys {
		group := groups[k]
		var path orb.LineString
		var coords [][]float64
		for _, e := range group {
			p, ok := registry.Location(e.StopCode)
			if !ok {
				continue
			}
			path = append(path, orb.Point{p.Lon, p.Lat})
			coords = append(coords, []float64{p.Lat, p.Lon})
		}
		if len(path) < 2 {
			continue
		}
		out = append(out, RouteLine{
			ServiceID: k.ServiceID,
			Direction: k.Direction,
			Label:     group[0].Label,
			Path:      path,
			Polyline:  string(polyline.EncodeCoords(coords)),
		})
	}
	return out
}

// RouteLinesGeoJSON wraps route lines as a feature collection.
func RouteLinesGeoJSON(lines []RouteLine) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range lines {
		f := geojson.NewFeature(l.Path)
		f.Properties["service"] = l.ServiceID
		f.Properties["direction"] = l.Direction
		f.Properties["label"] = l.Label
		f.Properties["polyline"] = l.Polyline
		fc.Append(f)
	}
	return fc
}
