package network

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"transitnet/internal/routes"
)

// ServiceSeparator joins service lists in exported tables.
const ServiceSeparator = ","

// NodeRow is one row of the node table.
type NodeRow struct {
	ID           string   `json:"id"`
	Lon          *float64 `json:"lng"`
	Lat          *float64 `json:"lat"`
	Services     string   `json:"serv_li"`
	ServiceCount int      `json:"serv_num"`
}

// EdgeRow is one row of the edge table.
type EdgeRow struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Key          string  `json:"key,omitempty"`
	Distance     float64 `json:"dist"`
	Services     string  `json:"serv_li"`
	ServiceCount int     `json:"serv_num"`
}

// Tables flattens g into node rows sorted by id and edge rows sorted by
// (source, target, key).
func Tables(g *Graph) ([]NodeRow, []EdgeRow) {
	nodes := g.Nodes()
	nrows := make([]NodeRow, len(nodes))
	for i, n := range nodes {
		r := NodeRow{
			ID:           n.Code,
			Services:     strings.Join(n.Services, ServiceSeparator),
			ServiceCount: len(n.Services),
		}
		if n.Position != nil {
			lon, lat := n.Position.Lon, n.Position.Lat
			r.Lon, r.Lat = &lon, &lat
		}
		nrows[i] = r
	}

	edges := g.Edges()
	erows := make([]EdgeRow, len(edges))
	for i, e := range edges {
		erows[i] = EdgeRow{
			Source:       e.Source,
			Target:       e.Target,
			Key:          e.Key,
			Distance:     e.Distance,
			Services:     strings.Join(e.Services, ServiceSeparator),
			ServiceCount: len(e.Services),
		}
	}
	return nrows, erows
}

// SortEdgeRows restores export order on rows read back from storage.
func SortEdgeRows(rows []EdgeRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return routes.NaturalLess(a.Key, b.Key)
	})
}

var (
	nodeHeader = []string{"Id", "lng", "lat", "serv_li", "serv_num"}
	edgeHeader = []string{"Source", "Target", "dist", "serv_li", "serv_num"}
)

// WriteNodesCSV writes the node table with Gephi-compatible headers.
// Unknown coordinates are written as empty cells.
func WriteNodesCSV(w io.Writer, rows []NodeRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(nodeHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.ID, formatOptional(r.Lon), formatOptional(r.Lat), r.Services, strconv.Itoa(r.ServiceCount)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write node %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEdgesCSV writes the edge table with Gephi-compatible headers.
// Multi-edge tables carry an extra key column.
func WriteEdgesCSV(w io.Writer, rows []EdgeRow, mode EdgeMode) error {
	cw := csv.NewWriter(w)
	header := edgeHeader
	if mode == MultiEdge {
		header = append(append([]string(nil), edgeHeader...), "key")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.Source, r.Target, formatFloat(r.Distance), r.Services, strconv.Itoa(r.ServiceCount)}
		if mode == MultiEdge {
			rec = append(rec, r.Key)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write edge %s-%s: %w", r.Source, r.Target, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// GeoJSON renders located nodes as points and edges between located nodes
// as two-point line strings.
func GeoJSON(g *Graph) *geojson.FeatureCollection {
	return TablesGeoJSON(Tables(g))
}

// TablesGeoJSON renders exported tables the same way GeoJSON renders a graph.
func TablesGeoJSON(nodes []NodeRow, edges []EdgeRow) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	located := make(map[string]orb.Point)
	for _, n := range nodes {
		if n.Lon == nil || n.Lat == nil {
			continue
		}
		pt := orb.Point{*n.Lon, *n.Lat}
		located[n.ID] = pt
		f := geojson.NewFeature(pt)
		f.Properties["id"] = n.ID
		f.Properties["serv_li"] = n.Services
		f.Properties["serv_num"] = n.ServiceCount
		fc.Append(f)
	}
	for _, e := range edges {
		a, ok1 := located[e.Source]
		b, ok2 := located[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		f := geojson.NewFeature(orb.LineString{a, b})
		f.Properties["source"] = e.Source
		f.Properties["target"] = e.Target
		f.Properties["dist"] = e.Distance
		f.Properties["serv_li"] = e.Services
		f.Properties["serv_num"] = e.ServiceCount
		if e.Key != "" {
			f.Properties["key"] = e.Key
		}
		fc.Append(f)
	}
	return fc
}

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
