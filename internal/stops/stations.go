package stops

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"transitnet/internal/geo"
)

var stationSuffixes = []string{" MRT STATION", " LRT STATION"}

// CanonicalName strips rail station suffixes and title-cases a name so that
// station and route sources agree on spelling.
func CanonicalName(name string) string {
	n := strings.Join(strings.Fields(name), " ")
	upper := strings.ToUpper(n)
	for _, suf := range stationSuffixes {
		if strings.HasSuffix(upper, suf) {
			n = n[:len(n)-len(suf)]
			break
		}
	}
	return cases.Title(language.English).String(strings.ToLower(n))
}

// NormalizeStations dissolves platform-level station rows into one station
// per canonical name, located at the centroid of its platforms. Stations get
// sequential zero-padded codes in name order, starting at 00001.
func NormalizeStations(crs geo.CRS, records []RawRecord) (*Table, Report, error) {
	if _, err := geo.ParseCRS(string(crs)); err != nil {
		return nil, Report{}, err
	}

	rep := Report{Input: len(records)}
	groups := make(map[string][]Coord)
	for _, r := range records {
		name := CanonicalName(r.Name)
		if name == "" {
			rep.MissingCode++
			continue
		}
		pos, ok := parseCoord(crs, r.X, r.Y)
		if !ok {
			rep.BadGeometry++
			continue
		}
		if _, seen := groups[name]; seen {
			rep.Duplicates++
		}
		if pos != nil {
			groups[name] = append(groups[name], *pos)
		} else if _, seen := groups[name]; !seen {
			groups[name] = nil
		}
	}

	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]Stop, 0, len(names))
	for i, n := range names {
		s := Stop{Code: fmt.Sprintf("%05d", i+1), Name: n}
		if c, ok := centroid(groups[n]); ok {
			s.Position = &c
		}
		out = append(out, s)
	}
	rep.Kept = len(out)

	return newTable(crs, StationColumns, out), rep, nil
}

func centroid(cs []Coord) (Coord, bool) {
	pts := make([]geo.Point, len(cs))
	for i, c := range cs {
		pts[i] = geo.Point{Lon: c.X, Lat: c.Y}
	}
	p, ok := geo.Centroid(pts)
	return Coord{X: p.Lon, Y: p.Lat}, ok
}
