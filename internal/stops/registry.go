// Package stops builds the canonical stop and station tables that every
// network is keyed on.
package stops

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"transitnet/internal/geo"
)

// Column names of a stop table schema.
const (
	ColCode     = "code"
	ColName     = "name"
	ColRoad     = "road"
	ColGeometry = "geometry"
)

// Default schemas of the stop sources. LocationColumns is the schema of the
// static bus stop dataset, which carries no road name.
var (
	BusColumns      = []string{ColCode, ColName, ColRoad, ColGeometry}
	LocationColumns = []string{ColCode, ColName, ColGeometry}
	StationColumns  = []string{ColCode, ColName, ColGeometry}
)

// Errors returned for configuration problems. Data problems never error;
// they are counted in a Report instead.
var (
	ErrUnknownCRS     = geo.ErrUnknownCRS
	ErrSchemaMismatch = errors.New("stop table schema mismatch")
)

// Coord is a position expressed in the owning table's CRS.
type Coord struct {
	X float64
	Y float64
}

// Stop is one canonical stop or station record.
type Stop struct {
	Code     string
	Name     string
	Road     string
	Position *Coord // nil when the location is unknown
}

// RawRecord is an unvalidated row as read from a location source.
// X and Y hold the geometry in the source CRS; both empty means unknown.
type RawRecord struct {
	Code string
	Name string
	Road string
	X    string
	Y    string
}

// Report counts rows dropped while normalizing.
type Report struct {
	Input       int
	Kept        int
	MissingCode int
	BadGeometry int
	Duplicates  int
}

// Table is a deduplicated stop table sorted by code.
type Table struct {
	CRS     geo.CRS
	Columns []string
	Stops   []Stop

	index  map[string]int
	byName map[string]string
}

// Normalize parses raw records in the given CRS into a deduplicated table.
// Rows without a code or with an unparsable geometry are dropped. When codes
// collide the row that sorts first on its full content wins, so the result
// does not depend on input order.
func Normalize(crs geo.CRS, columns []string, records []RawRecord) (*Table, Report, error) {
	if _, err := geo.ParseCRS(string(crs)); err != nil {
		return nil, Report{}, err
	}
	if !hasColumn(columns, ColCode) {
		return nil, Report{}, fmt.Errorf("%w: schema has no %q column", ErrSchemaMismatch, ColCode)
	}

	rep := Report{Input: len(records)}
	parsed := make([]Stop, 0, len(records))
	for _, r := range records {
		code := strings.TrimSpace(r.Code)
		if code == "" {
			rep.MissingCode++
			continue
		}
		pos, ok := parseCoord(crs, r.X, r.Y)
		if !ok {
			rep.BadGeometry++
			continue
		}
		s := Stop{Code: code, Position: pos}
		if hasColumn(columns, ColName) {
			s.Name = strings.TrimSpace(r.Name)
		}
		if hasColumn(columns, ColRoad) {
			s.Road = strings.TrimSpace(r.Road)
		}
		parsed = append(parsed, s)
	}

	sort.SliceStable(parsed, func(i, j int) bool { return lessStop(parsed[i], parsed[j]) })
	out := make([]Stop, 0, len(parsed))
	for _, s := range parsed {
		if n := len(out); n > 0 && out[n-1].Code == s.Code {
			rep.Duplicates++
			continue
		}
		out = append(out, s)
	}
	rep.Kept = len(out)

	return newTable(crs, columns, out), rep, nil
}

// Merge combines two tables. Secondary rows are reprojected into the primary
// CRS and restricted to the primary schema; on code collisions the primary
// row is kept.
func Merge(primary, secondary *Table) (*Table, error) {
	if _, err := geo.ParseCRS(string(primary.CRS)); err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}
	if _, err := geo.ParseCRS(string(secondary.CRS)); err != nil {
		return nil, fmt.Errorf("secondary: %w", err)
	}
	for _, col := range primary.Columns {
		if !hasColumn(secondary.Columns, col) {
			return nil, fmt.Errorf("%w: secondary lacks column %q", ErrSchemaMismatch, col)
		}
	}

	out := make([]Stop, 0, len(primary.Stops)+len(secondary.Stops))
	seen := make(map[string]bool, len(primary.Stops))
	for _, s := range primary.Stops {
		seen[s.Code] = true
		out = append(out, s.clone())
	}
	for _, s := range secondary.Stops {
		if seen[s.Code] {
			continue
		}
		seen[s.Code] = true
		r := Stop{Code: s.Code}
		if hasColumn(primary.Columns, ColName) {
			r.Name = s.Name
		}
		if hasColumn(primary.Columns, ColRoad) {
			r.Road = s.Road
		}
		if s.Position != nil && hasColumn(primary.Columns, ColGeometry) {
			x, y, err := geo.Reproject(secondary.CRS, primary.CRS, s.Position.X, s.Position.Y)
			if err != nil {
				return nil, fmt.Errorf("reproject %s: %w", s.Code, err)
			}
			r.Position = &Coord{X: x, Y: y}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })

	cols := make([]string, len(primary.Columns))
	copy(cols, primary.Columns)
	return newTable(primary.CRS, cols, out), nil
}

// Len returns the number of stops.
func (t *Table) Len() int { return len(t.Stops) }

// Lookup returns a copy of the stop with the given code.
func (t *Table) Lookup(code string) (Stop, bool) {
	i, ok := t.index[code]
	if !ok {
		return Stop{}, false
	}
	return t.Stops[i].clone(), true
}

// Location returns the WGS84 position of a stop, if known.
func (t *Table) Location(code string) (geo.Point, bool) {
	i, ok := t.index[code]
	if !ok || t.Stops[i].Position == nil {
		return geo.Point{}, false
	}
	p, err := geo.ToWGS84(t.CRS, t.Stops[i].Position.X, t.Stops[i].Position.Y)
	if err != nil {
		return geo.Point{}, false
	}
	return p, true
}

// CodeByName resolves a canonical name to a code. The first code in sort
// order wins when names repeat.
func (t *Table) CodeByName(name string) (string, bool) {
	code, ok := t.byName[CanonicalName(name)]
	return code, ok
}

// Codes returns every stop code in order.
func (t *Table) Codes() []string {
	out := make([]string, len(t.Stops))
	for i, s := range t.Stops {
		out[i] = s.Code
	}
	return out
}

func newTable(crs geo.CRS, columns []string, stops []Stop) *Table {
	t := &Table{
		CRS:     crs,
		Columns: columns,
		Stops:   stops,
		index:   make(map[string]int, len(stops)),
		byName:  make(map[string]string, len(stops)),
	}
	for i, s := range stops {
		t.index[s.Code] = i
		if s.Name == "" {
			continue
		}
		key := CanonicalName(s.Name)
		if _, ok := t.byName[key]; !ok {
			t.byName[key] = s.Code
		}
	}
	return t
}

// Records converts a table back into raw records, for re-normalizing.
func (t *Table) Records() []RawRecord {
	out := make([]RawRecord, len(t.Stops))
	for i, s := range t.Stops {
		r := RawRecord{Code: s.Code, Name: s.Name, Road: s.Road}
		if s.Position != nil {
			r.X = strconv.FormatFloat(s.Position.X, 'f', -1, 64)
			r.Y = strconv.FormatFloat(s.Position.Y, 'f', -1, 64)
		}
		out[i] = r
	}
	return out
}

func (s Stop) clone() Stop {
	if s.Position != nil {
		p := *s.Position
		s.Position = &p
	}
	return s
}

// parseCoord returns nil, true for an unknown location and false for a
// geometry that cannot be parsed. A WGS84 origin is how feeds mark missing
// coordinates, so it counts as unknown.
func parseCoord(crs geo.CRS, xs, ys string) (*Coord, bool) {
	xs, ys = strings.TrimSpace(xs), strings.TrimSpace(ys)
	if xs == "" && ys == "" {
		return nil, true
	}
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return nil, false
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return nil, false
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return nil, false
	}
	if crs == geo.WGS84 {
		if x == 0 && y == 0 {
			return nil, true
		}
		if x < -180 || x > 180 || y < -90 || y > 90 {
			return nil, false
		}
	}
	return &Coord{X: x, Y: y}, true
}

func lessStop(a, b Stop) bool {
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Road != b.Road {
		return a.Road < b.Road
	}
	switch {
	case a.Position == nil:
		return false
	case b.Position == nil:
		return true
	case a.Position.X != b.Position.X:
		return a.Position.X < b.Position.X
	}
	return a.Position.Y < b.Position.Y
}

func hasColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
