package volume

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"transitnet/internal/geo"
)

// ErrUnknownJoin is returned by ParseJoin for an unsupported join name.
var ErrUnknownJoin = errors.New("unknown join mode")

// JoinMode selects which stops survive joining volumes to locations.
type JoinMode int

const (
	// LeftJoin keeps every stop with volumes, located or not.
	LeftJoin JoinMode = iota
	// InnerJoin keeps stops with both volumes and a location.
	InnerJoin
	// OuterJoin also keeps located stops without volumes.
	OuterJoin
)

var joinNames = map[string]JoinMode{"left": LeftJoin, "inner": InnerJoin, "outer": OuterJoin}

// ParseJoin parses "left", "inner" or "outer".
func ParseJoin(s string) (JoinMode, error) {
	m, ok := joinNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownJoin, s)
	}
	return m, nil
}

// Locator resolves stop codes to WGS84 positions. *stops.Table satisfies it.
type Locator interface {
	Location(code string) (geo.Point, bool)
	Codes() []string
}

// LocatedStop is a stop volume with its position, if known.
type LocatedStop struct {
	StopVolume
	Position *geo.Point
}

// Locate joins stop volumes to positions. The result is sorted by code.
func Locate(t *StopTable, loc Locator, mode JoinMode) []LocatedStop {
	out := make([]LocatedStop, 0, len(t.Stops))
	seen := make(map[string]bool, len(t.Stops))
	for _, v := range t.Stops {
		seen[v.Code] = true
		ls := LocatedStop{StopVolume: v}
		if p, ok := loc.Location(v.Code); ok {
			ls.Position = &p
		} else if mode == InnerJoin {
			continue
		}
		out = append(out, ls)
	}
	if mode == OuterJoin {
		for _, code := range loc.Codes() {
			if seen[code] {
				continue
			}
			if p, ok := loc.Location(code); ok {
				out = append(out, LocatedStop{StopVolume: StopVolume{Code: code}, Position: &p})
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	}
	return out
}

// ODLine is an origin-destination pair drawn between its two stops.
type ODLine struct {
	ODPair
	From geo.Point
	To   geo.Point
}

// Lines draws every pair whose two stops are located. The second result
// counts pairs dropped for a missing location.
func Lines(t *ODTable, loc Locator) ([]ODLine, int) {
	out := make([]ODLine, 0, len(t.Pairs))
	dropped := 0
	for _, p := range t.Pairs {
		from, ok1 := loc.Location(p.Origin)
		to, ok2 := loc.Location(p.Destination)
		if !ok1 || !ok2 {
			dropped++
			continue
		}
		out = append(out, ODLine{ODPair: p, From: from, To: to})
	}
	return out, dropped
}
