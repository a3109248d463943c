package network

import (
	"log/slog"

	"transitnet/internal/geo"
	"transitnet/internal/routes"
	"transitnet/internal/stops"
)

// JoinMode decides which stops become nodes.
type JoinMode int

const (
	// InnerJoin keeps only route rows whose stop is in the registry.
	InnerJoin JoinMode = iota
	// OuterJoin also keeps route rows for unknown stops, as nodes without a
	// location, and adds registry stops that no route visits.
	OuterJoin
)

// Options configures Build.
type Options struct {
	Kind   Kind
	Mode   EdgeMode
	Join   JoinMode
	Logger *slog.Logger // optional, receives distance conflicts at debug level
}

// BuildReport summarizes a build.
type BuildReport struct {
	Rows               int
	UnknownStops       int
	DuplicateSequences int
	Traversals         int
	EdgesCreated       int
	EdgeMerges         int
	DistanceConflicts  int
}

// Build joins a route table to a stop table and links every pair of
// consecutive stops of each (service, direction) traversal.
//
// Segment distance is the difference of cumulative distances when both rows
// are measured, otherwise the great-circle distance between the two stops
// when both are located, otherwise zero.
func Build(registry *stops.Table, table *routes.Table, opts Options) (*Graph, BuildReport) {
	g := New(opts.Kind, opts.Mode)
	rep := BuildReport{Rows: table.Len()}

	joined := make([]routes.Entry, 0, table.Len())
	for _, e := range table.Entries {
		if _, ok := registry.Lookup(e.StopCode); !ok && opts.Join == InnerJoin {
			rep.UnknownStops++
			continue
		}
		joined = append(joined, e)
	}
	jt := &routes.Table{Entries: joined}

	keys, groups := jt.Groups()
	rep.Traversals = len(keys)
	for _, k := range keys {
		group := dedupSequences(groups[k], &rep)
		for i := 1; i < len(group); i++ {
			a, b := group[i-1], group[i]
			u, v := g.AddNode(a.StopCode), g.AddNode(b.StopCode)
			dist := segmentDistance(registry, a, b)
			res := g.MergeEdge(u, v, k.ServiceID, dist)
			switch {
			case res.Created:
				rep.EdgesCreated++
			case res.DistanceConflict:
				rep.EdgeMerges++
				rep.DistanceConflicts++
				if opts.Logger != nil {
					existing, _ := g.EdgeBetween(a.StopCode, b.StopCode, g.edgeKey(k.ServiceID))
					opts.Logger.Debug("divergent segment distance",
						"from", a.StopCode,
						"to", b.StopCode,
						"service", k.ServiceID,
						"direction", k.Direction,
						"kept_km", existing.Distance,
						"seen_km", dist,
					)
				}
			default:
				rep.EdgeMerges++
			}
		}
	}

	for _, e := range joined {
		id := g.AddNode(e.StopCode)
		g.AddServices(id, e.ServiceID)
	}
	if opts.Join == OuterJoin {
		for _, code := range registry.Codes() {
			g.AddNode(code)
		}
	}
	for code, id := range g.index {
		if p, ok := registry.Location(code); ok {
			g.SetPosition(id, p)
		}
	}

	return g, rep
}

// dedupSequences drops rows repeating a sequence number already seen in the
// traversal. The group is already sorted by sequence.
func dedupSequences(group []routes.Entry, rep *BuildReport) []routes.Entry {
	out := group[:0:0]
	for i, e := range group {
		if i > 0 && e.Sequence == group[i-1].Sequence {
			rep.DuplicateSequences++
			continue
		}
		out = append(out, e)
	}
	return out
}

func segmentDistance(registry *stops.Table, a, b routes.Entry) float64 {
	if a.Measured && b.Measured {
		return b.Distance - a.Distance
	}
	pa, ok1 := registry.Location(a.StopCode)
	pb, ok2 := registry.Location(b.StopCode)
	if ok1 && ok2 {
		return geo.DistanceKm(pa, pb)
	}
	return 0
}
