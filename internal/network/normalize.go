package network

import "sort"

// NormalizeOptions configures Normalize.
type NormalizeOptions struct {
	// Splice replaces nodes without a location by direct edges between
	// their neighbors.
	Splice bool
}

// NormalizeReport summarizes a normalization pass.
type NormalizeReport struct {
	SelfLoops          int
	Isolated           int
	Unlocated          int
	DeadEnds           int
	Bridges            int
	EmptyIntersections int
}

// Normalize cleans g in place: it removes self-loops, then isolated nodes,
// then optionally splices out nodes without a location. Nodes left isolated
// by splicing are removed too, so every remaining node has an edge.
func Normalize(g *Graph, opts NormalizeOptions) NormalizeReport {
	var rep NormalizeReport
	rep.SelfLoops = g.removeSelfLoops()
	rep.Isolated = g.removeIsolated()
	if !opts.Splice {
		return rep
	}

	unlocated := g.unlocatedNodes()
	rep.Unlocated = len(unlocated)
	for _, x := range unlocated {
		g.splice(x, &rep)
	}
	for _, x := range unlocated {
		g.RemoveNode(x)
	}
	rep.Isolated += g.removeIsolated()
	return rep
}

func (g *Graph) removeSelfLoops() int {
	n := 0
	for id := range g.nodes {
		if g.nodes[id].alive {
			n += g.removePair(pair{NodeID(id), NodeID(id)})
		}
	}
	return n
}

func (g *Graph) removeIsolated() int {
	n := 0
	for id := range g.nodes {
		nid := NodeID(id)
		if g.nodes[id].alive && len(g.out[nid]) == 0 && len(g.in[nid]) == 0 {
			g.RemoveNode(nid)
			n++
		}
	}
	return n
}

func (g *Graph) unlocatedNodes() []NodeID {
	var out []NodeID
	for id, n := range g.nodes {
		if n.alive && n.pos == nil {
			out = append(out, NodeID(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return g.nodes[out[i]].code < g.nodes[out[j]].code })
	return out
}

// splice bridges every predecessor of x to every successor of x. A bridge
// carries the services common to both legs and the sum of their distances;
// when no service is common no bridge is made.
func (g *Graph) splice(x NodeID, rep *NormalizeReport) {
	if g.kind == Undirected {
		nbrs := g.Neighbors(x)
		if len(nbrs) < 2 {
			rep.DeadEnds++
			return
		}
		for i, p := range nbrs {
			for _, s := range nbrs[i+1:] {
				g.bridge(p, x, s, rep)
			}
		}
		return
	}

	preds, succs := g.Predecessors(x), g.Successors(x)
	if len(preds) == 0 || len(succs) == 0 {
		rep.DeadEnds++
		return
	}
	for _, p := range preds {
		for _, s := range succs {
			if p != s {
				g.bridge(p, x, s, rep)
			}
		}
	}
}

func (g *Graph) bridge(p, x, s NodeID, rep *NormalizeReport) {
	in := g.edges[g.pairOf(p, x)]
	out := g.edges[g.pairOf(x, s)]

	keys := make([]string, 0, len(in))
	for k := range in {
		if _, ok := out[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	made := false
	for _, k := range keys {
		a, b := in[k], out[k]
		common := a.services.Intersect(b.services)
		if common.Cardinality() == 0 {
			continue
		}
		g.mergeEdge(p, s, k, common, a.distance+b.distance)
		made = true
	}
	if made {
		rep.Bridges++
	} else {
		rep.EmptyIntersections++
	}
}
