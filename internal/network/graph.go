// Package network builds, cleans and exports transit networks: graphs whose
// nodes are stops and whose edges join stops that follow each other on some
// service.
package network

import (
	"errors"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"transitnet/internal/geo"
	"transitnet/internal/routes"
)

// Kind selects directed (bus) or undirected (rail) edges.
type Kind int

const (
	Directed Kind = iota
	Undirected
)

// ErrUnknownKind is returned by ParseKind for names other than bus and rail.
var ErrUnknownKind = errors.New("unknown network kind")

// ParseKind maps a network name to its edge kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "bus":
		return Directed, nil
	case "rail":
		return Undirected, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

func (k Kind) String() string {
	if k == Undirected {
		return "undirected"
	}
	return "directed"
}

// EdgeMode selects how services sharing a stop pair are stored.
type EdgeMode int

const (
	// SingleEdge keeps one edge per stop pair carrying every service.
	SingleEdge EdgeMode = iota
	// MultiEdge keeps one edge per (stop pair, service).
	MultiEdge
)

func (m EdgeMode) String() string {
	if m == MultiEdge {
		return "multi"
	}
	return "single"
}

// NodeID is a compact handle for a node, valid for the graph that issued it.
type NodeID int32

// Node is a read-only copy of a node record.
type Node struct {
	ID       NodeID
	Code     string
	Position *geo.Point
	Services []string
}

// Edge is a read-only copy of an edge record. For undirected graphs Source
// is the lexically smaller code.
type Edge struct {
	Source   string
	Target   string
	Key      string // service for MultiEdge graphs, empty otherwise
	Distance float64
	Services []string
}

type pair struct{ u, v NodeID }

type nodeRecord struct {
	code     string
	pos      *geo.Point
	services mapset.Set[string]
	alive    bool
}

type edgeRecord struct {
	distance float64
	services mapset.Set[string]
}

// Graph owns every node and edge record. Callers read through copies and
// change it only through its methods.
type Graph struct {
	kind  Kind
	mode  EdgeMode
	nodes []nodeRecord
	index map[string]NodeID
	edges map[pair]map[string]*edgeRecord
	out   []map[NodeID]struct{}
	in    []map[NodeID]struct{}
}

// New returns an empty graph.
func New(kind Kind, mode EdgeMode) *Graph {
	return &Graph{
		kind:  kind,
		mode:  mode,
		index: make(map[string]NodeID),
		edges: make(map[pair]map[string]*edgeRecord),
	}
}

// Kind reports whether edges are directed.
func (g *Graph) Kind() Kind { return g.kind }

// Mode reports the edge storage strategy.
func (g *Graph) Mode() EdgeMode { return g.mode }

// AddNode returns the handle for code, creating the node if needed.
func (g *Graph) AddNode(code string) NodeID {
	if id, ok := g.index[code]; ok {
		return id
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, nodeRecord{
		code:     code,
		services: mapset.NewThreadUnsafeSet[string](),
		alive:    true,
	})
	g.out = append(g.out, make(map[NodeID]struct{}))
	g.in = append(g.in, make(map[NodeID]struct{}))
	g.index[code] = id
	return id
}

// Lookup returns the handle of a live node.
func (g *Graph) Lookup(code string) (NodeID, bool) {
	id, ok := g.index[code]
	return id, ok
}

// SetPosition records a node's location.
func (g *Graph) SetPosition(id NodeID, p geo.Point) {
	g.nodes[id].pos = &p
}

// AddServices attaches services to a node.
func (g *Graph) AddServices(id NodeID, services ...string) {
	for _, s := range services {
		g.nodes[id].services.Add(s)
	}
}

// MergeResult describes what MergeEdge did.
type MergeResult struct {
	Created          bool
	DistanceConflict bool // an existing edge kept a different distance
}

const distanceTolerance = 1e-6

// MergeEdge adds service to the edge u-v, creating it with distance when it
// does not exist. An existing edge keeps its first-seen distance.
func (g *Graph) MergeEdge(u, v NodeID, service string, distance float64) MergeResult {
	return g.mergeEdge(u, v, g.edgeKey(service), mapset.NewThreadUnsafeSet(service), distance)
}

func (g *Graph) mergeEdge(u, v NodeID, key string, services mapset.Set[string], distance float64) MergeResult {
	p := g.pairOf(u, v)
	byKey, ok := g.edges[p]
	if !ok {
		byKey = make(map[string]*edgeRecord)
		g.edges[p] = byKey
	}
	if e, ok := byKey[key]; ok {
		e.services = e.services.Union(services)
		return MergeResult{DistanceConflict: !closeEnough(e.distance, distance)}
	}
	byKey[key] = &edgeRecord{distance: distance, services: services.Clone()}
	g.link(p)
	return MergeResult{Created: true}
}

func (g *Graph) edgeKey(service string) string {
	if g.mode == MultiEdge {
		return service
	}
	return ""
}

func (g *Graph) pairOf(u, v NodeID) pair {
	if g.kind == Undirected && v < u {
		u, v = v, u
	}
	return pair{u, v}
}

func (g *Graph) link(p pair) {
	g.out[p.u][p.v] = struct{}{}
	g.in[p.v][p.u] = struct{}{}
	if g.kind == Undirected {
		g.out[p.v][p.u] = struct{}{}
		g.in[p.u][p.v] = struct{}{}
	}
}

func (g *Graph) unlink(p pair) {
	delete(g.out[p.u], p.v)
	delete(g.in[p.v], p.u)
	if g.kind == Undirected {
		delete(g.out[p.v], p.u)
		delete(g.in[p.u], p.v)
	}
}

// removePair drops every edge between a pair and returns how many there were.
func (g *Graph) removePair(p pair) int {
	n := len(g.edges[p])
	if n == 0 {
		return 0
	}
	delete(g.edges, p)
	g.unlink(p)
	return n
}

// RemoveEdges drops every edge from u to v (either way for undirected graphs).
func (g *Graph) RemoveEdges(u, v NodeID) int {
	return g.removePair(g.pairOf(u, v))
}

// RemoveNode deletes a node and all its incident edges.
func (g *Graph) RemoveNode(id NodeID) {
	n := &g.nodes[id]
	if !n.alive {
		return
	}
	for v := range g.out[id] {
		g.removePair(g.pairOf(id, v))
	}
	for u := range g.in[id] {
		g.removePair(g.pairOf(u, id))
	}
	n.alive = false
	delete(g.index, n.code)
}

// HasEdge reports whether any edge joins the two codes.
func (g *Graph) HasEdge(from, to string) bool {
	u, ok1 := g.index[from]
	v, ok2 := g.index[to]
	if !ok1 || !ok2 {
		return false
	}
	return len(g.edges[g.pairOf(u, v)]) > 0
}

// Degree returns the number of distinct adjacent nodes, counting a self-loop
// once.
func (g *Graph) Degree(id NodeID) int {
	seen := make(map[NodeID]struct{}, len(g.out[id])+len(g.in[id]))
	for v := range g.out[id] {
		seen[v] = struct{}{}
	}
	for u := range g.in[id] {
		seen[u] = struct{}{}
	}
	return len(seen)
}

// Successors returns nodes reachable over one outgoing edge, sorted by code.
// For undirected graphs this is the neighbor set.
func (g *Graph) Successors(id NodeID) []NodeID {
	return g.sortedIDs(g.out[id])
}

// Predecessors returns nodes with an edge into id, sorted by code.
// For undirected graphs this is the neighbor set.
func (g *Graph) Predecessors(id NodeID) []NodeID {
	return g.sortedIDs(g.in[id])
}

// Neighbors returns every adjacent node, sorted by code.
func (g *Graph) Neighbors(id NodeID) []NodeID {
	all := make(map[NodeID]struct{})
	for v := range g.out[id] {
		all[v] = struct{}{}
	}
	for u := range g.in[id] {
		all[u] = struct{}{}
	}
	return g.sortedIDs(all)
}

func (g *Graph) sortedIDs(set map[NodeID]struct{}) []NodeID {
	out := make([]NodeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return g.nodes[out[i]].code < g.nodes[out[j]].code })
	return out
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int { return len(g.index) }

// EdgeCount returns the number of edge records.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, byKey := range g.edges {
		n += len(byKey)
	}
	return n
}

// Node returns a copy of the node with the given code.
func (g *Graph) Node(code string) (Node, bool) {
	id, ok := g.index[code]
	if !ok {
		return Node{}, false
	}
	return g.nodeCopy(id), true
}

// Nodes returns copies of all live nodes sorted by code.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.index))
	for _, id := range g.index {
		out = append(out, g.nodeCopy(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Edges returns copies of all edges sorted by (source, target, key).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.EdgeCount())
	for p, byKey := range g.edges {
		src, dst := g.nodes[p.u].code, g.nodes[p.v].code
		if g.kind == Undirected && dst < src {
			src, dst = dst, src
		}
		for key, e := range byKey {
			out = append(out, Edge{
				Source:   src,
				Target:   dst,
				Key:      key,
				Distance: e.distance,
				Services: sortedServices(e.services),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return routes.NaturalLess(a.Key, b.Key)
	})
	return out
}

// EdgeBetween returns the edge from one code to another with the given key.
// Pass an empty key for SingleEdge graphs.
func (g *Graph) EdgeBetween(from, to, key string) (Edge, bool) {
	u, ok1 := g.index[from]
	v, ok2 := g.index[to]
	if !ok1 || !ok2 {
		return Edge{}, false
	}
	e, ok := g.edges[g.pairOf(u, v)][key]
	if !ok {
		return Edge{}, false
	}
	src, dst := from, to
	if g.kind == Undirected && dst < src {
		src, dst = dst, src
	}
	return Edge{Source: src, Target: dst, Key: key, Distance: e.distance, Services: sortedServices(e.services)}, true
}

func (g *Graph) nodeCopy(id NodeID) Node {
	n := g.nodes[id]
	out := Node{ID: id, Code: n.code, Services: sortedServices(n.services)}
	if n.pos != nil {
		p := *n.pos
		out.Position = &p
	}
	return out
}

func sortedServices(s mapset.Set[string]) []string {
	out := s.ToSlice()
	routes.SortNatural(out)
	return out
}

func closeEnough(a, b float64) bool {
	d := a - b
	return d < distanceTolerance && d > -distanceTolerance
}
