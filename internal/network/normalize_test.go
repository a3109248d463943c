package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitnet/internal/routes"
	"transitnet/internal/stops"
)

// spliceRegistry locates A and C but not B.
func spliceRegistry(t *testing.T) *stops.Table {
	return testRegistry(t,
		located("A", "103.80", "1.30"),
		stops.RawRecord{Code: "B", Name: "B"},
		located("C", "103.82", "1.30"),
	)
}

func assertInvariants(t *testing.T, g *Graph) {
	t.Helper()
	for _, e := range g.Edges() {
		assert.NotEqual(t, e.Source, e.Target, "self-loop survived")
	}
	for _, n := range g.Nodes() {
		assert.GreaterOrEqual(t, g.Degree(n.ID), 1, "node %s is isolated", n.Code)
	}
}

func TestNormalize_RemovesSelfLoopsThenIsolated(t *testing.T) {
	registry := threeStops(t)
	table := &routes.Table{Entries: append(
		traversal("10", 1, []string{"S1", "S1", "S2"}, []float64{0, 0, 1}),
		traversal("20", 1, []string{"S3", "S3"}, []float64{0, 0})...,
	)}
	g, _ := Build(registry, table, Options{Kind: Directed})
	require.Equal(t, 3, g.EdgeCount())

	rep := Normalize(g, NormalizeOptions{})

	assert.Equal(t, 2, rep.SelfLoops)
	assert.Equal(t, 1, rep.Isolated)
	assert.Equal(t, []Edge{{Source: "S1", Target: "S2", Distance: 1, Services: []string{"10"}}}, g.Edges())
	_, ok := g.Node("S3")
	assert.False(t, ok)
	assertInvariants(t, g)
}

func TestNormalize_OuterJoinIsolatesRemoved(t *testing.T) {
	registry := threeStops(t)
	table := &routes.Table{Entries: traversal("10", 1, []string{"S1", "S2"}, []float64{0, 1})}
	g, _ := Build(registry, table, Options{Kind: Directed, Join: OuterJoin})
	require.Equal(t, 3, g.NodeCount())

	rep := Normalize(g, NormalizeOptions{})
	assert.Equal(t, 1, rep.Isolated)
	assert.Equal(t, 2, g.NodeCount())
	assertInvariants(t, g)
}

func TestNormalize_SpliceSumsDistances(t *testing.T) {
	table := &routes.Table{Entries: traversal("10", 1, []string{"A", "B", "C"}, []float64{0, 5, 12})}
	g, _ := Build(spliceRegistry(t), table, Options{Kind: Directed})

	rep := Normalize(g, NormalizeOptions{Splice: true})

	assert.Equal(t, 1, rep.Unlocated)
	assert.Equal(t, 1, rep.Bridges)
	assert.Equal(t, []Edge{{Source: "A", Target: "C", Distance: 12, Services: []string{"10"}}}, g.Edges())
	_, ok := g.Node("B")
	assert.False(t, ok)
	assertInvariants(t, g)
}

func TestNormalize_SpliceWithoutCommonServiceDropsBridge(t *testing.T) {
	table := &routes.Table{Entries: append(
		traversal("10", 1, []string{"A", "B"}, []float64{0, 5}),
		traversal("20", 1, []string{"B", "C"}, []float64{5, 12})...,
	)}
	g, _ := Build(spliceRegistry(t), table, Options{Kind: Directed})

	rep := Normalize(g, NormalizeOptions{Splice: true})

	assert.Equal(t, 1, rep.EmptyIntersections)
	assert.Zero(t, rep.Bridges)
	assert.False(t, g.HasEdge("A", "C"))
	assert.Zero(t, g.EdgeCount())
	assert.Zero(t, g.NodeCount())
}

func TestNormalize_SpliceIntersectsServices(t *testing.T) {
	table := &routes.Table{Entries: []routes.Entry{}}
	table.Entries = append(table.Entries, traversal("10", 1, []string{"A", "B", "C"}, []float64{0, 5, 12})...)
	table.Entries = append(table.Entries, traversal("20", 1, []string{"A", "B", "C"}, []float64{0, 5, 12})...)
	table.Entries = append(table.Entries, traversal("30", 1, []string{"A", "B"}, []float64{0, 5})...)
	g, _ := Build(spliceRegistry(t), table, Options{Kind: Directed})

	Normalize(g, NormalizeOptions{Splice: true})

	e, ok := g.EdgeBetween("A", "C", "")
	require.True(t, ok)
	assert.Equal(t, []string{"10", "20"}, e.Services)
}

func TestNormalize_SpliceExtendsExistingEdge(t *testing.T) {
	table := &routes.Table{Entries: append(
		traversal("10", 1, []string{"A", "B", "C"}, []float64{0, 5, 12}),
		traversal("20", 1, []string{"A", "C"}, []float64{0, 11})...,
	)}
	g, _ := Build(spliceRegistry(t), table, Options{Kind: Directed})

	Normalize(g, NormalizeOptions{Splice: true})

	e, ok := g.EdgeBetween("A", "C", "")
	require.True(t, ok)
	assert.Equal(t, 11.0, e.Distance)
	assert.Equal(t, []string{"10", "20"}, e.Services)
}

func TestNormalize_SpliceDeadEnd(t *testing.T) {
	table := &routes.Table{Entries: traversal("10", 1, []string{"A", "B"}, []float64{0, 5})}
	g, _ := Build(spliceRegistry(t), table, Options{Kind: Directed})

	rep := Normalize(g, NormalizeOptions{Splice: true})

	assert.Equal(t, 1, rep.DeadEnds)
	assert.Zero(t, g.NodeCount())
	assertInvariants(t, g)
}

func TestNormalize_SpliceChain(t *testing.T) {
	registry := testRegistry(t,
		located("A", "103.80", "1.30"),
		stops.RawRecord{Code: "X", Name: "X"},
		stops.RawRecord{Code: "Y", Name: "Y"},
		located("D", "103.83", "1.30"),
	)
	table := &routes.Table{Entries: traversal("10", 1, []string{"A", "X", "Y", "D"}, []float64{0, 1, 3, 6})}
	g, _ := Build(registry, table, Options{Kind: Directed})

	Normalize(g, NormalizeOptions{Splice: true})

	assert.Equal(t, []Edge{{Source: "A", Target: "D", Distance: 6, Services: []string{"10"}}}, g.Edges())
	assertInvariants(t, g)
}

func TestNormalize_SpliceUndirected(t *testing.T) {
	table := &routes.Table{Entries: traversal("1", 1, []string{"C", "B", "A"}, []float64{0, 7, 12})}
	g, _ := Build(spliceRegistry(t), table, Options{Kind: Undirected})

	Normalize(g, NormalizeOptions{Splice: true})

	assert.Equal(t, []Edge{{Source: "A", Target: "C", Distance: 12, Services: []string{"1"}}}, g.Edges())
}

func TestNormalize_SpliceMultiEdgePerService(t *testing.T) {
	table := &routes.Table{Entries: append(
		traversal("10", 1, []string{"A", "B", "C"}, []float64{0, 5, 12}),
		traversal("20", 1, []string{"A", "B"}, []float64{0, 5})...,
	)}
	g, _ := Build(spliceRegistry(t), table, Options{Kind: Directed, Mode: MultiEdge})

	Normalize(g, NormalizeOptions{Splice: true})

	assert.Equal(t, []Edge{{Source: "A", Target: "C", Key: "10", Distance: 12, Services: []string{"10"}}}, g.Edges())
}

func TestNormalize_WithoutSpliceKeepsUnlocated(t *testing.T) {
	table := &routes.Table{Entries: traversal("10", 1, []string{"A", "B", "C"}, []float64{0, 5, 12})}
	g, _ := Build(spliceRegistry(t), table, Options{Kind: Directed})

	rep := Normalize(g, NormalizeOptions{})
	assert.Zero(t, rep.Unlocated)
	_, ok := g.Node("B")
	assert.True(t, ok)
}
