package network

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitnet/internal/geo"
	"transitnet/internal/routes"
	"transitnet/internal/stops"
)

func testRegistry(t *testing.T, records ...stops.RawRecord) *stops.Table {
	t.Helper()
	table, _, err := stops.Normalize(geo.WGS84, stops.BusColumns, records)
	require.NoError(t, err)
	return table
}

func located(code string, lon, lat string) stops.RawRecord {
	return stops.RawRecord{Code: code, Name: code, X: lon, Y: lat}
}

func traversal(service string, dir int, codes []string, dists []float64) []routes.Entry {
	out := make([]routes.Entry, len(codes))
	for i, c := range codes {
		out[i] = routes.Entry{ServiceID: service, Direction: dir, StopCode: c, Sequence: i + 1}
		if dists != nil {
			out[i].Distance = dists[i]
			out[i].Measured = true
		}
	}
	return out
}

func threeStops(t *testing.T) *stops.Table {
	return testRegistry(t,
		located("S1", "103.80", "1.30"),
		located("S2", "103.81", "1.30"),
		located("S3", "103.82", "1.30"),
	)
}

func TestBuild_EndToEndScenario(t *testing.T) {
	registry := threeStops(t)
	one := &routes.Table{Entries: traversal("10", 1, []string{"S1", "S2", "S3"}, []float64{0, 3, 8})}

	g, rep := Build(registry, one, Options{Kind: Directed})
	assert.Equal(t, 2, rep.EdgesCreated)
	assert.Equal(t, []Edge{
		{Source: "S1", Target: "S2", Distance: 3, Services: []string{"10"}},
		{Source: "S2", Target: "S3", Distance: 5, Services: []string{"10"}},
	}, g.Edges())

	both := &routes.Table{Entries: append(
		traversal("10", 1, []string{"S1", "S2", "S3"}, []float64{0, 3, 8}),
		traversal("20", 1, []string{"S1", "S2", "S3"}, []float64{0, 3, 8})...,
	)}
	g, rep = Build(registry, both, Options{Kind: Directed})
	assert.Equal(t, 2, rep.EdgesCreated)
	assert.Equal(t, 2, rep.EdgeMerges)
	assert.Zero(t, rep.DistanceConflicts)
	assert.Equal(t, []Edge{
		{Source: "S1", Target: "S2", Distance: 3, Services: []string{"10", "20"}},
		{Source: "S2", Target: "S3", Distance: 5, Services: []string{"10", "20"}},
	}, g.Edges())

	n, ok := g.Node("S2")
	require.True(t, ok)
	assert.Equal(t, []string{"10", "20"}, n.Services)
	require.NotNil(t, n.Position)
	assert.InDelta(t, 103.81, n.Position.Lon, 1e-9)
}

func TestBuild_ServiceSetCardinality(t *testing.T) {
	registry := threeStops(t)
	var entries []routes.Entry
	for i, svc := range []string{"10", "20", "10", "30", "20", "10"} {
		entries = append(entries, traversal(svc, i, []string{"S1", "S2"}, []float64{0, 1})...)
	}

	g, _ := Build(registry, &routes.Table{Entries: entries}, Options{Kind: Directed})
	e, ok := g.EdgeBetween("S1", "S2", "")
	require.True(t, ok)
	assert.Equal(t, []string{"10", "20", "30"}, e.Services)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestBuild_RailEdgeSymmetry(t *testing.T) {
	registry := threeStops(t)
	forward := &routes.Table{Entries: traversal("1", 1, []string{"S1", "S2"}, nil)}
	backward := &routes.Table{Entries: traversal("1", 1, []string{"S2", "S1"}, nil)}

	gf, _ := Build(registry, forward, Options{Kind: Undirected})
	gb, _ := Build(registry, backward, Options{Kind: Undirected})

	assert.Equal(t, gf.Edges(), gb.Edges())
	require.Len(t, gf.Edges(), 1)
	e := gf.Edges()[0]
	assert.Equal(t, "S1", e.Source)
	assert.Equal(t, "S2", e.Target)
	assert.True(t, gb.HasEdge("S1", "S2"))
	assert.True(t, gb.HasEdge("S2", "S1"))
}

func TestBuild_UnmeasuredUsesGreatCircle(t *testing.T) {
	registry := threeStops(t)
	table := &routes.Table{Entries: traversal("1", 1, []string{"S1", "S2"}, nil)}

	g, _ := Build(registry, table, Options{Kind: Undirected})
	e, ok := g.EdgeBetween("S1", "S2", "")
	require.True(t, ok)
	want := geo.DistanceKm(geo.Point{Lon: 103.80, Lat: 1.30}, geo.Point{Lon: 103.81, Lat: 1.30})
	assert.InDelta(t, want, e.Distance, 1e-12)
	assert.InDelta(t, 1.11, e.Distance, 0.01)
}

func TestBuild_InnerJoinDropsUnknownStops(t *testing.T) {
	registry := threeStops(t)
	table := &routes.Table{Entries: traversal("10", 1, []string{"S1", "GHOST", "S3"}, []float64{0, 2, 6})}

	g, rep := Build(registry, table, Options{Kind: Directed})
	assert.Equal(t, 1, rep.UnknownStops)
	_, ok := g.Node("GHOST")
	assert.False(t, ok)
	e, ok := g.EdgeBetween("S1", "S3", "")
	require.True(t, ok)
	assert.Equal(t, 6.0, e.Distance)
}

func TestBuild_OuterJoinKeepsEveryStop(t *testing.T) {
	registry := threeStops(t)
	table := &routes.Table{Entries: traversal("10", 1, []string{"S1", "GHOST"}, []float64{0, 2})}

	g, rep := Build(registry, table, Options{Kind: Directed, Join: OuterJoin})
	assert.Zero(t, rep.UnknownStops)
	assert.Equal(t, 4, g.NodeCount())

	ghost, ok := g.Node("GHOST")
	require.True(t, ok)
	assert.Nil(t, ghost.Position)
	assert.Equal(t, []string{"10"}, ghost.Services)

	s3, ok := g.Node("S3")
	require.True(t, ok)
	assert.Empty(t, s3.Services)
}

func TestBuild_SingleRowTraversal(t *testing.T) {
	registry := threeStops(t)
	table := &routes.Table{Entries: traversal("99", 1, []string{"S3"}, []float64{0})}

	g, rep := Build(registry, table, Options{Kind: Directed})
	assert.Zero(t, rep.EdgesCreated)
	assert.Zero(t, g.EdgeCount())
	n, ok := g.Node("S3")
	require.True(t, ok)
	assert.Equal(t, []string{"99"}, n.Services)
}

func TestBuild_DuplicateSequenceDropped(t *testing.T) {
	registry := threeStops(t)
	entries := traversal("10", 1, []string{"S1", "S2", "S3"}, []float64{0, 3, 8})
	entries[2].Sequence = 2

	g, rep := Build(registry, &routes.Table{Entries: entries}, Options{Kind: Directed})
	assert.Equal(t, 1, rep.DuplicateSequences)
	assert.Equal(t, 1, g.EdgeCount())
	assert.True(t, g.HasEdge("S1", "S2"))
}

func TestBuild_KeepsFirstDistanceAndLogsConflict(t *testing.T) {
	registry := threeStops(t)
	table := &routes.Table{Entries: append(
		traversal("10", 1, []string{"S1", "S2"}, []float64{0, 3}),
		traversal("20", 1, []string{"S1", "S2"}, []float64{0, 4})...,
	)}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g, rep := Build(registry, table, Options{Kind: Directed, Logger: logger})

	assert.Equal(t, 1, rep.DistanceConflicts)
	e, _ := g.EdgeBetween("S1", "S2", "")
	assert.Equal(t, 3.0, e.Distance)
	assert.Equal(t, []string{"10", "20"}, e.Services)
	assert.Contains(t, buf.String(), "divergent segment distance")
	assert.Contains(t, buf.String(), "kept_km=3")
}

func TestBuild_MultiEdge(t *testing.T) {
	registry := threeStops(t)
	table := &routes.Table{Entries: append(
		traversal("10", 1, []string{"S1", "S2", "S3"}, []float64{0, 3, 8}),
		traversal("20", 1, []string{"S1", "S2"}, []float64{0, 3})...,
	)}

	g, rep := Build(registry, table, Options{Kind: Directed, Mode: MultiEdge})
	assert.Equal(t, 3, rep.EdgesCreated)
	assert.Equal(t, []Edge{
		{Source: "S1", Target: "S2", Key: "10", Distance: 3, Services: []string{"10"}},
		{Source: "S1", Target: "S2", Key: "20", Distance: 3, Services: []string{"20"}},
		{Source: "S2", Target: "S3", Key: "10", Distance: 5, Services: []string{"10"}},
	}, g.Edges())
}
