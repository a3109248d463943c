package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitnet/internal/logging"
	"transitnet/internal/network"
	"transitnet/internal/routes"
	"transitnet/internal/stops"
	"transitnet/internal/volume"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, logging.Discard())
	require.NoError(t, err)
	db.Close()
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	v, err := db.GetMetadata(ctx, "etag")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetMetadata(ctx, "etag", `"abc"`))
	require.NoError(t, db.SetMetadata(ctx, "etag", `"def"`))
	v, err = db.GetMetadata(ctx, "etag")
	require.NoError(t, err)
	assert.Equal(t, `"def"`, v)
}

func TestRawTables_RoundTripInOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	assert.False(t, db.HasData(ctx))

	busStops := []stops.RawRecord{
		{Code: "02", Name: "Second", Road: "Road B", X: "103.81", Y: "1.31"},
		{Code: "01", Name: "First", Road: "Road A", X: "103.80", Y: "1.30"},
		{Code: "01", Name: "Dup", X: "", Y: ""},
	}
	busRoutes := []routes.RawBusRow{
		{ServiceNo: "10", Operator: "SBST", Direction: "1", StopSequence: "1", BusStopCode: "01", Distance: "0"},
		{ServiceNo: "10", Operator: "SBST", Direction: "1", StopSequence: "2", BusStopCode: "02"},
	}
	railStations := []stops.RawRecord{{Code: "NS1", Name: "JURONG EAST MRT STATION", X: "17905.4", Y: "35010.2"}}
	railRoutes := []routes.RawRailRow{{LineName: "North South Line", StationName: "Jurong East", StationCode: "NS1"}}

	require.NoError(t, db.ReplaceBusStops(ctx, busStops))
	require.NoError(t, db.ReplaceBusRoutes(ctx, busRoutes))
	require.NoError(t, db.ReplaceRailStations(ctx, railStations))
	require.NoError(t, db.ReplaceRailRoutes(ctx, railRoutes))
	assert.True(t, db.HasData(ctx))

	gotStops, err := db.BusStops(ctx)
	require.NoError(t, err)
	assert.Equal(t, busStops, gotStops)

	gotRoutes, err := db.BusRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, busRoutes, gotRoutes)

	gotStations, err := db.RailStations(ctx)
	require.NoError(t, err)
	assert.Equal(t, railStations, gotStations)

	gotRail, err := db.RailRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, railRoutes, gotRail)

	// replace drops the previous contents
	require.NoError(t, db.ReplaceBusStops(ctx, busStops[:1]))
	gotStops, err = db.BusStops(ctx)
	require.NoError(t, err)
	assert.Len(t, gotStops, 1)
}

func TestLocationAndVolumeTables_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	locations := []stops.RawRecord{
		{Code: "01012", Name: "HOTEL GRAND PACIFIC", X: "29874.8", Y: "31252.4"},
		{Code: "01013", Name: "ST. JOSEPH'S CH", X: "29950.1", Y: "31340.7"},
	}
	vols := []volume.RawStopRow{
		{DayType: "WEEKDAY", Hour: "7", Code: "01012", TapIn: "100", TapOut: "20"},
		{DayType: "WEEKENDS/HOLIDAY", Hour: "18", Code: "01012", TapIn: "40", TapOut: ""},
	}
	trips := []volume.RawODRow{
		{DayType: "WEEKDAY", Hour: "8", Origin: "01012", Destination: "01013", Trips: "10"},
	}

	require.NoError(t, db.ReplaceBusStopLocations(ctx, locations))
	require.NoError(t, db.ReplaceBusStopVolumes(ctx, vols))
	require.NoError(t, db.ReplaceBusODTrips(ctx, trips))
	// location and volume tables alone are not route data
	assert.False(t, db.HasData(ctx))

	gotLocations, err := db.BusStopLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, locations, gotLocations)

	gotVols, err := db.BusStopVolumes(ctx)
	require.NoError(t, err)
	assert.Equal(t, vols, gotVols)

	gotTrips, err := db.BusODTrips(ctx)
	require.NoError(t, err)
	assert.Equal(t, trips, gotTrips)
}

func TestBusServices_LaterRowWins(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.ReplaceBusServices(ctx, []ServiceRow{
		{ServiceNo: "10", Direction: 1, Category: "TRUNK"},
		{ServiceNo: "10", Direction: 1, Category: "EXPRESS"},
		{ServiceNo: "2", Direction: 1, Category: "TRUNK"},
	}))

	got, err := db.BusServices(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "EXPRESS", got[0].Category)
	assert.Equal(t, "2", got[1].ServiceNo)
}

func TestBuilds(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.LatestBuild(ctx, "bus")
	assert.ErrorIs(t, err, ErrNoBuild)

	lon, lat := 103.8, 1.3
	nodes := []network.NodeRow{
		{ID: "A", Lon: &lon, Lat: &lat, Services: "10", ServiceCount: 1},
		{ID: "B", Services: "10", ServiceCount: 1},
	}
	edges := []network.EdgeRow{
		{Source: "A", Target: "B", Key: "10", Distance: 1.5, Services: "10", ServiceCount: 1},
		{Source: "A", Target: "B", Key: "2", Distance: 1.5, Services: "2", ServiceCount: 1},
	}

	first, err := db.SaveBuild(ctx, "bus", "multi", nodes[:1], nil, map[string]int{"rows": 1})
	require.NoError(t, err)
	second, err := db.SaveBuild(ctx, "bus", "multi", nodes, edges, map[string]int{"rows": 2})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	latest, err := db.LatestBuild(ctx, "bus")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, 2, latest.Nodes)
	assert.JSONEq(t, `{"rows":2}`, string(latest.Report))

	gotNodes, gotEdges, err := db.BuildTables(ctx, latest.ID)
	require.NoError(t, err)
	assert.Equal(t, nodes, gotNodes)
	assert.Equal(t, []network.EdgeRow{edges[1], edges[0]}, gotEdges)

	n, err := db.PruneBuilds(ctx, "bus", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gotNodes, _, err = db.BuildTables(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, gotNodes)
}

func TestLoadSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.LoadSnapshot(ctx, "rail")
	assert.ErrorIs(t, err, ErrNoBuild)

	nodes := []network.NodeRow{{ID: "NS1", Services: "NS", ServiceCount: 1}, {ID: "NS2", Services: "NS", ServiceCount: 1}}
	edges := []network.EdgeRow{{Source: "NS1", Target: "NS2", Distance: 2.1, Services: "NS", ServiceCount: 1}}
	_, err = db.SaveBuild(ctx, "rail", "simple", nodes, edges, nil)
	require.NoError(t, err)

	snap, err := db.LoadSnapshot(ctx, "rail")
	require.NoError(t, err)
	assert.Equal(t, "simple", snap.Build.Mode)
	assert.Equal(t, nodes, snap.Nodes)
	assert.Equal(t, edges, snap.Edges)
}
