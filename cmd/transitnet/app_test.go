package main

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	gtfsrt "github.com/jamespfennell/gtfs/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"transitnet/internal/config"
	"transitnet/internal/ingest"
	"transitnet/internal/logging"
	"transitnet/internal/network"
	"transitnet/internal/pipeline"
	"transitnet/internal/volume"
)

func TestParseKinds(t *testing.T) {
	got, err := parseKinds("all")
	require.NoError(t, err)
	assert.Equal(t, []string{"bus", "rail"}, got)

	got, err = parseKinds("rail")
	require.NoError(t, err)
	assert.Equal(t, []string{"rail"}, got)

	_, err = parseKinds("ferry")
	assert.ErrorIs(t, err, network.ErrUnknownKind)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", modeServe},
		{"fetch", modeFetch},
		{"build", modeBuild},
		{"serve", modeServe},
	}
	for _, tt := range tests {
		got, err := parseMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := parseMode("deploy")
	assert.ErrorIs(t, err, errUnknownMode)
}

// testConfig points every path at dir and disables remote sources.
func testConfig(dir string) *config.Config {
	cfg := config.Load()
	cfg.DBPath = filepath.Join(dir, "test.db")
	cfg.DataDir = dir
	cfg.OutDir = filepath.Join(dir, "out")
	cfg.DataMallKey = ""
	cfg.GTFSURL = ""
	cfg.AlertsURL = ""
	cfg.RedisAddr = ""
	cfg.CorrectionsPath = ""
	return cfg
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestBuildFromFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ingest.BusStopsFile, "BusStopCode,RoadName,Description,Latitude,Longitude\n"+
		"01012,Victoria St,Hotel,1.2968,103.8525\n"+
		"01013,Victoria St,Church,1.2977,103.8532\n")
	writeFile(t, dir, ingest.BusRoutesFile, "ServiceNo,Operator,Direction,StopSequence,BusStopCode,Distance\n"+
		"10,SBST,1,1,01012,0\n"+
		"10,SBST,1,2,01013,0.6\n")
	writeFile(t, dir, ingest.BusStopVolumeFile, "YEAR_MONTH,DAY_TYPE,TIME_PER_HOUR,PT_TYPE,PT_CODE,TOTAL_TAP_IN_VOLUME,TOTAL_TAP_OUT_VOLUME\n"+
		"2024-01,WEEKDAY,8,BUS,01012,120,30\n"+
		"2024-01,WEEKENDS/HOLIDAY,8,BUS,01013,15,40\n")
	writeFile(t, dir, ingest.BusODFile, "YEAR_MONTH,DAY_TYPE,TIME_PER_HOUR,PT_TYPE,ORIGIN_PT_CODE,DESTINATION_PT_CODE,TOTAL_TRIPS\n"+
		"2024-01,WEEKDAY,8,BUS,01012,01013,25\n")

	cfg := testConfig(dir)
	a, err := newApp(cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.fetch(ctx))
	require.NoError(t, a.build(ctx, []string{pipeline.Bus, pipeline.Rail}))

	snap, err := a.nets.Get(ctx, pipeline.Bus)
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Edges, 1)
	assert.InDelta(t, 0.6, snap.Edges[0].Distance, 1e-9)

	_, err = os.Stat(filepath.Join(cfg.OutDir, pipeline.Bus, pipeline.EdgesFile))
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.OutDir, pipeline.Bus, pipeline.ODTripsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "01012,01013,25,0,25,0")
	_, err = os.Stat(filepath.Join(cfg.OutDir, pipeline.Bus, pipeline.StopVolumesGeoJSON))
	assert.NoError(t, err)
}

func TestNewApp_UnknownVolumeJoin(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.VolumeJoin = "right"
	_, err := newApp(cfg, logging.Discard())
	assert.ErrorIs(t, err, volume.ErrUnknownJoin)
}

func TestBuildWithAlertsAndStaticLocations(t *testing.T) {
	feed := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: []*gtfsrt.FeedEntity{{
			Id: proto.String("closure"),
			Alert: &gtfsrt.Alert{
				Effect:         gtfsrt.Alert_NO_SERVICE.Enum(),
				InformedEntity: []*gtfsrt.EntitySelector{{StopId: proto.String("01019")}},
			},
		}},
	}
	body, err := proto.Marshal(feed)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeFile(t, dir, ingest.BusStopsFile, "BusStopCode,RoadName,Description,Latitude,Longitude\n"+
		"01012,Victoria St,Hotel,1.2968,103.8525\n"+
		"01013,Victoria St,Church,1.2977,103.8532\n"+
		"01019,Victoria St,Bras Basah,1.2990,103.8540\n")
	// the static dataset places 01012 about 350 m east of its API position
	writeFile(t, dir, ingest.BusStopLocationsFile, "BUS_STOP_N,LOC_DESC,X,Y\n"+
		"01012,HOTEL GRAND PACIFIC,30500,31200\n")
	writeFile(t, dir, ingest.BusRoutesFile, "ServiceNo,Operator,Direction,StopSequence,BusStopCode,Distance\n"+
		"10,SBST,1,1,01012,0\n"+
		"10,SBST,1,2,01013,0.6\n"+
		"10,SBST,1,3,01019,1.1\n")

	cfg := testConfig(dir)
	cfg.AlertsURL = srv.URL
	a, err := newApp(cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.build(ctx, []string{pipeline.Bus}))
	assert.Equal(t, []string{"01019"}, a.alerts.ClosedStops())

	snap, err := a.nets.Get(ctx, pipeline.Bus)
	require.NoError(t, err)
	ids := make([]string, len(snap.Nodes))
	for i, n := range snap.Nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"01012", "01013"}, ids)
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, "01012", snap.Edges[0].Source)

	require.NotNil(t, snap.Nodes[0].Lon)
	assert.Greater(t, math.Abs(*snap.Nodes[0].Lon-103.8525), 1e-3)
}
