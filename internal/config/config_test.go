package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./transitnet.db", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.FetchInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.MultiEdge)
	assert.Equal(t, 5, cfg.KeepBuilds)
	assert.Equal(t, 5*time.Minute, cfg.AlertsInterval)
	assert.Equal(t, "left", cfg.VolumeJoin)
	assert.Empty(t, cfg.VolumeMonth)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRANSITNET_PORT", "9090")
	t.Setenv("TRANSITNET_FETCH_INTERVAL", "30m")
	t.Setenv("TRANSITNET_LOG_LEVEL", "debug")
	t.Setenv("TRANSITNET_MULTI_EDGE", "true")
	t.Setenv("TRANSITNET_REDIS_DB", "not-a-number")
	t.Setenv("TRANSITNET_RAIL_DATASET", "TrainStation")
	t.Setenv("TRANSITNET_BUS_STOP_DATASET", "BusStopLocation")
	t.Setenv("TRANSITNET_VOLUME_MONTH", "202401")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.FetchInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.MultiEdge)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "TrainStation", cfg.RailDataset)
	assert.Equal(t, "BusStopLocation", cfg.BusStopDataset)
	assert.Equal(t, "202401", cfg.VolumeMonth)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in, slog.LevelInfo), "ParseLevel(%q)", tt.in)
	}
}

func TestParseCorrections(t *testing.T) {
	data := []byte(`
code_fixes:
  - line: Bukit Panjang LRT Line
    station: Bukit Panjang
    code: BP6
renames:
  - from: Rafles Place
    to: Raffles Place
closed_stations: [Teck Lee]
closed_stops: ["59009"]
`)
	c, err := ParseCorrections(data)
	require.NoError(t, err)
	assert.Equal(t, DefaultCorrections().CodeFixes, c.CodeFixes)
	assert.Equal(t, DefaultCorrections().Renames, c.Renames)
	assert.Equal(t, []string{"Teck Lee"}, c.ClosedStations)
	assert.Equal(t, []string{"59009"}, c.ClosedStops)
}

func TestParseCorrections_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "renames: [from: x"},
		{"missing line", "code_fixes:\n  - station: A\n    code: A1\n"},
		{"non alphanumeric code", "code_fixes:\n  - line: L\n    station: A\n    code: DT1-BP6\n"},
		{"rename to itself", "renames:\n  - from: A\n    to: A\n"},
		{"empty closed station", "closed_stations: [\"\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCorrections([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidCorrections)
		})
	}
}

func TestLoadCorrections_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrections.yaml")
	require.NoError(t, os.WriteFile(path, []byte("closed_stations: [Teck Lee]\n"), 0o644))

	c, err := LoadCorrections(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Teck Lee"}, c.ClosedStations)

	_, err = LoadCorrections(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWithClosedStops_DoesNotAlias(t *testing.T) {
	base := DefaultCorrections()
	extended := base.WithClosedStops("01012")
	assert.Empty(t, base.ClosedStops)
	assert.Equal(t, []string{"01012"}, extended.ClosedStops)
}
