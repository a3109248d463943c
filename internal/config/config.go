package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration from environment variables.
type Config struct {
	Port     int
	DBPath   string
	DataDir  string // downloaded datasets
	OutDir   string // exported node/edge tables
	LogLevel slog.Level
	LogJSON  bool

	DataMallURL     string
	DataMallKey     string // sent verbatim as the AccountKey header
	DataMallPageMax int    // stop paging after this many pages (0 = until a short page)
	GTFSURL         string // optional GTFS static feed used instead of DataMall
	AlertsURL       string // optional GTFS-RT alerts feed for closed stops
	AlertsInterval  time.Duration
	RailDataset     string // DataMall static dataset id of the rail station zip
	BusStopDataset  string // DataMall static dataset id of the bus stop location zip
	VolumeMonth     string // DataMall passenger volume month (YYYYMM), empty skips the download
	FetchInterval   time.Duration

	CorrectionsPath string // YAML correction list, built-in defaults when empty

	RedisAddr     string // empty disables the network cache
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	MultiEdge  bool
	OuterJoin  bool
	Splice     bool
	KeepBuilds int    // saved builds kept per network kind, 0 keeps all
	VolumeJoin string // left, inner or outer join of stop volumes to locations
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     envInt("TRANSITNET_PORT", 8080),
		DBPath:   envStr("TRANSITNET_DB_PATH", "./transitnet.db"),
		DataDir:  envStr("TRANSITNET_DATA_DIR", "./data"),
		OutDir:   envStr("TRANSITNET_OUT_DIR", "./out"),
		LogLevel: envLogLevel("TRANSITNET_LOG_LEVEL", slog.LevelInfo),
		LogJSON:  envBool("TRANSITNET_LOG_JSON", false),

		DataMallURL:     envStr("TRANSITNET_DATAMALL_URL", "http://datamall2.mytransport.sg/ltaodataservice"),
		DataMallKey:     envStr("TRANSITNET_DATAMALL_KEY", ""),
		DataMallPageMax: envInt("TRANSITNET_DATAMALL_PAGE_MAX", 0),
		GTFSURL:         envStr("TRANSITNET_GTFS_URL", ""),
		AlertsURL:       envStr("TRANSITNET_ALERTS_URL", ""),
		AlertsInterval:  envDuration("TRANSITNET_ALERTS_INTERVAL", 5*time.Minute),
		RailDataset:     envStr("TRANSITNET_RAIL_DATASET", ""),
		BusStopDataset:  envStr("TRANSITNET_BUS_STOP_DATASET", ""),
		VolumeMonth:     envStr("TRANSITNET_VOLUME_MONTH", ""),
		FetchInterval:   envDuration("TRANSITNET_FETCH_INTERVAL", 24*time.Hour),

		CorrectionsPath: envStr("TRANSITNET_CORRECTIONS", ""),

		RedisAddr:     envStr("TRANSITNET_REDIS_ADDR", ""),
		RedisPassword: envStr("TRANSITNET_REDIS_PASSWORD", ""),
		RedisDB:       envInt("TRANSITNET_REDIS_DB", 0),
		CacheTTL:      envDuration("TRANSITNET_CACHE_TTL", time.Hour),

		MultiEdge:  envBool("TRANSITNET_MULTI_EDGE", false),
		OuterJoin:  envBool("TRANSITNET_OUTER_JOIN", false),
		Splice:     envBool("TRANSITNET_SPLICE", false),
		KeepBuilds: envInt("TRANSITNET_KEEP_BUILDS", 5),
		VolumeJoin: envStr("TRANSITNET_VOLUME_JOIN", "left"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLogLevel(key string, fallback slog.Level) slog.Level {
	return ParseLevel(os.Getenv(key), fallback)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return fallback
}
