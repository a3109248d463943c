package storage

import "fmt"

// migrate creates the schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Debug("database migrations applied", "count", len(migrations))
	return nil
}

// Raw tables keep source values as text so normalization sees exactly what
// the feed delivered. Row order is the rowid order of the last import.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS feed_metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS bus_stops (
		id   INTEGER PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		road TEXT NOT NULL DEFAULT '',
		x    TEXT NOT NULL DEFAULT '',
		y    TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS bus_routes (
		id            INTEGER PRIMARY KEY,
		service_no    TEXT NOT NULL DEFAULT '',
		operator      TEXT NOT NULL DEFAULT '',
		direction     TEXT NOT NULL DEFAULT '',
		stop_sequence TEXT NOT NULL DEFAULT '',
		bus_stop_code TEXT NOT NULL DEFAULT '',
		distance      TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS bus_services (
		service_no       TEXT NOT NULL,
		direction        INTEGER NOT NULL,
		operator         TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL DEFAULT '',
		origin_code      TEXT NOT NULL DEFAULT '',
		destination_code TEXT NOT NULL DEFAULT '',
		loop_desc        TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (service_no, direction)
	)`,

	`CREATE TABLE IF NOT EXISTS rail_stations (
		id   INTEGER PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		x    TEXT NOT NULL DEFAULT '',
		y    TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS rail_routes (
		id           INTEGER PRIMARY KEY,
		line_name    TEXT NOT NULL DEFAULT '',
		station_name TEXT NOT NULL DEFAULT '',
		station_code TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS network_builds (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		mode       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL,
		report     TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_network_builds_kind ON network_builds(kind, created_at)`,

	`CREATE TABLE IF NOT EXISTS network_nodes (
		build_id      TEXT NOT NULL REFERENCES network_builds(id) ON DELETE CASCADE,
		code          TEXT NOT NULL,
		lon           REAL,
		lat           REAL,
		services      TEXT NOT NULL,
		service_count INTEGER NOT NULL,
		PRIMARY KEY (build_id, code)
	)`,

	`CREATE TABLE IF NOT EXISTS network_edges (
		build_id      TEXT NOT NULL REFERENCES network_builds(id) ON DELETE CASCADE,
		source        TEXT NOT NULL,
		target        TEXT NOT NULL,
		edge_key      TEXT NOT NULL DEFAULT '',
		distance      REAL NOT NULL,
		services      TEXT NOT NULL,
		service_count INTEGER NOT NULL,
		PRIMARY KEY (build_id, source, target, edge_key)
	)`,

	`CREATE TABLE IF NOT EXISTS bus_stop_volumes (
		id       INTEGER PRIMARY KEY,
		day_type TEXT NOT NULL DEFAULT '',
		hour     TEXT NOT NULL DEFAULT '',
		code     TEXT NOT NULL DEFAULT '',
		tap_in   TEXT NOT NULL DEFAULT '',
		tap_out  TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS bus_od_trips (
		id          INTEGER PRIMARY KEY,
		day_type    TEXT NOT NULL DEFAULT '',
		hour        TEXT NOT NULL DEFAULT '',
		origin      TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		trips       TEXT NOT NULL DEFAULT ''
	)`,

	// Static dataset stop locations, SVY21.
	`CREATE TABLE IF NOT EXISTS bus_stop_locations (
		id   INTEGER PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		x    TEXT NOT NULL DEFAULT '',
		y    TEXT NOT NULL DEFAULT ''
	)`,
}
