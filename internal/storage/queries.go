package storage

import (
	"context"
	"database/sql"
	"fmt"

	"transitnet/internal/routes"
	"transitnet/internal/stops"
	"transitnet/internal/volume"
)

// GetMetadata retrieves a value from the feed_metadata table.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM feed_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMetadata stores a key-value pair in the feed_metadata table.
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO feed_metadata (key, value) VALUES (?, ?)`,
		key, value)
	return err
}

// HasData reports whether any route table has been imported.
func (db *DB) HasData(ctx context.Context) bool {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM bus_routes) + (SELECT COUNT(*) FROM rail_routes)`).Scan(&count)
	return err == nil && count > 0
}

// ServiceRow is one bus service with its descriptive attributes.
type ServiceRow struct {
	ServiceNo       string
	Direction       int
	Operator        string
	Category        string
	OriginCode      string
	DestinationCode string
	LoopDesc        string
}

// ReplaceBusStops replaces the raw bus stop table.
func (db *DB) ReplaceBusStops(ctx context.Context, recs []stops.RawRecord) error {
	return db.replace(ctx, "bus_stops",
		`INSERT INTO bus_stops (code, name, road, x, y) VALUES (?, ?, ?, ?, ?)`,
		len(recs), func(tx *sql.Tx, stmt string) error {
			return insertAll(ctx, tx, stmt, recs, func(r stops.RawRecord) []any {
				return []any{r.Code, r.Name, r.Road, r.X, r.Y}
			})
		})
}

// ReplaceBusStopLocations replaces the static bus stop location table.
func (db *DB) ReplaceBusStopLocations(ctx context.Context, recs []stops.RawRecord) error {
	return db.replace(ctx, "bus_stop_locations",
		`INSERT INTO bus_stop_locations (code, name, x, y) VALUES (?, ?, ?, ?)`,
		len(recs), func(tx *sql.Tx, stmt string) error {
			return insertAll(ctx, tx, stmt, recs, func(r stops.RawRecord) []any {
				return []any{r.Code, r.Name, r.X, r.Y}
			})
		})
}

// ReplaceBusRoutes replaces the raw bus route table.
func (db *DB) ReplaceBusRoutes(ctx context.Context, rows []routes.RawBusRow) error {
	return db.replace(ctx, "bus_routes",
		`INSERT INTO bus_routes (service_no, operator, direction, stop_sequence, bus_stop_code, distance)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		len(rows), func(tx *sql.Tx, stmt string) error {
			return insertAll(ctx, tx, stmt, rows, func(r routes.RawBusRow) []any {
				return []any{r.ServiceNo, r.Operator, r.Direction, r.StopSequence, r.BusStopCode, r.Distance}
			})
		})
}

// ReplaceBusServices replaces the bus service table. Later rows win on a
// repeated (service, direction).
func (db *DB) ReplaceBusServices(ctx context.Context, rows []ServiceRow) error {
	return db.replace(ctx, "bus_services",
		`INSERT OR REPLACE INTO bus_services (service_no, direction, operator, category,
		 origin_code, destination_code, loop_desc) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(rows), func(tx *sql.Tx, stmt string) error {
			return insertAll(ctx, tx, stmt, rows, func(r ServiceRow) []any {
				return []any{r.ServiceNo, r.Direction, r.Operator, r.Category, r.OriginCode, r.DestinationCode, r.LoopDesc}
			})
		})
}

// ReplaceRailStations replaces the raw rail station table.
func (db *DB) ReplaceRailStations(ctx context.Context, recs []stops.RawRecord) error {
	return db.replace(ctx, "rail_stations",
		`INSERT INTO rail_stations (code, name, x, y) VALUES (?, ?, ?, ?)`,
		len(recs), func(tx *sql.Tx, stmt string) error {
			return insertAll(ctx, tx, stmt, recs, func(r stops.RawRecord) []any {
				return []any{r.Code, r.Name, r.X, r.Y}
			})
		})
}

// ReplaceRailRoutes replaces the raw rail route table.
func (db *DB) ReplaceRailRoutes(ctx context.Context, rows []routes.RawRailRow) error {
	return db.replace(ctx, "rail_routes",
		`INSERT INTO rail_routes (line_name, station_name, station_code) VALUES (?, ?, ?)`,
		len(rows), func(tx *sql.Tx, stmt string) error {
			return insertAll(ctx, tx, stmt, rows, func(r routes.RawRailRow) []any {
				return []any{r.LineName, r.StationName, r.StationCode}
			})
		})
}

// ReplaceBusStopVolumes replaces the raw passenger volume by stop table.
func (db *DB) ReplaceBusStopVolumes(ctx context.Context, rows []volume.RawStopRow) error {
	return db.replace(ctx, "bus_stop_volumes",
		`INSERT INTO bus_stop_volumes (day_type, hour, code, tap_in, tap_out) VALUES (?, ?, ?, ?, ?)`,
		len(rows), func(tx *sql.Tx, stmt string) error {
			return insertAll(ctx, tx, stmt, rows, func(r volume.RawStopRow) []any {
				return []any{r.DayType, r.Hour, r.Code, r.TapIn, r.TapOut}
			})
		})
}

// ReplaceBusODTrips replaces the raw origin-destination trip table.
func (db *DB) ReplaceBusODTrips(ctx context.Context, rows []volume.RawODRow) error {
	return db.replace(ctx, "bus_od_trips",
		`INSERT INTO bus_od_trips (day_type, hour, origin, destination, trips) VALUES (?, ?, ?, ?, ?)`,
		len(rows), func(tx *sql.Tx, stmt string) error {
			return insertAll(ctx, tx, stmt, rows, func(r volume.RawODRow) []any {
				return []any{r.DayType, r.Hour, r.Origin, r.Destination, r.Trips}
			})
		})
}

func (db *DB) replace(ctx context.Context, table, stmt string, n int, fill func(tx *sql.Tx, stmt string) error) error {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		if err := fill(tx, stmt); err != nil {
			return fmt.Errorf("fill %s: %w", table, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.logger.Info("table replaced", "table", table, "rows", n)
	return nil
}

// BusStops returns the raw bus stop table in import order.
func (db *DB) BusStops(ctx context.Context) ([]stops.RawRecord, error) {
	return queryAll(ctx, db, `SELECT code, name, road, x, y FROM bus_stops ORDER BY id`,
		func(rows *sql.Rows) (stops.RawRecord, error) {
			var r stops.RawRecord
			err := rows.Scan(&r.Code, &r.Name, &r.Road, &r.X, &r.Y)
			return r, err
		})
}

// BusStopLocations returns the static bus stop location table in import
// order.
func (db *DB) BusStopLocations(ctx context.Context) ([]stops.RawRecord, error) {
	return queryAll(ctx, db, `SELECT code, name, x, y FROM bus_stop_locations ORDER BY id`,
		func(rows *sql.Rows) (stops.RawRecord, error) {
			var r stops.RawRecord
			err := rows.Scan(&r.Code, &r.Name, &r.X, &r.Y)
			return r, err
		})
}

// BusRoutes returns the raw bus route table in import order.
func (db *DB) BusRoutes(ctx context.Context) ([]routes.RawBusRow, error) {
	return queryAll(ctx, db,
		`SELECT service_no, operator, direction, stop_sequence, bus_stop_code, distance
		 FROM bus_routes ORDER BY id`,
		func(rows *sql.Rows) (routes.RawBusRow, error) {
			var r routes.RawBusRow
			err := rows.Scan(&r.ServiceNo, &r.Operator, &r.Direction, &r.StopSequence, &r.BusStopCode, &r.Distance)
			return r, err
		})
}

// BusServices returns the bus service table ordered by service and direction.
func (db *DB) BusServices(ctx context.Context) ([]ServiceRow, error) {
	return queryAll(ctx, db,
		`SELECT service_no, direction, operator, category, origin_code, destination_code, loop_desc
		 FROM bus_services ORDER BY service_no, direction`,
		func(rows *sql.Rows) (ServiceRow, error) {
			var r ServiceRow
			err := rows.Scan(&r.ServiceNo, &r.Direction, &r.Operator, &r.Category,
				&r.OriginCode, &r.DestinationCode, &r.LoopDesc)
			return r, err
		})
}

// RailStations returns the raw rail station table in import order.
func (db *DB) RailStations(ctx context.Context) ([]stops.RawRecord, error) {
	return queryAll(ctx, db, `SELECT code, name, x, y FROM rail_stations ORDER BY id`,
		func(rows *sql.Rows) (stops.RawRecord, error) {
			var r stops.RawRecord
			err := rows.Scan(&r.Code, &r.Name, &r.X, &r.Y)
			return r, err
		})
}

// RailRoutes returns the raw rail route table in import order.
func (db *DB) RailRoutes(ctx context.Context) ([]routes.RawRailRow, error) {
	return queryAll(ctx, db, `SELECT line_name, station_name, station_code FROM rail_routes ORDER BY id`,
		func(rows *sql.Rows) (routes.RawRailRow, error) {
			var r routes.RawRailRow
			err := rows.Scan(&r.LineName, &r.StationName, &r.StationCode)
			return r, err
		})
}

// BusStopVolumes returns the raw passenger volume by stop table in import
// order.
func (db *DB) BusStopVolumes(ctx context.Context) ([]volume.RawStopRow, error) {
	return queryAll(ctx, db, `SELECT day_type, hour, code, tap_in, tap_out FROM bus_stop_volumes ORDER BY id`,
		func(rows *sql.Rows) (volume.RawStopRow, error) {
			var r volume.RawStopRow
			err := rows.Scan(&r.DayType, &r.Hour, &r.Code, &r.TapIn, &r.TapOut)
			return r, err
		})
}

// BusODTrips returns the raw origin-destination trip table in import order.
func (db *DB) BusODTrips(ctx context.Context) ([]volume.RawODRow, error) {
	return queryAll(ctx, db, `SELECT day_type, hour, origin, destination, trips FROM bus_od_trips ORDER BY id`,
		func(rows *sql.Rows) (volume.RawODRow, error) {
			var r volume.RawODRow
			err := rows.Scan(&r.DayType, &r.Hour, &r.Origin, &r.Destination, &r.Trips)
			return r, err
		})
}

func queryAll[T any](ctx context.Context, db *DB, query string, scan func(*sql.Rows) (T, error), args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
