package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"transitnet/internal/network"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNoBuild is returned when no network has been built for a kind.
var ErrNoBuild = errors.New("storage: no network build")

// Build describes one saved network build.
type Build struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Mode      string          `json:"mode"`
	CreatedAt time.Time       `json:"created_at"`
	Nodes     int             `json:"nodes"`
	Edges     int             `json:"edges"`
	Report    json.RawMessage `json:"report"`
}

// SaveBuild stores a built network under a fresh build id. report is any
// JSON-encodable summary of the run.
func (db *DB) SaveBuild(ctx context.Context, kind, mode string, nodes []network.NodeRow, edges []network.EdgeRow, report any) (*Build, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	b := &Build{
		ID:        uuid.NewString(),
		Kind:      kind,
		Mode:      mode,
		CreatedAt: time.Now().UTC(),
		Nodes:     len(nodes),
		Edges:     len(edges),
		Report:    raw,
	}

	err = db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO network_builds (id, kind, mode, created_at, node_count, edge_count, report)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Kind, b.Mode, b.CreatedAt.Format(timeLayout), b.Nodes, b.Edges, string(raw)); err != nil {
			return fmt.Errorf("insert build: %w", err)
		}
		if err := insertAll(ctx, tx,
			`INSERT INTO network_nodes (build_id, code, lon, lat, services, service_count)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			nodes, func(n network.NodeRow) []any {
				return []any{b.ID, n.ID, n.Lon, n.Lat, n.Services, n.ServiceCount}
			}); err != nil {
			return fmt.Errorf("insert nodes: %w", err)
		}
		if err := insertAll(ctx, tx,
			`INSERT INTO network_edges (build_id, source, target, edge_key, distance, services, service_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			edges, func(e network.EdgeRow) []any {
				return []any{b.ID, e.Source, e.Target, e.Key, e.Distance, e.Services, e.ServiceCount}
			}); err != nil {
			return fmt.Errorf("insert edges: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	db.logger.Info("network build saved", "id", b.ID, "kind", kind, "nodes", b.Nodes, "edges", b.Edges)
	return b, nil
}

// LatestBuild returns the most recent build of kind.
func (db *DB) LatestBuild(ctx context.Context, kind string) (*Build, error) {
	var (
		b       Build
		created string
		report  string
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, kind, mode, created_at, node_count, edge_count, report
		 FROM network_builds WHERE kind = ? ORDER BY created_at DESC LIMIT 1`, kind).
		Scan(&b.ID, &b.Kind, &b.Mode, &created, &b.Nodes, &b.Edges, &report)
	if err == sql.ErrNoRows {
		return nil, ErrNoBuild
	}
	if err != nil {
		return nil, fmt.Errorf("latest build %s: %w", kind, err)
	}
	b.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	b.Report = json.RawMessage(report)
	return &b, nil
}

// BuildTables loads the node and edge tables of a build in export order.
func (db *DB) BuildTables(ctx context.Context, buildID string) ([]network.NodeRow, []network.EdgeRow, error) {
	nodes, err := queryAll(ctx, db,
		`SELECT code, lon, lat, services, service_count FROM network_nodes
		 WHERE build_id = ? ORDER BY code`,
		func(rows *sql.Rows) (network.NodeRow, error) {
			var (
				n        network.NodeRow
				lon, lat sql.NullFloat64
			)
			if err := rows.Scan(&n.ID, &lon, &lat, &n.Services, &n.ServiceCount); err != nil {
				return n, err
			}
			if lon.Valid && lat.Valid {
				n.Lon, n.Lat = &lon.Float64, &lat.Float64
			}
			return n, nil
		}, buildID)
	if err != nil {
		return nil, nil, fmt.Errorf("load nodes: %w", err)
	}

	edges, err := queryAll(ctx, db,
		`SELECT source, target, edge_key, distance, services, service_count FROM network_edges
		 WHERE build_id = ?`,
		func(rows *sql.Rows) (network.EdgeRow, error) {
			var e network.EdgeRow
			err := rows.Scan(&e.Source, &e.Target, &e.Key, &e.Distance, &e.Services, &e.ServiceCount)
			return e, err
		}, buildID)
	if err != nil {
		return nil, nil, fmt.Errorf("load edges: %w", err)
	}
	network.SortEdgeRows(edges)
	return nodes, edges, nil
}

// PruneBuilds deletes all but the newest keep builds of kind.
func (db *DB) PruneBuilds(ctx context.Context, kind string, keep int) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM network_builds WHERE kind = ? AND id NOT IN (
			SELECT id FROM network_builds WHERE kind = ? ORDER BY created_at DESC LIMIT ?)`,
		kind, kind, keep)
	if err != nil {
		return 0, fmt.Errorf("prune builds %s: %w", kind, err)
	}
	return res.RowsAffected()
}

// Snapshot is a saved build together with its exported tables.
type Snapshot struct {
	Build *Build            `json:"build"`
	Nodes []network.NodeRow `json:"nodes"`
	Edges []network.EdgeRow `json:"edges"`
}

// LoadSnapshot returns the latest build of kind with its tables.
func (db *DB) LoadSnapshot(ctx context.Context, kind string) (*Snapshot, error) {
	b, err := db.LatestBuild(ctx, kind)
	if err != nil {
		return nil, err
	}
	nodes, edges, err := db.BuildTables(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Build: b, Nodes: nodes, Edges: edges}, nil
}
