package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"transitnet/internal/cache"
	"transitnet/internal/logging"
	"transitnet/internal/network"
	"transitnet/internal/storage"
)

// Output file names written into the per-network directory.
const (
	NodesFile      = "nodes.csv"
	EdgesFile      = "edges.csv"
	NetworkGeoJSON = "network.geojson"
	RoutesGeoJSON  = "routes.geojson"
)

// WriteFiles exports res into dir/<kind>/ and returns the written paths.
func WriteFiles(dir string, res *Result, logger *slog.Logger) ([]string, error) {
	out := filepath.Join(dir, res.Kind)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	mode := res.Graph.Mode()
	paths, err := writeAll(out, []namedWriter{
		{NodesFile, func(w io.Writer) error { return network.WriteNodesCSV(w, res.Nodes) }},
		{EdgesFile, func(w io.Writer) error { return network.WriteEdgesCSV(w, res.Edges, mode) }},
		{NetworkGeoJSON, func(w io.Writer) error {
			return json.NewEncoder(w).Encode(network.TablesGeoJSON(res.Nodes, res.Edges))
		}},
		{RoutesGeoJSON, func(w io.Writer) error {
			return json.NewEncoder(w).Encode(network.RouteLinesGeoJSON(res.Lines))
		}},
	}, logger)
	if err != nil {
		return paths, err
	}
	logger.Info("network files written", "kind", res.Kind, "dir", out, "files", len(paths))
	return paths, nil
}

type namedWriter struct {
	name  string
	write func(io.Writer) error
}

func writeAll(dir string, writers []namedWriter, logger *slog.Logger) ([]string, error) {
	paths := make([]string, 0, len(writers))
	for _, wr := range writers {
		path := filepath.Join(dir, wr.name)
		if err := writeFile(path, wr.write, logger); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error, logger *slog.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		logging.SafeClose(f, logger, "close "+path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Publish saves res as the latest build of its kind, prunes old builds
// beyond keep (0 keeps all) and refreshes the snapshot cache when nets is
// not nil. If the cache cannot be refreshed the cached snapshot is dropped so
// readers fall through to the database.
func Publish(ctx context.Context, db *storage.DB, nets *cache.Networks, res *Result, keep int, logger *slog.Logger) (*storage.Snapshot, error) {
	b, err := db.SaveBuild(ctx, res.Kind, res.Mode(), res.Nodes, res.Edges, res.Report)
	if err != nil {
		return nil, err
	}
	if keep > 0 {
		n, err := db.PruneBuilds(ctx, res.Kind, keep)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			logger.Info("old builds pruned", "kind", res.Kind, "count", n)
		}
	}

	snap := &storage.Snapshot{Build: b, Nodes: res.Nodes, Edges: res.Edges}
	if nets != nil {
		if err := nets.Put(ctx, snap); err != nil {
			logging.LogError(logger, "snapshot cache update failed", err, slog.String("kind", res.Kind))
			if err := nets.Invalidate(ctx, res.Kind); err != nil {
				logging.LogError(logger, "snapshot cache invalidation failed", err, slog.String("kind", res.Kind))
			}
		}
	}
	return snap, nil
}
