package cache

import (
	"context"
	"log/slog"
	"time"

	"transitnet/internal/storage"
)

// NetworkKey is the cache key of the latest snapshot of kind.
func NetworkKey(kind string) string {
	return "network:" + kind
}

// Networks caches network snapshots in front of the database.
type Networks struct {
	store  Store
	db     *storage.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewNetworks creates a snapshot cache. A non-positive ttl keeps entries
// until they are replaced.
func NewNetworks(store Store, db *storage.DB, ttl time.Duration, logger *slog.Logger) *Networks {
	return &Networks{
		store:  store,
		db:     db,
		ttl:    ttl,
		logger: logger.With("component", "network_cache"),
	}
}

// Put stores snap as the latest snapshot of its kind.
func (n *Networks) Put(ctx context.Context, snap *storage.Snapshot) error {
	return SetJSONCompressed(ctx, n.store, NetworkKey(snap.Build.Kind), snap, n.ttl)
}

// Get returns the latest snapshot of kind, loading it from the database
// on a miss. Cache failures fall through to the database.
func (n *Networks) Get(ctx context.Context, kind string) (*storage.Snapshot, error) {
	var snap storage.Snapshot
	ok, err := GetJSONCompressed(ctx, n.store, NetworkKey(kind), &snap)
	if err != nil {
		n.logger.Warn("cache read failed", "kind", kind, "error", err)
	}
	if ok {
		return &snap, nil
	}

	loaded, err := n.db.LoadSnapshot(ctx, kind)
	if err != nil {
		return nil, err
	}
	if err := n.Put(ctx, loaded); err != nil {
		n.logger.Warn("cache write failed", "kind", kind, "error", err)
	}
	return loaded, nil
}

// Invalidate drops the cached snapshot of kind.
func (n *Networks) Invalidate(ctx context.Context, kind string) error {
	return n.store.Delete(ctx, NetworkKey(kind))
}
