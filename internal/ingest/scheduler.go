package ingest

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"transitnet/internal/datamall"
	"transitnet/internal/storage"
)

// File names looked up in the data directory.
const (
	BusStopsFile         = "bus_stops.csv"
	BusStopLocationsFile = "bus_stop_locations.csv"
	BusRoutesFile        = "bus_routes.csv"
	RailStationsFile     = "rail_stations.csv"
	RailRoutesFile       = "rail_routes.csv"
	BusStopVolumeFile    = "bus_stop_volume.csv"
	BusODFile            = "bus_od.csv"
)

// Sources selects where an update pulls data from. Nil or empty fields are
// skipped.
type Sources struct {
	DataMall       *datamall.Client
	GTFS           *Downloader
	RailDataset    string // DataMall static dataset id for rail stations
	BusStopDataset string // DataMall static dataset id for bus stop locations
	VolumeMonth    string // DataMall passenger volume month, YYYYMM

	BusStopsPath         string
	BusStopLocationsPath string
	BusRoutesPath        string
	RailStationsPath     string
	RailRoutesPath       string
	BusStopVolumePath    string
	BusODPath            string
}

// Scheduler runs imports on start and at a fixed interval.
type Scheduler struct {
	src      Sources
	importer *Importer
	db       *storage.DB
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex // serializes updates
	onUpdate func(context.Context)
}

// NewScheduler creates a Scheduler.
func NewScheduler(src Sources, db *storage.DB, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		src:      src,
		importer: NewImporter(db, logger),
		db:       db,
		interval: interval,
		logger:   logger,
	}
}

// EnsureData runs an update if the store holds no route data.
func (s *Scheduler) EnsureData(ctx context.Context) error {
	if s.db.HasData(ctx) {
		s.logger.Info("route data already present")
		return nil
	}
	s.logger.Info("no route data found, performing initial import")
	return s.Update(ctx)
}

// Update pulls every configured source into the store.
func (s *Scheduler) Update(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.src.DataMall != nil:
		if err := s.importer.ImportDataMall(ctx, s.src.DataMall); err != nil {
			return err
		}
	case s.src.GTFS != nil:
		if err := s.updateGTFS(ctx); err != nil {
			return err
		}
	case exists(s.src.BusStopsPath) && exists(s.src.BusRoutesPath):
		if err := s.importer.ImportBusFiles(ctx, s.src.BusStopsPath, s.src.BusRoutesPath); err != nil {
			return err
		}
	}

	if s.src.BusStopLocationsPath != "" {
		if err := s.importer.ImportBusStopLocations(ctx, s.src.BusStopLocationsPath); err != nil {
			return err
		}
	}
	if s.src.DataMall != nil && s.src.BusStopDataset != "" {
		if err := s.importer.ImportBusStopDataset(ctx, s.src.DataMall, s.src.BusStopDataset); err != nil {
			return err
		}
	}

	if s.src.BusStopVolumePath != "" || s.src.BusODPath != "" {
		if err := s.importer.ImportVolumeFiles(ctx, s.src.BusStopVolumePath, s.src.BusODPath); err != nil {
			return err
		}
	}
	if s.src.DataMall != nil && s.src.VolumeMonth != "" {
		if err := s.importer.ImportVolumes(ctx, s.src.DataMall, s.src.VolumeMonth); err != nil {
			return err
		}
	}

	if s.src.RailStationsPath != "" || s.src.RailRoutesPath != "" {
		if err := s.importer.ImportRailFiles(ctx, s.src.RailStationsPath, s.src.RailRoutesPath); err != nil {
			return err
		}
	}
	if s.src.DataMall != nil && s.src.RailDataset != "" {
		if err := s.importer.ImportRailDataset(ctx, s.src.DataMall, s.src.RailDataset); err != nil {
			return err
		}
	}
	return nil
}

// OnUpdate registers fn to run after every successful background update.
func (s *Scheduler) OnUpdate(fn func(context.Context)) {
	s.onUpdate = fn
}

// StartBackground runs Update every interval until ctx is cancelled.
func (s *Scheduler) StartBackground(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.logger.Info("background import scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Update(ctx); err != nil {
				s.logger.Error("background import failed", "error", err)
				continue
			}
			if s.onUpdate != nil {
				s.onUpdate(ctx)
			}
		case <-ctx.Done():
			s.logger.Info("background import scheduler stopped")
			return
		}
	}
}

// updateGTFS downloads the feed only when its validators changed.
func (s *Scheduler) updateGTFS(ctx context.Context) error {
	lastModified, _ := s.db.GetMetadata(ctx, MetaGTFSModified)
	etag, _ := s.db.GetMetadata(ctx, MetaGTFSETag)

	if s.db.HasData(ctx) {
		changed, err := s.src.GTFS.Check(ctx, Validators{LastModified: lastModified, ETag: etag})
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}

	zipPath, v, err := s.src.GTFS.Download(ctx)
	if err != nil {
		return err
	}
	defer os.Remove(zipPath)

	return s.importer.ImportGTFS(ctx, zipPath, v)
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
