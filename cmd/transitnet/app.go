package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"transitnet/internal/cache"
	"transitnet/internal/config"
	"transitnet/internal/datamall"
	"transitnet/internal/ingest"
	"transitnet/internal/logging"
	"transitnet/internal/network"
	"transitnet/internal/pipeline"
	"transitnet/internal/realtime"
	"transitnet/internal/server"
	"transitnet/internal/storage"
	"transitnet/internal/volume"
)

type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db        *storage.DB
	redis     *cache.Redis // nil when the memory store is used
	nets      *cache.Networks
	scheduler *ingest.Scheduler
	corr      *config.Corrections
	join      volume.JoinMode
	alerts    *realtime.Store
	fetcher   *realtime.Fetcher // nil without an alerts feed
}

// Run modes.
const (
	modeFetch = "fetch"
	modeBuild = "build"
	modeServe = "serve"
)

var errUnknownMode = errors.New("unknown mode")

// parseMode validates a mode argument; empty means serve.
func parseMode(s string) (string, error) {
	switch s {
	case "":
		return modeServe, nil
	case modeFetch, modeBuild, modeServe:
		return s, nil
	}
	return "", fmt.Errorf("%w %q", errUnknownMode, s)
}

func parseKinds(s string) ([]string, error) {
	if s == "all" {
		return []string{pipeline.Bus, pipeline.Rail}, nil
	}
	if _, err := network.ParseKind(s); err != nil {
		return nil, err
	}
	return []string{s}, nil
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	corr := config.DefaultCorrections()
	if cfg.CorrectionsPath != "" {
		var err error
		if corr, err = config.LoadCorrections(cfg.CorrectionsPath); err != nil {
			return nil, err
		}
	}

	join, err := volume.ParseJoin(cfg.VolumeJoin)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db, corr: corr, join: join, alerts: realtime.NewStore()}

	var store cache.Store = cache.NewMemory()
	if cfg.RedisAddr != "" {
		r, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			a.redis = r
			store = r
		}
	}
	a.nets = cache.NewNetworks(store, db, cfg.CacheTTL, logger)

	src := ingest.Sources{
		RailDataset:          cfg.RailDataset,
		BusStopDataset:       cfg.BusStopDataset,
		VolumeMonth:          cfg.VolumeMonth,
		BusStopsPath:         filepath.Join(cfg.DataDir, ingest.BusStopsFile),
		BusStopLocationsPath: filepath.Join(cfg.DataDir, ingest.BusStopLocationsFile),
		BusRoutesPath:        filepath.Join(cfg.DataDir, ingest.BusRoutesFile),
		BusStopVolumePath:    filepath.Join(cfg.DataDir, ingest.BusStopVolumeFile),
		BusODPath:            filepath.Join(cfg.DataDir, ingest.BusODFile),
		RailStationsPath:     filepath.Join(cfg.DataDir, ingest.RailStationsFile),
		RailRoutesPath:       filepath.Join(cfg.DataDir, ingest.RailRoutesFile),
	}
	if cfg.DataMallKey != "" {
		src.DataMall = datamall.NewClient(cfg.DataMallURL, cfg.DataMallKey, cfg.DataMallPageMax, cfg.CacheTTL, logger)
	}
	if cfg.GTFSURL != "" {
		src.GTFS = ingest.NewDownloader(cfg.GTFSURL, cfg.DataDir, "gtfs-*.zip", logger)
	}
	a.scheduler = ingest.NewScheduler(src, db, cfg.FetchInterval, logger)

	if cfg.AlertsURL != "" {
		a.fetcher = realtime.NewFetcher(cfg.AlertsURL, a.alerts, logger)
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		logging.SafeClose(a.redis, a.logger, "redis")
	}
	logging.SafeClose(a.db, a.logger, "database")
}

func (a *app) fetch(ctx context.Context) error {
	start := time.Now()
	if err := a.scheduler.Update(ctx); err != nil {
		return err
	}
	logging.LogOperation(a.logger, "fetch complete", slog.Duration("duration", time.Since(start)))
	return nil
}

func (a *app) build(ctx context.Context, kinds []string) error {
	if err := a.scheduler.EnsureData(ctx); err != nil {
		return err
	}
	if a.fetcher != nil {
		if err := a.fetcher.Fetch(ctx); err != nil {
			a.logger.Warn("fetch alerts failed, building without closed stops", "error", err)
		}
	}
	for _, kind := range kinds {
		if err := a.buildKind(ctx, kind); err != nil {
			return fmt.Errorf("build %s: %w", kind, err)
		}
	}
	return nil
}

func (a *app) buildKind(ctx context.Context, kind string) error {
	start := time.Now()
	in, err := pipeline.Load(ctx, a.db, kind)
	if err != nil {
		return err
	}
	if len(in.Stops) == 0 && len(in.StopLocations) == 0 {
		a.logger.Warn("no stop data, skipping network", "kind", kind)
		return nil
	}

	closed := a.alerts.ClosedStops()
	res, err := pipeline.Run(in, pipeline.Options{
		Kind:        kind,
		MultiEdge:   a.cfg.MultiEdge,
		OuterJoin:   a.cfg.OuterJoin,
		Splice:      a.cfg.Splice,
		Corrections: a.corr,
		ClosedStops: closed,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	if _, err := pipeline.WriteFiles(a.cfg.OutDir, res, a.logger); err != nil {
		return err
	}
	if kind == pipeline.Bus {
		if err := a.buildVolumes(ctx, res); err != nil {
			return err
		}
	}
	snap, err := pipeline.Publish(ctx, a.db, a.nets, res, a.cfg.KeepBuilds, a.logger)
	if err != nil {
		return err
	}

	logging.LogOperation(a.logger, "network built",
		slog.String("kind", kind),
		slog.String("build", snap.Build.ID),
		slog.String("mode", res.Mode()),
		slog.Int("nodes", len(res.Nodes)),
		slog.Int("edges", len(res.Edges)),
		slog.Int("closed_stops", len(closed)),
		slog.Int("dropped_routes", res.Report.Routes.Input-res.Report.Routes.Kept),
		slog.Int("distance_conflicts", res.Report.Build.DistanceConflicts),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// buildVolumes joins the stored bus passenger volumes to the stops of res
// and exports them. Nothing is written when no volumes were imported.
func (a *app) buildVolumes(ctx context.Context, res *pipeline.Result) error {
	in, err := pipeline.LoadVolumes(ctx, a.db)
	if err != nil {
		return err
	}
	if in.Empty() {
		return nil
	}
	vr := pipeline.RunVolumes(in, res.Registry, a.join)
	_, err = pipeline.WriteVolumeFiles(a.cfg.OutDir, res.Kind, vr, a.logger)
	return err
}

func (a *app) serve(ctx context.Context, kinds []string) error {
	if err := a.scheduler.EnsureData(ctx); err != nil {
		a.logger.Error("initial import failed", "error", err)
	}
	if a.fetcher != nil {
		go a.fetcher.Start(ctx, a.cfg.AlertsInterval)
	}

	for _, kind := range kinds {
		_, err := a.db.LatestBuild(ctx, kind)
		if errors.Is(err, storage.ErrNoBuild) {
			if err := a.buildKind(ctx, kind); err != nil {
				a.logger.Error("initial build failed", "kind", kind, "error", err)
			}
		}
	}

	a.scheduler.OnUpdate(func(ctx context.Context) {
		for _, kind := range kinds {
			if err := a.buildKind(ctx, kind); err != nil {
				a.logger.Error("rebuild failed", "kind", kind, "error", err)
			}
		}
	})
	go a.scheduler.StartBackground(ctx)

	return server.New(a.cfg.Port, a.nets, a.logger).ListenAndServe(ctx)
}
