package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"time"

	"transitnet/internal/datamall"
	"transitnet/internal/gtfs"
	"transitnet/internal/routes"
	"transitnet/internal/storage"
	"transitnet/internal/volume"
)

// Metadata keys written by the importer.
const (
	MetaDataMallFetched = "datamall_fetched_at"
	MetaGTFSModified    = "gtfs_last_modified"
	MetaGTFSETag        = "gtfs_etag"
)

// Importer writes raw datasets into the store.
type Importer struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(db *storage.DB, logger *slog.Logger) *Importer {
	return &Importer{db: db, logger: logger}
}

// ImportDataMall fetches the bus datasets and replaces the bus tables.
func (imp *Importer) ImportDataMall(ctx context.Context, c *datamall.Client) error {
	start := time.Now()

	busStops, err := c.BusStops(ctx)
	if err != nil {
		return fmt.Errorf("fetch bus stops: %w", err)
	}
	busRoutes, err := c.BusRoutes(ctx)
	if err != nil {
		return fmt.Errorf("fetch bus routes: %w", err)
	}
	services, err := c.BusServices(ctx)
	if err != nil {
		return fmt.Errorf("fetch bus services: %w", err)
	}

	if err := imp.db.ReplaceBusStops(ctx, datamall.Records(busStops)); err != nil {
		return fmt.Errorf("store bus stops: %w", err)
	}
	if err := imp.db.ReplaceBusRoutes(ctx, datamall.Rows(busRoutes)); err != nil {
		return fmt.Errorf("store bus routes: %w", err)
	}
	if err := imp.db.ReplaceBusServices(ctx, serviceRows(services)); err != nil {
		return fmt.Errorf("store bus services: %w", err)
	}
	if err := imp.db.SetMetadata(ctx, MetaDataMallFetched, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("set metadata: %w", err)
	}

	imp.logger.Info("DataMall import complete",
		"duration", time.Since(start).Round(time.Millisecond),
		"stops", len(busStops),
		"route_rows", len(busRoutes),
		"services", len(services),
	)
	return nil
}

// ImportBusFiles replaces the bus tables from CSV files with DataMall
// column names.
func (imp *Importer) ImportBusFiles(ctx context.Context, stopsPath, routesPath string) error {
	stopRows, err := ParseCSVFile[BusStopRow](stopsPath)
	if err != nil {
		return err
	}
	routeRows, err := ParseCSVFile[routes.RawBusRow](routesPath)
	if err != nil {
		return err
	}
	if err := imp.db.ReplaceBusStops(ctx, BusStopRecords(stopRows)); err != nil {
		return fmt.Errorf("store bus stops: %w", err)
	}
	if err := imp.db.ReplaceBusRoutes(ctx, routeRows); err != nil {
		return fmt.Errorf("store bus routes: %w", err)
	}
	return nil
}

// ImportRailFiles replaces the rail tables from a station CSV and a route
// CSV. Missing files are skipped.
func (imp *Importer) ImportRailFiles(ctx context.Context, stationsPath, routesPath string) error {
	stations, err := ParseCSVFile[StationRow](stationsPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		imp.logger.Info("rail station file not found, skipping", "path", stationsPath)
	case err != nil:
		return err
	default:
		if err := imp.db.ReplaceRailStations(ctx, StationRecords(stations)); err != nil {
			return fmt.Errorf("store rail stations: %w", err)
		}
	}

	railRoutes, err := ParseCSVFile[routes.RawRailRow](routesPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		imp.logger.Info("rail route file not found, skipping", "path", routesPath)
	case err != nil:
		return err
	default:
		if err := imp.db.ReplaceRailRoutes(ctx, railRoutes); err != nil {
			return fmt.Errorf("store rail routes: %w", err)
		}
	}
	return nil
}

// ImportRailDataset replaces the rail station table from a DataMall static
// dataset archive.
func (imp *Importer) ImportRailDataset(ctx context.Context, c *datamall.Client, id string) error {
	archive, err := c.StaticDataset(ctx, datamall.GeospatialEndpoint, url.Values{"ID": {id}})
	if err != nil {
		return err
	}
	rows, name, err := ParseZipCSV[StationRow](archive)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", id, err)
	}
	if err := imp.db.ReplaceRailStations(ctx, StationRecords(rows)); err != nil {
		return fmt.Errorf("store rail stations: %w", err)
	}
	imp.logger.Info("rail stations imported", "dataset", id, "file", name, "rows", len(rows))
	return nil
}

// ImportBusStopLocations replaces the static bus stop location table from a
// CSV file. A missing file is skipped.
func (imp *Importer) ImportBusStopLocations(ctx context.Context, path string) error {
	rows, err := ParseCSVFile[BusStopLocationRow](path)
	if errors.Is(err, fs.ErrNotExist) {
		imp.logger.Info("bus stop location file not found, skipping", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	if err := imp.db.ReplaceBusStopLocations(ctx, BusStopLocationRecords(rows)); err != nil {
		return fmt.Errorf("store bus stop locations: %w", err)
	}
	return nil
}

// ImportBusStopDataset replaces the static bus stop location table from a
// DataMall static dataset archive.
func (imp *Importer) ImportBusStopDataset(ctx context.Context, c *datamall.Client, id string) error {
	archive, err := c.StaticDataset(ctx, datamall.GeospatialEndpoint, url.Values{"ID": {id}})
	if err != nil {
		return err
	}
	rows, name, err := ParseZipCSV[BusStopLocationRow](archive)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", id, err)
	}
	if err := imp.db.ReplaceBusStopLocations(ctx, BusStopLocationRecords(rows)); err != nil {
		return fmt.Errorf("store bus stop locations: %w", err)
	}
	imp.logger.Info("bus stop locations imported", "dataset", id, "file", name, "rows", len(rows))
	return nil
}

// ImportVolumeFiles replaces the passenger volume tables from a stop volume
// CSV and an origin-destination CSV. Missing files are skipped.
func (imp *Importer) ImportVolumeFiles(ctx context.Context, stopPath, odPath string) error {
	vols, err := ParseCSVFile[volume.RawStopRow](stopPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		imp.logger.Info("stop volume file not found, skipping", "path", stopPath)
	case err != nil:
		return err
	default:
		if err := imp.db.ReplaceBusStopVolumes(ctx, vols); err != nil {
			return fmt.Errorf("store stop volumes: %w", err)
		}
	}

	trips, err := ParseCSVFile[volume.RawODRow](odPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		imp.logger.Info("OD trip file not found, skipping", "path", odPath)
	case err != nil:
		return err
	default:
		if err := imp.db.ReplaceBusODTrips(ctx, trips); err != nil {
			return fmt.Errorf("store OD trips: %w", err)
		}
	}
	return nil
}

// ImportVolumes replaces the passenger volume tables with the DataMall
// archives of month (YYYYMM).
func (imp *Importer) ImportVolumes(ctx context.Context, c *datamall.Client, month string) error {
	params := url.Values{"Date": {month}}

	archive, err := c.StaticDataset(ctx, datamall.StopVolumeEndpoint, params)
	if err != nil {
		return err
	}
	vols, name, err := ParseZipCSV[volume.RawStopRow](archive)
	if err != nil {
		return fmt.Errorf("stop volumes %s: %w", month, err)
	}
	if err := imp.db.ReplaceBusStopVolumes(ctx, vols); err != nil {
		return fmt.Errorf("store stop volumes: %w", err)
	}
	imp.logger.Info("stop volumes imported", "month", month, "file", name, "rows", len(vols))

	archive, err = c.StaticDataset(ctx, datamall.ODVolumeEndpoint, params)
	if err != nil {
		return err
	}
	trips, name, err := ParseZipCSV[volume.RawODRow](archive)
	if err != nil {
		return fmt.Errorf("OD trips %s: %w", month, err)
	}
	if err := imp.db.ReplaceBusODTrips(ctx, trips); err != nil {
		return fmt.Errorf("store OD trips: %w", err)
	}
	imp.logger.Info("OD trips imported", "month", month, "file", name, "rows", len(trips))
	return nil
}

// ImportGTFS replaces the bus tables from a GTFS archive and records its
// validators.
func (imp *Importer) ImportGTFS(ctx context.Context, zipPath string, v Validators) error {
	t, err := gtfs.ParseZip(zipPath, imp.logger)
	if err != nil {
		return err
	}
	if err := imp.db.ReplaceBusStops(ctx, t.Stops); err != nil {
		return fmt.Errorf("store stops: %w", err)
	}
	if err := imp.db.ReplaceBusRoutes(ctx, t.Routes); err != nil {
		return fmt.Errorf("store routes: %w", err)
	}
	if v.LastModified != "" {
		if err := imp.db.SetMetadata(ctx, MetaGTFSModified, v.LastModified); err != nil {
			return fmt.Errorf("set last_modified: %w", err)
		}
	}
	if v.ETag != "" {
		if err := imp.db.SetMetadata(ctx, MetaGTFSETag, v.ETag); err != nil {
			return fmt.Errorf("set etag: %w", err)
		}
	}
	return nil
}

func serviceRows(in []datamall.BusService) []storage.ServiceRow {
	out := make([]storage.ServiceRow, len(in))
	for i, s := range in {
		out[i] = storage.ServiceRow{
			ServiceNo:       s.ServiceNo,
			Direction:       s.Direction,
			Operator:        s.Operator,
			Category:        s.Category,
			OriginCode:      s.OriginCode,
			DestinationCode: s.DestinationCode,
			LoopDesc:        s.LoopDesc,
		}
	}
	return out
}
