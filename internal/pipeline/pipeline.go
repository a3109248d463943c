// Package pipeline runs the network construction stages over raw tables:
// stop registry, route normalization, graph build and graph cleanup.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"transitnet/internal/config"
	"transitnet/internal/geo"
	"transitnet/internal/network"
	"transitnet/internal/routes"
	"transitnet/internal/stops"
	"transitnet/internal/storage"
)

// Network names accepted by Run.
const (
	Bus  = "bus"
	Rail = "rail"
)

// Inputs are the raw tables one build reads.
type Inputs struct {
	Stops         []stops.RawRecord // WGS84 bus stops or SVY21 station platforms
	StopLocations []stops.RawRecord // optional SVY21 static bus stop locations
	BusRoutes     []routes.RawBusRow
	RailRoutes    []routes.RawRailRow
	Services      []storage.ServiceRow // optional, only used for the report
}

// Options configures a build.
type Options struct {
	Kind        string // Bus or Rail
	MultiEdge   bool
	OuterJoin   bool
	Splice      bool
	Corrections *config.Corrections // nil means the built-in list
	ClosedStops []string            // extra out-of-service stop codes
	Logger      *slog.Logger
}

// Report collects the per-stage reports of one build.
type Report struct {
	Stops      stops.Report            `json:"stops"`
	Locations  *stops.Report           `json:"locations,omitempty"`
	Routes     routes.Report           `json:"routes"`
	Resolve    *routes.Report          `json:"resolve,omitempty"`
	Build      network.BuildReport     `json:"build"`
	Normalize  network.NormalizeReport `json:"normalize"`
	Services   int                     `json:"services"`
	Categories map[string]int          `json:"categories,omitempty"`
}

// Result is a built and cleaned network with its export tables.
type Result struct {
	Kind     string
	Registry *stops.Table // stop or station table the graph was built on
	Graph    *network.Graph
	Nodes    []network.NodeRow
	Edges    []network.EdgeRow
	Lines    []network.RouteLine
	Report   Report
}

// Mode is the edge mode name recorded with the build.
func (r *Result) Mode() string {
	return r.Graph.Mode().String()
}

// Load reads the raw tables for kind from the store.
func Load(ctx context.Context, db *storage.DB, kind string) (Inputs, error) {
	var (
		in  Inputs
		err error
	)
	switch kind {
	case Bus:
		if in.Stops, err = db.BusStops(ctx); err != nil {
			return in, err
		}
		if in.StopLocations, err = db.BusStopLocations(ctx); err != nil {
			return in, err
		}
		if in.BusRoutes, err = db.BusRoutes(ctx); err != nil {
			return in, err
		}
		if in.Services, err = db.BusServices(ctx); err != nil {
			return in, err
		}
	case Rail:
		if in.Stops, err = db.RailStations(ctx); err != nil {
			return in, err
		}
		if in.RailRoutes, err = db.RailRoutes(ctx); err != nil {
			return in, err
		}
	default:
		_, err := network.ParseKind(kind)
		return in, err
	}
	return in, nil
}

// Run builds the network described by opts from in.
func Run(in Inputs, opts Options) (*Result, error) {
	kind, err := network.ParseKind(opts.Kind)
	if err != nil {
		return nil, err
	}
	corr := opts.Corrections
	if corr == nil {
		corr = config.DefaultCorrections()
	}
	corr = corr.WithClosedStops(opts.ClosedStops...)

	var (
		registry *stops.Table
		table    *routes.Table
		rep      Report
	)
	switch opts.Kind {
	case Bus:
		registry, rep.Stops, rep.Locations, err = busRegistry(in)
		if err != nil {
			return nil, err
		}
		table, rep.Routes = routes.NormalizeBus(in.BusRoutes, corr)
	case Rail:
		registry, rep.Stops, err = stops.NormalizeStations(geo.SVY21, in.Stops)
		if err != nil {
			return nil, fmt.Errorf("rail stations: %w", err)
		}
		table, rep.Routes = routes.NormalizeRail(in.RailRoutes, corr)
		var resolve routes.Report
		table, resolve = routes.ResolveStations(table, registry)
		rep.Resolve = &resolve
	}

	bopts := network.Options{Kind: kind, Logger: opts.Logger}
	if opts.MultiEdge {
		bopts.Mode = network.MultiEdge
	}
	if opts.OuterJoin {
		bopts.Join = network.OuterJoin
	}
	g, buildRep := network.Build(registry, table, bopts)
	rep.Build = buildRep
	rep.Normalize = network.Normalize(g, network.NormalizeOptions{Splice: opts.Splice})

	services := table.Services()
	rep.Services = len(services)
	rep.Categories = categories(services, in.Services)

	nodes, edges := network.Tables(g)
	return &Result{
		Kind:     opts.Kind,
		Registry: registry,
		Graph:    g,
		Nodes:    nodes,
		Edges:    edges,
		Lines:    network.RouteLines(registry, table),
		Report:   rep,
	}, nil
}

// busRegistry normalizes the API stop table. When static locations are
// present they are the primary source and API stops only fill in codes the
// static dataset lacks.
func busRegistry(in Inputs) (*stops.Table, stops.Report, *stops.Report, error) {
	api, rep, err := stops.Normalize(geo.WGS84, stops.BusColumns, in.Stops)
	if err != nil {
		return nil, rep, nil, fmt.Errorf("bus stops: %w", err)
	}
	if len(in.StopLocations) == 0 {
		return api, rep, nil, nil
	}

	static, locRep, err := stops.Normalize(geo.SVY21, stops.LocationColumns, in.StopLocations)
	if err != nil {
		return nil, rep, nil, fmt.Errorf("bus stop locations: %w", err)
	}
	merged, err := stops.Merge(static, api)
	if err != nil {
		return nil, rep, nil, fmt.Errorf("merge bus stops: %w", err)
	}
	return merged, rep, &locRep, nil
}

// categories counts the services of the network per service category.
// Services without a category row are counted as "".
func categories(services []string, rows []storage.ServiceRow) map[string]int {
	if len(rows) == 0 {
		return nil
	}
	byService := make(map[string]string, len(rows))
	for _, r := range rows {
		if _, ok := byService[r.ServiceNo]; !ok {
			byService[r.ServiceNo] = r.Category
		}
	}
	out := make(map[string]int)
	for _, s := range services {
		out[byService[s]]++
	}
	return out
}
