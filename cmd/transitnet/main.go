package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"transitnet/internal/config"
	"transitnet/internal/logging"
)

const usage = `usage: transitnet [flags] <fetch|build|serve>

  fetch   import bus and rail tables into the database
  build   build networks from the database and export them
  serve   keep data fresh and serve built networks over HTTP

flags:
`

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	kind := flag.String("kind", "all", "Network to build: bus, rail or all")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory with source CSV files and downloads")
	flag.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Directory for exported networks")
	flag.StringVar(&cfg.CorrectionsPath, "corrections", cfg.CorrectionsPath, "YAML correction list")
	flag.BoolVar(&cfg.MultiEdge, "multi-edge", cfg.MultiEdge, "Keep one edge per service")
	flag.BoolVar(&cfg.OuterJoin, "outer-join", cfg.OuterJoin, "Keep stops missing from the stop table")
	flag.BoolVar(&cfg.Splice, "splice", cfg.Splice, "Splice out stops without a location")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	cfg.LogLevel = config.ParseLevel(*logLevel, cfg.LogLevel)

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogJSON)

	mode, err := parseMode(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	kinds, err := parseKinds(*kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		logging.LogError(logger, "startup failed", err)
		os.Exit(1)
	}
	defer a.Close()

	switch mode {
	case modeFetch:
		err = a.fetch(ctx)
	case modeBuild:
		err = a.build(ctx, kinds)
	case modeServe:
		err = a.serve(ctx, kinds)
	}
	if err != nil {
		logging.LogError(logger, mode+" failed", err)
		a.Close()
		os.Exit(1)
	}
}
