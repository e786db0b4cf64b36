// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Command churnpipe runs the subscriber churn risk pipeline and serves
// its results.
//
// # Subcommands
//
//	churnpipe ingest          Import the raw CSV inputs into DuckDB
//	churnpipe build-features  Derive one feature row per subscriber
//	churnpipe train           Fit the model and persist the bundle
//	churnpipe score           Score every subscriber against the bundle
//	churnpipe merge           Join profiles with scores into the final table
//	churnpipe run             Execute all stages in order
//	churnpipe serve           Serve the read-only risk API
//
// # Configuration
//
// Configuration is layered: built-in defaults, then an optional YAML
// file (CHURNPIPE_CONFIG or ./config.yaml), then CHURNPIPE_*
// environment variables. For example:
//
//	CHURNPIPE_DATABASE_PATH=data/churnpipe.db \
//	CHURNPIPE_LOG_LEVEL=debug \
//	churnpipe run
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/streamlytics/churnpipe/internal/api"
	"github.com/streamlytics/churnpipe/internal/config"
	"github.com/streamlytics/churnpipe/internal/database"
	"github.com/streamlytics/churnpipe/internal/logging"
	"github.com/streamlytics/churnpipe/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(db, cfg)

	switch cmd {
	case "ingest":
		err = p.Ingest(ctx)
	case "build-features":
		err = p.BuildFeatures(ctx)
	case "train":
		err = p.Train(ctx)
	case "score":
		err = p.Score(ctx)
	case "merge":
		err = p.MergeResults(ctx)
	case "run":
		err = p.Run(ctx)
	case "serve":
		err = api.NewServer(&cfg.Server, db).Run(ctx)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "churnpipe: unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		logging.Fatal().Err(err).Str("command", cmd).Msg("Command failed")
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: churnpipe <command>

Commands:
  ingest          Import the raw CSV inputs into DuckDB
  build-features  Derive one feature row per subscriber
  train           Fit the model and persist the bundle
  score           Score every subscriber against the bundle
  merge           Join profiles with scores into the final table
  run             Execute all stages in order
  serve           Serve the read-only risk API
  help            Show this message
`)
}
