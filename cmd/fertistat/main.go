// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

// Package main is the Fertistat entry point.
//
// Two subcommands cover the whole lifecycle:
//
//	fertistat etl    # fetch World Bank data and rebuild the store wholesale
//	fertistat serve  # serve the analytical query API over HTTP
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority last): built-in defaults, an optional YAML file
// (FERTISTAT_CONFIG or ./config.yaml), and environment variables such as
// DATABASE_PATH, WORLDBANK_INDICATOR, SERVER_PORT, LOGGING_LEVEL.
//
// The ETL pipeline runs to completion and exits; it is designed to be
// invoked explicitly from a shell or a scheduler, never as an import
// side effect. serve handles SIGINT/SIGTERM with graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/agrodata/fertistat/internal/api"
	"github.com/agrodata/fertistat/internal/config"
	"github.com/agrodata/fertistat/internal/database"
	"github.com/agrodata/fertistat/internal/etl"
	"github.com/agrodata/fertistat/internal/logging"
	"github.com/agrodata/fertistat/internal/worldbank"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fertistat: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})

	switch os.Args[1] {
	case "etl":
		if err := runETL(cfg); err != nil {
			logging.Fatal().Err(err).Msg("ETL run failed")
		}
	case "serve":
		if err := runServe(cfg); err != nil {
			logging.Fatal().Err(err).Msg("Server failed")
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: fertistat <command>

Commands:
  etl     Fetch World Bank data and rebuild the analytical store
  serve   Serve the analytical query API over HTTP`)
}

// runETL executes one wholesale rebuild and prints the run summary.
func runETL(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := worldbank.NewClient(&cfg.WorldBank)
	pipeline := etl.New(client, &cfg.Database)

	run, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %d indicator records, %d country entities, %d clean rows in %s\n",
		run.RunID, run.FertRecords, run.CountryRecords, run.CleanRows,
		run.FinishedAt.Sub(run.StartedAt).Round(1e6))
	return nil
}

// runServe opens the store and serves the query API until interrupted.
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close store")
		}
	}()

	router := api.NewRouter(db, &cfg.API)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
