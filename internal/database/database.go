// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

// Package database wraps the embedded DuckDB analytical store.
//
// One schema (wb) holds two raw tables replaced wholesale on every ETL
// run (wb.raw_fert, wb.raw_country), the canonical wb.fertilizer_clean
// table derived from them, and the wb.etl_runs audit table. The raw
// tables are internal intermediate state: nothing outside the cleaning
// transform reads them. Every consumer-facing query reads only the
// canonical table, with bound placeholders for all parameters.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/agrodata/fertistat/internal/config"
	"github.com/agrodata/fertistat/internal/logging"
)

// Sentinel errors distinguishing "no data" and usage faults from query
// execution errors.
var (
	// ErrNoRawData indicates a cleaning run was attempted while a raw
	// table is empty, which is a usage error: fetch must precede rebuild.
	ErrNoRawData = errors.New("raw table is empty")
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// Open creates a DuckDB connection and initializes the schema. Callers
// own the returned handle and must Close it; the ETL pipeline opens and
// closes the store per run, the API server holds one handle for its
// lifetime.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// configureConnectionPool applies pool limits suited to an embedded
// single-writer store.
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// initialize creates the wb schema and the etl_runs audit table. The raw
// and canonical tables are created by the ETL stages themselves with
// drop-and-recreate semantics.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS wb`,
		`CREATE TABLE IF NOT EXISTS wb.etl_runs (
			run_id          VARCHAR PRIMARY KEY,
			started_at      TIMESTAMP NOT NULL,
			finished_at     TIMESTAMP NOT NULL,
			fert_records    INTEGER NOT NULL,
			country_records INTEGER NOT NULL,
			clean_rows      BIGINT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema init failed: %w", err)
		}
	}

	return nil
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// closeQuietly closes an io.Closer-like resource, logging failures at
// debug level only.
func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Debug().Err(err).Msg("Failed to close database connection")
	}
}
