// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

// Package etl orchestrates one wholesale rebuild of the analytical store:
// fetch indicator and country data, replace the raw tables, and derive
// the canonical table. The pipeline is an explicit entry point invoked by
// the CLI or a scheduled job, never a side effect of package loading.
// Each run is idempotent and replaces prior data entirely; there is no
// incremental update path.
package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agrodata/fertistat/internal/config"
	"github.com/agrodata/fertistat/internal/database"
	"github.com/agrodata/fertistat/internal/logging"
	"github.com/agrodata/fertistat/internal/metrics"
	"github.com/agrodata/fertistat/internal/models"
	"github.com/agrodata/fertistat/internal/worldbank"
)

// Pipeline runs the fetch-persist-clean sequence against a scoped store
// handle.
type Pipeline struct {
	client worldbank.ClientInterface
	dbCfg  *config.DatabaseConfig
}

// New creates a pipeline using the given client and database settings.
func New(client worldbank.ClientInterface, dbCfg *config.DatabaseConfig) *Pipeline {
	return &Pipeline{client: client, dbCfg: dbCfg}
}

// Run executes one full ETL run. The store is opened for the duration of
// the run and released before returning. A failure at any stage aborts
// the run; the caller may retry the whole operation.
func (p *Pipeline) Run(ctx context.Context) (*models.ETLRun, error) {
	run := models.ETLRun{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logging.Info().Str("run_id", run.RunID).Msg("ETL run started")

	fert, err := p.client.FetchIndicatorSeries(ctx)
	if err != nil {
		metrics.ETLRunsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("indicator fetch failed: %w", err)
	}
	metrics.ETLRecordsFetched.WithLabelValues("indicator").Add(float64(len(fert)))

	countries, err := p.client.FetchCountries(ctx)
	if err != nil {
		metrics.ETLRunsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("country metadata fetch failed: %w", err)
	}
	metrics.ETLRecordsFetched.WithLabelValues("country").Add(float64(len(countries)))

	db, err := database.Open(p.dbCfg)
	if err != nil {
		metrics.ETLRunsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close store after ETL run")
		}
	}()

	if err := db.PersistRaw(ctx, fert, countries); err != nil {
		metrics.ETLRunsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	cleanRows, err := db.RebuildClean(ctx)
	if err != nil {
		metrics.ETLRunsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	run.FinishedAt = time.Now().UTC()
	run.FertRecords = len(fert)
	run.CountryRecords = len(countries)
	run.CleanRows = cleanRows

	if err := db.InsertETLRun(ctx, run); err != nil {
		// The rebuild itself succeeded; a failed audit insert is logged,
		// not fatal.
		logging.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to record ETL run")
	}

	elapsed := run.FinishedAt.Sub(run.StartedAt)
	metrics.ETLRunsTotal.WithLabelValues("success").Inc()
	metrics.ETLDuration.Observe(elapsed.Seconds())

	logging.Info().
		Str("run_id", run.RunID).
		Int("fert_records", run.FertRecords).
		Int("country_records", run.CountryRecords).
		Int64("clean_rows", run.CleanRows).
		Dur("elapsed", elapsed).
		Msg("ETL run complete")

	return &run, nil
}
