// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agrodata/fertistat/internal/logging"
	"github.com/agrodata/fertistat/internal/metrics"
	"github.com/agrodata/fertistat/internal/models"
)

// aggregateSentinel marks a country-metadata entity as a non-country
// grouping (World, income levels, regions-as-rows).
const aggregateSentinel = "Aggregates"

// PersistRaw replaces both raw tables with freshly fetched content.
// Each table is rebuilt inside its own transaction with drop-and-recreate
// semantics: after this call no trace of a previous snapshot remains.
func (db *DB) PersistRaw(ctx context.Context, fert []models.RawIndicatorRecord, countries []models.RawCountryRecord) error {
	start := time.Now()
	defer metrics.ObserveQuery("persist_raw", start)

	if err := db.replaceRawFert(ctx, fert); err != nil {
		return fmt.Errorf("failed to persist raw indicator data: %w", err)
	}
	if err := db.replaceRawCountry(ctx, countries); err != nil {
		return fmt.Errorf("failed to persist raw country data: %w", err)
	}

	logging.Info().
		Int("fert_records", len(fert)).
		Int("country_records", len(countries)).
		Dur("elapsed", time.Since(start)).
		Msg("Raw tables replaced")
	return nil
}

func (db *DB) replaceRawFert(ctx context.Context, records []models.RawIndicatorRecord) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx, `CREATE OR REPLACE TABLE wb.raw_fert (
		iso3         VARCHAR,
		country_name VARCHAR,
		date         VARCHAR,
		value        DOUBLE
	)`); err != nil {
		return fmt.Errorf("failed to recreate wb.raw_fert: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO wb.raw_fert (iso3, country_name, date, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var value sql.NullFloat64
		if rec.Value != nil {
			value = sql.NullFloat64{Float64: *rec.Value, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rec.ISO3, rec.CountryName, rec.Date, value); err != nil {
			return fmt.Errorf("failed to insert indicator record (iso3=%s date=%s): %w", rec.ISO3, rec.Date, err)
		}
	}

	return tx.Commit()
}

func (db *DB) replaceRawCountry(ctx context.Context, records []models.RawCountryRecord) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx, `CREATE OR REPLACE TABLE wb.raw_country (
		iso3   VARCHAR,
		iso2   VARCHAR,
		name   VARCHAR,
		region VARCHAR
	)`); err != nil {
		return fmt.Errorf("failed to recreate wb.raw_country: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO wb.raw_country (iso3, iso2, name, region) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var region sql.NullString
		if rec.Region != nil {
			region = sql.NullString{String: *rec.Region, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rec.ISO3, rec.ISO2, rec.Name, region); err != nil {
			return fmt.Errorf("failed to insert country record (iso3=%s): %w", rec.ISO3, err)
		}
	}

	return tx.Commit()
}

// RebuildClean derives the canonical wb.fertilizer_clean table from the
// current raw tables, replacing it wholesale, and returns the resulting
// row count.
//
// The transform keeps indicator rows with non-null values, keeps country
// rows whose region is present and not the aggregate sentinel, dedupes
// country metadata on ISO3 (QUALIFY guards against join fan-out), and
// inner-joins on ISO3 so aggregate codes without metadata drop out
// silently. The canonical name is the metadata name with the
// indicator-reported name as fallback; values are rounded to integer
// kg/ha.
//
// An empty raw table is a usage error and returns ErrNoRawData.
func (db *DB) RebuildClean(ctx context.Context) (int64, error) {
	start := time.Now()
	defer metrics.ObserveQuery("rebuild_clean", start)

	for _, table := range []string{"raw_fert", "raw_country"} {
		var count int64
		if err := db.conn.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM wb.%s`, table)).Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to inspect wb.%s: %w", table, err)
		}
		if count == 0 {
			return 0, fmt.Errorf("wb.%s: %w", table, ErrNoRawData)
		}
	}

	if dupes, err := db.duplicateCountryCodes(ctx); err != nil {
		return 0, err
	} else if dupes > 0 {
		logging.Warn().Int64("iso3_codes", dupes).Msg("Duplicate ISO3 codes in country metadata, deduplicating before join")
	}

	if _, err := db.conn.ExecContext(ctx, `
	CREATE OR REPLACE TABLE wb.fertilizer_clean AS
	WITH fert AS (
		SELECT
			iso3,
			country_name AS country_name_api,
			CAST(date AS INTEGER) AS year,
			CAST(value AS DOUBLE) AS kg_per_ha
		FROM wb.raw_fert
		WHERE value IS NOT NULL
	),
	countries AS (
		SELECT iso3, iso2, name, region
		FROM wb.raw_country
		WHERE region IS NOT NULL AND region <> '`+aggregateSentinel+`'
		QUALIFY ROW_NUMBER() OVER (PARTITION BY iso3 ORDER BY iso2, name) = 1
	)
	SELECT
		c.iso2,
		c.iso3,
		COALESCE(c.name, f.country_name_api) AS country_name,
		c.region,
		f.year,
		CAST(ROUND(f.kg_per_ha) AS INTEGER) AS kg_per_ha
	FROM fert f
	JOIN countries c USING (iso3)`); err != nil {
		return 0, fmt.Errorf("failed to rebuild wb.fertilizer_clean: %w", err)
	}

	var rows int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM wb.fertilizer_clean`).Scan(&rows); err != nil {
		return 0, fmt.Errorf("failed to count clean rows: %w", err)
	}

	logging.Info().Int64("rows", rows).Dur("elapsed", time.Since(start)).Msg("Canonical table rebuilt")
	return rows, nil
}

// duplicateCountryCodes counts ISO3 codes that appear more than once in
// the raw country metadata. The source guarantees uniqueness; a non-zero
// count means the upstream shape changed.
func (db *DB) duplicateCountryCodes(ctx context.Context) (int64, error) {
	var dupes int64
	err := db.conn.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM (
		SELECT iso3 FROM wb.raw_country GROUP BY iso3 HAVING COUNT(*) > 1
	)`).Scan(&dupes)
	if err != nil {
		return 0, fmt.Errorf("failed to check ISO3 uniqueness: %w", err)
	}
	return dupes, nil
}

// InsertETLRun records a completed pipeline run in the audit table.
func (db *DB) InsertETLRun(ctx context.Context, run models.ETLRun) error {
	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO wb.etl_runs (run_id, started_at, finished_at, fert_records, country_records, clean_rows)
	VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.FinishedAt, run.FertRecords, run.CountryRecords, run.CleanRows)
	if err != nil {
		return fmt.Errorf("failed to record ETL run: %w", err)
	}
	return nil
}

// ListETLRuns returns recorded pipeline runs, most recent first.
func (db *DB) ListETLRuns(ctx context.Context, limit int) ([]models.ETLRun, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT run_id, started_at, finished_at, fert_records, country_records, clean_rows
	FROM wb.etl_runs
	ORDER BY started_at DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ETL runs: %w", err)
	}
	defer rows.Close()

	runs := []models.ETLRun{}
	for rows.Next() {
		var run models.ETLRun
		if err := rows.Scan(&run.RunID, &run.StartedAt, &run.FinishedAt,
			&run.FertRecords, &run.CountryRecords, &run.CleanRows); err != nil {
			return nil, fmt.Errorf("failed to scan ETL run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// rollbackQuietly rolls back a transaction, ignoring the error returned
// after a successful commit.
func rollbackQuietly(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		logging.Debug().Err(err).Msg("Transaction rollback failed")
	}
}
