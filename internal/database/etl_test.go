// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrodata/fertistat/internal/models"
)

func floatp(v float64) *float64 { return &v }
func strp(v string) *string     { return &v }

// fixtureRaw returns a small but representative raw dataset: real
// countries, an aggregate row, and a null observation.
func fixtureRaw() ([]models.RawIndicatorRecord, []models.RawCountryRecord) {
	fert := []models.RawIndicatorRecord{
		{ISO3: "CHN", CountryName: "China", Date: "2019", Value: floatp(390.2)},
		{ISO3: "CHN", CountryName: "China", Date: "2020", Value: floatp(400.4)},
		{ISO3: "IND", CountryName: "India", Date: "2020", Value: floatp(200.5)},
		{ISO3: "IND", CountryName: "India", Date: "2019", Value: nil},
		{ISO3: "WLD", CountryName: "World", Date: "2020", Value: floatp(140.0)},
		{ISO3: "ZZZ", CountryName: "No Metadata Land", Date: "2020", Value: floatp(50.0)},
	}
	countries := []models.RawCountryRecord{
		{ISO3: "CHN", ISO2: "CN", Name: "China", Region: strp("East Asia & Pacific")},
		{ISO3: "IND", ISO2: "IN", Name: "India", Region: strp("South Asia")},
		{ISO3: "WLD", ISO2: "1W", Name: "World", Region: strp("Aggregates")},
		{ISO3: "ARG", ISO2: "AR", Name: "Argentina", Region: nil},
	}
	return fert, countries
}

func TestPersistRawReplacesPriorSnapshot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fert, countries := fixtureRaw()

	require.NoError(t, db.PersistRaw(ctx, fert, countries))

	var count int
	require.NoError(t, db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM wb.raw_fert`).Scan(&count))
	assert.Equal(t, len(fert), count)

	// A second persist with fewer records leaves no trace of the first.
	require.NoError(t, db.PersistRaw(ctx, fert[:1], countries[:2]))
	require.NoError(t, db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM wb.raw_fert`).Scan(&count))
	assert.Equal(t, 1, count)
	require.NoError(t, db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM wb.raw_country`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestRebuildCleanJoinsAndFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fert, countries := fixtureRaw()

	require.NoError(t, db.PersistRaw(ctx, fert, countries))
	rows, err := db.RebuildClean(ctx)
	require.NoError(t, err)

	// CHN 2019 + 2020 and IND 2020 survive. Dropped: IND 2019 (null
	// value), WLD (aggregate region), ZZZ (no metadata), ARG (no
	// observations).
	assert.Equal(t, int64(3), rows)

	trend, err := db.CountryTrend(ctx, "CHN")
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, "China", trend[0].CountryName)
	assert.Equal(t, "East Asia & Pacific", trend[0].Region)
	assert.Equal(t, 2019, trend[0].Year)
	// 390.2 rounds to 390, 400.4 to 400.
	assert.Equal(t, 390, trend[0].KgPerHa)
	assert.Equal(t, 400, trend[1].KgPerHa)
}

func TestRebuildCleanIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fert, countries := fixtureRaw()
	require.NoError(t, db.PersistRaw(ctx, fert, countries))

	first, err := db.RebuildClean(ctx)
	require.NoError(t, err)
	second, err := db.RebuildClean(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Same content up to row order: rebuilding from unchanged raw tables
	// must not produce different rows.
	var diff int
	require.NoError(t, db.conn.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM (
		SELECT * FROM wb.fertilizer_clean
		EXCEPT
		SELECT
			c.iso2, c.iso3, COALESCE(c.name, f.country_name) AS country_name, c.region,
			CAST(f.date AS INTEGER) AS year, CAST(ROUND(CAST(f.value AS DOUBLE)) AS INTEGER) AS kg_per_ha
		FROM wb.raw_fert f
		JOIN (
			SELECT iso3, iso2, name, region FROM wb.raw_country
			WHERE region IS NOT NULL AND region <> 'Aggregates'
		) c USING (iso3)
		WHERE f.value IS NOT NULL
	)`).Scan(&diff))
	assert.Zero(t, diff)
}

func TestRebuildCleanDeduplicatesCountryMetadata(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fert, countries := fixtureRaw()

	// A duplicated ISO3 in metadata must not fan out the join.
	countries = append(countries, models.RawCountryRecord{
		ISO3: "CHN", ISO2: "CN", Name: "China (duplicate)", Region: strp("East Asia & Pacific"),
	})
	require.NoError(t, db.PersistRaw(ctx, fert, countries))

	rows, err := db.RebuildClean(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)

	var perYear int
	require.NoError(t, db.conn.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM wb.fertilizer_clean WHERE iso3 = 'CHN' AND year = 2020`).Scan(&perYear))
	assert.Equal(t, 1, perYear)
}

func TestRebuildCleanNameFallback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fert, countries := fixtureRaw()
	require.NoError(t, db.PersistRaw(ctx, fert, countries))

	// Simulate metadata with a missing display name.
	_, err := db.conn.ExecContext(ctx, `UPDATE wb.raw_country SET name = NULL WHERE iso3 = 'IND'`)
	require.NoError(t, err)

	_, err = db.RebuildClean(ctx)
	require.NoError(t, err)

	trend, err := db.CountryTrend(ctx, "IND")
	require.NoError(t, err)
	require.Len(t, trend, 1)
	// Falls back to the indicator-reported name.
	assert.Equal(t, "India", trend[0].CountryName)
}

func TestRebuildCleanRegionInvariant(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fert, countries := fixtureRaw()
	require.NoError(t, db.PersistRaw(ctx, fert, countries))
	_, err := db.RebuildClean(ctx)
	require.NoError(t, err)

	var violations int
	require.NoError(t, db.conn.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM wb.fertilizer_clean
	WHERE region IS NULL OR region = 'Aggregates'`).Scan(&violations))
	assert.Zero(t, violations)
}

func TestRebuildCleanEmptyRawTables(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PersistRaw(ctx, nil, nil))
	_, err := db.RebuildClean(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRawData)
}

func TestRebuildCleanMissingRawTables(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.RebuildClean(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRawData)
}

func TestETLRunRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	runs := []models.ETLRun{
		{RunID: "run-1", StartedAt: started, FinishedAt: started.Add(time.Minute), FertRecords: 10, CountryRecords: 5, CleanRows: 8},
		{RunID: "run-2", StartedAt: started.Add(time.Hour), FinishedAt: started.Add(61 * time.Minute), FertRecords: 12, CountryRecords: 5, CleanRows: 9},
	}
	for _, run := range runs {
		require.NoError(t, db.InsertETLRun(ctx, run))
	}

	got, err := db.ListETLRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Most recent first.
	assert.Equal(t, "run-2", got[0].RunID)
	assert.Equal(t, int64(9), got[0].CleanRows)
	assert.Equal(t, "run-1", got[1].RunID)

	limited, err := db.ListETLRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run-2", limited[0].RunID)
}
