// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/agrodata/fertistat/internal/metrics"
	"github.com/agrodata/fertistat/internal/models"
)

// The analytical query set. Every method reads only wb.fertilizer_clean,
// takes explicit parameters bound as placeholders, and returns an empty
// slice (not an error) when no canonical data matches.
//
// Tie-breaks are deterministic throughout: equal consumption values are
// ordered by country name ascending, and a country's equal peak values
// resolve to the earliest year.

// TopConsumers returns the countries with the highest consumption in the
// given year, ordered by kg/ha descending then country name ascending,
// truncated to limit. Rows with null values are excluded.
func (db *DB) TopConsumers(ctx context.Context, year, limit int) ([]models.TopConsumerRow, error) {
	start := time.Now()
	defer metrics.ObserveQuery("top_consumers", start)

	rows, err := db.conn.QueryContext(ctx, `
	SELECT iso3, country_name, region, kg_per_ha
	FROM wb.fertilizer_clean
	WHERE year = ? AND kg_per_ha IS NOT NULL
	ORDER BY kg_per_ha DESC, country_name ASC
	LIMIT ?`, year, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top consumers: %w", err)
	}
	defer rows.Close()

	out := []models.TopConsumerRow{}
	for rows.Next() {
		var r models.TopConsumerRow
		if err := rows.Scan(&r.ISO3, &r.CountryName, &r.Region, &r.KgPerHa); err != nil {
			return nil, fmt.Errorf("failed to scan top consumer row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PeakPerEntity returns, for each country, the single year with the
// maximum consumption among years >= minYear, bucketed into consumption
// levels and ordered by peak value descending. Equal peaks within a
// country resolve to the earliest year.
func (db *DB) PeakPerEntity(ctx context.Context, minYear, limit int) ([]models.PeakConsumptionRow, error) {
	start := time.Now()
	defer metrics.ObserveQuery("peak_per_entity", start)

	rows, err := db.conn.QueryContext(ctx, `
	WITH ranked AS (
		SELECT
			country_name,
			region,
			year AS peak_year,
			kg_per_ha AS peak_kg_per_ha,
			ROW_NUMBER() OVER (PARTITION BY iso3 ORDER BY kg_per_ha DESC, year ASC) AS rn
		FROM wb.fertilizer_clean
		WHERE year >= ? AND kg_per_ha IS NOT NULL
	)
	SELECT
		country_name,
		region,
		peak_year,
		peak_kg_per_ha,
		CASE WHEN peak_kg_per_ha > 500 THEN 'Very High'
		     WHEN peak_kg_per_ha > 200 THEN 'High'
		     WHEN peak_kg_per_ha > 100 THEN 'Medium'
		     ELSE 'Low' END AS consumption_level
	FROM ranked
	WHERE rn = 1
	ORDER BY peak_kg_per_ha DESC, country_name ASC
	LIMIT ?`, minYear, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query peak consumption: %w", err)
	}
	defer rows.Close()

	out := []models.PeakConsumptionRow{}
	for rows.Next() {
		var r models.PeakConsumptionRow
		var level string
		if err := rows.Scan(&r.CountryName, &r.Region, &r.PeakYear, &r.PeakKgPerHa, &level); err != nil {
			return nil, fmt.Errorf("failed to scan peak consumption row: %w", err)
		}
		r.Level = models.ConsumptionLevel(level)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ChangeOverInterval computes absolute and percent consumption change
// between two endpoint years. Countries missing either endpoint are
// excluded entirely; percent change is null when the start value is
// zero. Rows are ordered by absolute change descending.
func (db *DB) ChangeOverInterval(ctx context.Context, yearStart, yearEnd int) ([]models.ConsumptionChangeRow, error) {
	start := time.Now()
	defer metrics.ObserveQuery("change_over_interval", start)

	rows, err := db.conn.QueryContext(ctx, `
	WITH endpoints AS (
		SELECT
			iso3,
			country_name,
			region,
			MAX(CASE WHEN year = ? THEN kg_per_ha END) AS start_kg_per_ha,
			MAX(CASE WHEN year = ? THEN kg_per_ha END) AS end_kg_per_ha
		FROM wb.fertilizer_clean
		WHERE year IN (?, ?) AND kg_per_ha IS NOT NULL
		GROUP BY iso3, country_name, region
		HAVING COUNT(DISTINCT year) = 2
	)
	SELECT
		country_name,
		region,
		start_kg_per_ha,
		end_kg_per_ha,
		end_kg_per_ha - start_kg_per_ha AS absolute_change,
		ROUND((end_kg_per_ha - start_kg_per_ha) * 100.0 / NULLIF(start_kg_per_ha, 0), 1) AS percent_change
	FROM endpoints
	ORDER BY absolute_change DESC, country_name ASC`,
		yearStart, yearEnd, yearStart, yearEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query consumption change: %w", err)
	}
	defer rows.Close()

	out := []models.ConsumptionChangeRow{}
	for rows.Next() {
		var r models.ConsumptionChangeRow
		var pct sql.NullFloat64
		if err := rows.Scan(&r.CountryName, &r.Region, &r.StartKgPerHa, &r.EndKgPerHa,
			&r.AbsoluteChange, &pct); err != nil {
			return nil, fmt.Errorf("failed to scan consumption change row: %w", err)
		}
		if pct.Valid {
			v := pct.Float64
			r.PercentChange = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TrendSeries returns all canonical observations for the given country
// names within [yearStart, yearEnd], ordered by country name then year.
// When countries is empty it defaults to the top 10 consumers in the most
// recent year that has any observation.
func (db *DB) TrendSeries(ctx context.Context, countries []string, yearStart, yearEnd int) ([]models.TrendPoint, error) {
	start := time.Now()
	defer metrics.ObserveQuery("trend_series", start)

	if len(countries) == 0 {
		defaults, err := db.defaultTrendCountries(ctx)
		if err != nil {
			return nil, err
		}
		countries = defaults
	}
	if len(countries) == 0 {
		return []models.TrendPoint{}, nil
	}

	placeholders := strings.Repeat("?, ", len(countries)-1) + "?"
	args := make([]interface{}, 0, len(countries)+2)
	for _, name := range countries {
		args = append(args, name)
	}
	args = append(args, yearStart, yearEnd)

	query := fmt.Sprintf(`
	SELECT country_name, year, kg_per_ha
	FROM wb.fertilizer_clean
	WHERE country_name IN (%s)
	  AND year BETWEEN ? AND ?
	  AND kg_per_ha IS NOT NULL
	ORDER BY country_name ASC, year ASC`, placeholders)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend series: %w", err)
	}
	defer rows.Close()

	out := []models.TrendPoint{}
	for rows.Next() {
		var p models.TrendPoint
		if err := rows.Scan(&p.CountryName, &p.Year, &p.KgPerHa); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// defaultTrendCountries picks the top 10 consumers in the latest year
// with any non-null observation.
func (db *DB) defaultTrendCountries(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT country_name
	FROM wb.fertilizer_clean
	WHERE year = (SELECT MAX(year) FROM wb.fertilizer_clean WHERE kg_per_ha IS NOT NULL)
	  AND kg_per_ha IS NOT NULL
	ORDER BY kg_per_ha DESC, country_name ASC
	LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to query default trend countries: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan country name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CountryTrend returns one country's full time series, matching by ISO3
// code or exact country name, ordered by year ascending. An identifier
// with no canonical rows yields an empty slice, not an error.
func (db *DB) CountryTrend(ctx context.Context, identifier string) ([]models.CountryTrendPoint, error) {
	start := time.Now()
	defer metrics.ObserveQuery("country_trend", start)

	rows, err := db.conn.QueryContext(ctx, `
	SELECT country_name, region, year, kg_per_ha
	FROM wb.fertilizer_clean
	WHERE (iso3 = ? OR country_name = ?) AND kg_per_ha IS NOT NULL
	ORDER BY year ASC`, identifier, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to query country trend: %w", err)
	}
	defer rows.Close()

	out := []models.CountryTrendPoint{}
	for rows.Next() {
		var p models.CountryTrendPoint
		if err := rows.Scan(&p.CountryName, &p.Region, &p.Year, &p.KgPerHa); err != nil {
			return nil, fmt.Errorf("failed to scan country trend point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MapFrames returns per-year choropleth frames: every non-null canonical
// observation from minYear onward, ordered by year then value descending.
func (db *DB) MapFrames(ctx context.Context, minYear int) ([]models.MapFrameRow, error) {
	start := time.Now()
	defer metrics.ObserveQuery("map_frames", start)

	rows, err := db.conn.QueryContext(ctx, `
	SELECT iso3, country_name, region, year, kg_per_ha
	FROM wb.fertilizer_clean
	WHERE year >= ? AND kg_per_ha IS NOT NULL
	ORDER BY year ASC, kg_per_ha DESC, country_name ASC`, minYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query map frames: %w", err)
	}
	defer rows.Close()

	out := []models.MapFrameRow{}
	for rows.Next() {
		var r models.MapFrameRow
		if err := rows.Scan(&r.ISO3, &r.CountryName, &r.Region, &r.Year, &r.KgPerHa); err != nil {
			return nil, fmt.Errorf("failed to scan map frame row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary describes the canonical table: total rows, year range, and
// distinct country count. An empty table yields zero values.
func (db *DB) Summary(ctx context.Context) (*models.SummaryStats, error) {
	start := time.Now()
	defer metrics.ObserveQuery("summary", start)

	var stats models.SummaryStats
	var minYear, maxYear sql.NullInt64
	err := db.conn.QueryRowContext(ctx, `
	SELECT COUNT(*), MIN(year), MAX(year), COUNT(DISTINCT iso3)
	FROM wb.fertilizer_clean`).Scan(&stats.TotalRows, &minYear, &maxYear, &stats.Countries)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	stats.MinYear = int(minYear.Int64)
	stats.MaxYear = int(maxYear.Int64)
	return &stats, nil
}
