// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrodata/fertistat/internal/models"
)

func TestTopConsumers(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "Region One", 2020, intp(300)},
		{"bb", "BBB", "Betania", "Region One", 2020, intp(250)},
		{"cc", "CCC", "Gammastan", "Region Two", 2020, intp(400)},
		{"dd", "DDD", "Deltia", "Region Two", 2020, nil},
		{"ee", "EEE", "Epsilonia", "Region Two", 2020, intp(100)},
		{"aa", "AAA", "Alphaland", "Region One", 2019, intp(999)},
	})

	rows, err := db.TopConsumers(context.Background(), 2020, 5)
	require.NoError(t, err)

	// Null values are excluded; the 2019 row does not leak in.
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"CCC", "AAA", "BBB", "EEE"},
		[]string{rows[0].ISO3, rows[1].ISO3, rows[2].ISO3, rows[3].ISO3})
	assert.Equal(t, 400, rows[0].KgPerHa)
	assert.Equal(t, "Region Two", rows[0].Region)
}

func TestTopConsumersLimitAndTies(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "R", 2020, intp(300)},
		{"bb", "BBB", "Betania", "R", 2020, intp(300)},
		{"cc", "CCC", "Gammastan", "R", 2020, intp(400)},
	})

	rows, err := db.TopConsumers(context.Background(), 2020, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Ties break by country name ascending: Alphaland before Betania.
	assert.Equal(t, "Gammastan", rows[0].CountryName)
	assert.Equal(t, "Alphaland", rows[1].CountryName)
}

func TestTopConsumersNoData(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, nil)

	rows, err := db.TopConsumers(context.Background(), 2020, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPeakPerEntity(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "Region One", 1980, intp(50)},
		{"aa", "AAA", "Alphaland", "Region One", 1995, intp(120)},
		{"aa", "AAA", "Alphaland", "Region One", 2010, intp(90)},
		{"bb", "BBB", "Betania", "Region Two", 2000, intp(600)},
		{"cc", "CCC", "Gammastan", "Region Two", 1960, intp(800)},
		{"cc", "CCC", "Gammastan", "Region Two", 1990, intp(30)},
	})

	rows, err := db.PeakPerEntity(context.Background(), 1970, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Ordered by peak value descending; the 1960 observation is outside
	// the min_year window so Gammastan's peak is 30.
	assert.Equal(t, "Betania", rows[0].CountryName)
	assert.Equal(t, 600, rows[0].PeakKgPerHa)
	assert.Equal(t, models.LevelVeryHigh, rows[0].Level)

	assert.Equal(t, "Alphaland", rows[1].CountryName)
	assert.Equal(t, 1995, rows[1].PeakYear)
	assert.Equal(t, 120, rows[1].PeakKgPerHa)
	assert.Equal(t, models.LevelMedium, rows[1].Level)

	assert.Equal(t, "Gammastan", rows[2].CountryName)
	assert.Equal(t, 1990, rows[2].PeakYear)
	assert.Equal(t, models.LevelLow, rows[2].Level)
}

func TestPeakPerEntityEqualPeaksResolveToEarliestYear(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "R", 1990, intp(150)},
		{"aa", "AAA", "Alphaland", "R", 2005, intp(150)},
	})

	rows, err := db.PeakPerEntity(context.Background(), 1970, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1990, rows[0].PeakYear)
}

func TestConsumptionLevelBoundaries(t *testing.T) {
	tests := []struct {
		kg   int
		want models.ConsumptionLevel
	}{
		{0, models.LevelLow},
		{100, models.LevelLow},
		{101, models.LevelMedium},
		{200, models.LevelMedium},
		{201, models.LevelHigh},
		{500, models.LevelHigh},
		{501, models.LevelVeryHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, models.LevelFor(tt.kg), "kg=%d", tt.kg)
	}

	// The SQL CASE must agree with LevelFor at every boundary.
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "A100", "R", 2020, intp(100)},
		{"bb", "BBB", "B200", "R", 2020, intp(200)},
		{"cc", "CCC", "C500", "R", 2020, intp(500)},
		{"dd", "DDD", "D501", "R", 2020, intp(501)},
	})
	rows, err := db.PeakPerEntity(context.Background(), 1970, 10)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	byName := map[string]models.ConsumptionLevel{}
	for _, r := range rows {
		byName[r.CountryName] = r.Level
	}
	assert.Equal(t, models.LevelLow, byName["A100"])
	assert.Equal(t, models.LevelMedium, byName["B200"])
	assert.Equal(t, models.LevelHigh, byName["C500"])
	assert.Equal(t, models.LevelVeryHigh, byName["D501"])
}

func TestChangeOverInterval(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "R", 2010, intp(100)},
		{"aa", "AAA", "Alphaland", "R", 2020, intp(250)},
		{"bb", "BBB", "Betania", "R", 2010, intp(200)},
		{"bb", "BBB", "Betania", "R", 2020, intp(150)},
		// Only one endpoint: excluded entirely.
		{"cc", "CCC", "Gammastan", "R", 2010, intp(300)},
		// Zero start value: percent change undefined.
		{"dd", "DDD", "Deltia", "R", 2010, intp(0)},
		{"dd", "DDD", "Deltia", "R", 2020, intp(40)},
		// An intermediate year must not count as an endpoint.
		{"ee", "EEE", "Epsilonia", "R", 2015, intp(500)},
	})

	rows, err := db.ChangeOverInterval(context.Background(), 2010, 2020)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Ordered by absolute change descending.
	assert.Equal(t, "Alphaland", rows[0].CountryName)
	assert.Equal(t, 150, rows[0].AbsoluteChange)
	require.NotNil(t, rows[0].PercentChange)
	assert.InDelta(t, 150.0, *rows[0].PercentChange, 0.01)

	assert.Equal(t, "Deltia", rows[1].CountryName)
	assert.Equal(t, 40, rows[1].AbsoluteChange)
	assert.Nil(t, rows[1].PercentChange)

	assert.Equal(t, "Betania", rows[2].CountryName)
	assert.Equal(t, -50, rows[2].AbsoluteChange)
	require.NotNil(t, rows[2].PercentChange)
	assert.InDelta(t, -25.0, *rows[2].PercentChange, 0.01)
}

func TestChangeOverIntervalPercentRounding(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "R", 2010, intp(3)},
		{"aa", "AAA", "Alphaland", "R", 2020, intp(4)},
	})

	rows, err := db.ChangeOverInterval(context.Background(), 2010, 2020)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].PercentChange)
	// 1/3 * 100 rounded to one decimal place.
	assert.InDelta(t, 33.3, *rows[0].PercentChange, 0.001)
}

func TestTrendSeriesExplicitCountries(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "R", 1995, intp(10)},
		{"aa", "AAA", "Alphaland", "R", 1990, intp(5)},
		{"bb", "BBB", "Betania", "R", 1990, intp(20)},
		{"bb", "BBB", "Betania", "R", 2005, intp(25)},
		{"cc", "CCC", "Gammastan", "R", 1990, intp(30)},
	})

	points, err := db.TrendSeries(context.Background(), []string{"Betania", "Alphaland"}, 1990, 2000)
	require.NoError(t, err)

	// Ordered by country name then year; Betania 2005 is outside range.
	require.Len(t, points, 3)
	assert.Equal(t, "Alphaland", points[0].CountryName)
	assert.Equal(t, 1990, points[0].Year)
	assert.Equal(t, "Alphaland", points[1].CountryName)
	assert.Equal(t, 1995, points[1].Year)
	assert.Equal(t, "Betania", points[2].CountryName)
	assert.Equal(t, 1990, points[2].Year)
}

func TestTrendSeriesHandlesApostrophes(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"ci", "CIV", "Cote d'Ivoire", "Sub-Saharan Africa", 2000, intp(15)},
	})

	points, err := db.TrendSeries(context.Background(), []string{"Cote d'Ivoire"}, 1990, 2010)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Cote d'Ivoire", points[0].CountryName)
}

func TestTrendSeriesDefaultsToTopTenOfLatestYear(t *testing.T) {
	db := setupTestDB(t)
	var seeds []cleanSeed
	// Twelve countries in 2020, two of which also have 2021 nulls only in
	// earlier years; the latest year with data is 2020.
	names := []string{"N01", "N02", "N03", "N04", "N05", "N06", "N07", "N08", "N09", "N10", "N11", "N12"}
	for i, name := range names {
		seeds = append(seeds, cleanSeed{"xx", "X" + name, name, "R", 2020, intp(1000 - i*10)})
		seeds = append(seeds, cleanSeed{"xx", "X" + name, name, "R", 2010, intp(1)})
	}
	seedClean(t, db, seeds)

	points, err := db.TrendSeries(context.Background(), nil, 2000, 2025)
	require.NoError(t, err)

	// Top 10 of 2020 (N01..N10), each with two in-range observations.
	require.Len(t, points, 20)
	got := map[string]bool{}
	for _, p := range points {
		got[p.CountryName] = true
	}
	assert.Len(t, got, 10)
	assert.True(t, got["N01"])
	assert.True(t, got["N10"])
	assert.False(t, got["N11"])
	assert.False(t, got["N12"])
}

func TestTrendSeriesEmptyStore(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, nil)

	points, err := db.TrendSeries(context.Background(), nil, 1990, 2020)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestCountryTrendByISO3AndByName(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "Region One", 2001, intp(10)},
		{"aa", "AAA", "Alphaland", "Region One", 1999, intp(8)},
		{"aa", "AAA", "Alphaland", "Region One", 2000, nil},
	})

	byCode, err := db.CountryTrend(context.Background(), "AAA")
	require.NoError(t, err)
	require.Len(t, byCode, 2)
	// Ordered by year ascending, null values excluded.
	assert.Equal(t, 1999, byCode[0].Year)
	assert.Equal(t, 2001, byCode[1].Year)

	byName, err := db.CountryTrend(context.Background(), "Alphaland")
	require.NoError(t, err)
	assert.Equal(t, byCode, byName)
}

func TestCountryTrendUnknownIdentifier(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "R", 2000, intp(10)},
	})

	points, err := db.CountryTrend(context.Background(), "ZZZ")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestMapFrames(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "R", 1985, intp(50)},
		{"aa", "AAA", "Alphaland", "R", 1990, intp(60)},
		{"bb", "BBB", "Betania", "R", 1990, intp(90)},
		{"bb", "BBB", "Betania", "R", 1995, nil},
	})

	rows, err := db.MapFrames(context.Background(), 1990)
	require.NoError(t, err)

	// 1985 predates the window; the null 1995 value is excluded. Within
	// a year, higher values come first.
	require.Len(t, rows, 2)
	assert.Equal(t, "BBB", rows[0].ISO3)
	assert.Equal(t, 90, rows[0].KgPerHa)
	assert.Equal(t, "AAA", rows[1].ISO3)
}

func TestSummary(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, []cleanSeed{
		{"aa", "AAA", "Alphaland", "R", 1961, intp(10)},
		{"aa", "AAA", "Alphaland", "R", 2022, intp(20)},
		{"bb", "BBB", "Betania", "R", 2000, intp(30)},
	})

	stats, err := db.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRows)
	assert.Equal(t, 1961, stats.MinYear)
	assert.Equal(t, 2022, stats.MaxYear)
	assert.Equal(t, 2, stats.Countries)
}

func TestSummaryEmptyTable(t *testing.T) {
	db := setupTestDB(t)
	seedClean(t, db, nil)

	stats, err := db.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRows)
	assert.Zero(t, stats.MinYear)
	assert.Zero(t, stats.MaxYear)
	assert.Zero(t, stats.Countries)
}
