// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

package models

// ConsumptionLevel is the ordered categorical bucket assigned to a peak
// consumption value.
type ConsumptionLevel string

// Consumption level buckets. Boundaries are exclusive on the lower bound
// and inclusive on the upper: Low <= 100 < Medium <= 200 < High <= 500 < Very High.
const (
	LevelLow      ConsumptionLevel = "Low"
	LevelMedium   ConsumptionLevel = "Medium"
	LevelHigh     ConsumptionLevel = "High"
	LevelVeryHigh ConsumptionLevel = "Very High"
)

// LevelFor buckets a kg/ha value into its consumption level.
func LevelFor(kgPerHa int) ConsumptionLevel {
	switch {
	case kgPerHa > 500:
		return LevelVeryHigh
	case kgPerHa > 200:
		return LevelHigh
	case kgPerHa > 100:
		return LevelMedium
	default:
		return LevelLow
	}
}

// TopConsumerRow is one row of the top-consumers ranking for a year.
type TopConsumerRow struct {
	ISO3        string `json:"iso3"`
	CountryName string `json:"country_name"`
	Region      string `json:"region"`
	KgPerHa     int    `json:"kg_per_ha"`
}

// PeakConsumptionRow is, for one country, the year with the maximum
// consumption at or after the requested minimum year.
type PeakConsumptionRow struct {
	CountryName string           `json:"country_name"`
	Region      string           `json:"region"`
	PeakYear    int              `json:"peak_year"`
	PeakKgPerHa int              `json:"peak_kg_per_ha"`
	Level       ConsumptionLevel `json:"consumption_level"`
}

// ConsumptionChangeRow describes a country's consumption change between
// two endpoint years. PercentChange is nil when the start value is zero.
type ConsumptionChangeRow struct {
	CountryName    string   `json:"country_name"`
	Region         string   `json:"region"`
	StartKgPerHa   int      `json:"start_kg_per_ha"`
	EndKgPerHa     int      `json:"end_kg_per_ha"`
	AbsoluteChange int      `json:"absolute_change"`
	PercentChange  *float64 `json:"percent_change"`
}

// TrendPoint is one (country, year) observation of a trend series.
type TrendPoint struct {
	CountryName string `json:"country_name"`
	Year        int    `json:"year"`
	KgPerHa     int    `json:"kg_per_ha"`
}

// CountryTrendPoint is one observation of a single country's full series.
type CountryTrendPoint struct {
	CountryName string `json:"country_name"`
	Region      string `json:"region"`
	Year        int    `json:"year"`
	KgPerHa     int    `json:"kg_per_ha"`
}

// MapFrameRow is one choropleth data point: a country's consumption in
// one year, keyed by ISO3 for map rendering.
type MapFrameRow struct {
	ISO3        string `json:"iso3"`
	CountryName string `json:"country_name"`
	Region      string `json:"region"`
	Year        int    `json:"year"`
	KgPerHa     int    `json:"kg_per_ha"`
}

// SummaryStats describes the canonical table as a whole.
type SummaryStats struct {
	TotalRows int `json:"total_rows"`
	MinYear   int `json:"min_year"`
	MaxYear   int `json:"max_year"`
	Countries int `json:"countries"`
}
