// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

// Package models defines the typed records flowing between the World Bank
// client, the DuckDB store, and the HTTP API. Raw records mirror the API
// payloads with minimal typing; CleanRecord rows carry the invariants of
// the canonical table (see internal/database).
package models

import "time"

// RawIndicatorRecord is one indicator observation as returned by the
// World Bank API. No invariants are enforced until the cleaning transform:
// ISO3 may be empty for aggregate rows, Date is the year as reported, and
// Value is nil when the observation is missing.
type RawIndicatorRecord struct {
	ISO3        string
	CountryName string
	Date        string
	Value       *float64
}

// RawCountryRecord is one entity from the World Bank country metadata.
// Aggregates (regions, income groups) appear here with a nil or sentinel
// Region and are excluded during cleaning.
type RawCountryRecord struct {
	ISO3   string
	ISO2   string
	Name   string
	Region *string
}

// CleanRecord is one row of the canonical wb.fertilizer_clean table:
// one observation per (iso3, year), region always present and never the
// aggregate sentinel, consumption rounded to integer kg/ha.
type CleanRecord struct {
	ISO2        string `json:"iso2"`
	ISO3        string `json:"iso3"`
	CountryName string `json:"country_name"`
	Region      string `json:"region"`
	Year        int    `json:"year"`
	KgPerHa     int    `json:"kg_per_ha"`
}

// ETLRun summarizes one wholesale rebuild of the store, recorded in
// wb.etl_runs.
type ETLRun struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	FertRecords    int       `json:"fert_records"`
	CountryRecords int       `json:"country_records"`
	CleanRows      int64     `json:"clean_rows"`
}
