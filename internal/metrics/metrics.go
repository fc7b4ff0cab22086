// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

// Package metrics exposes Prometheus collectors for ETL runs, DuckDB
// query performance, and the HTTP API. Collectors are registered with
// the default registry and served by promhttp at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ETLRunsTotal counts pipeline runs by outcome.
	ETLRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fertistat_etl_runs_total",
			Help: "Total number of ETL pipeline runs",
		},
		[]string{"status"}, // "success", "failure"
	)

	// ETLRecordsFetched counts records retrieved from the World Bank API.
	ETLRecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fertistat_etl_records_fetched_total",
			Help: "Total number of records fetched from the World Bank API",
		},
		[]string{"dataset"}, // "indicator", "country"
	)

	// ETLDuration tracks end-to-end pipeline duration.
	ETLDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fertistat_etl_duration_seconds",
			Help:    "End-to-end duration of ETL pipeline runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// DBQueryDuration tracks DuckDB query latency per operation.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fertistat_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// HTTPRequestDuration tracks API request latency per route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fertistat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// ObserveQuery records one DuckDB query duration.
func ObserveQuery(operation string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
