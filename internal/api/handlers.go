// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

// Package api provides the read-only HTTP surface over the analytical
// query set. Every endpoint returns the standard APIResponse envelope;
// "no data" is an empty data array with status ok, distinct from
// execution errors. The single exception is the country trend endpoint,
// where an unknown identifier is a 404.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agrodata/fertistat/internal/config"
	"github.com/agrodata/fertistat/internal/database"
)

// Handler serves the analytical query endpoints.
type Handler struct {
	db           *database.DB
	defaultLimit int
	maxLimit     int
}

// NewHandler creates a Handler backed by an open store.
func NewHandler(db *database.DB, apiCfg *config.APIConfig) *Handler {
	return &Handler{
		db:           db,
		defaultLimit: apiCfg.DefaultLimit,
		maxLimit:     apiCfg.MaxLimit,
	}
}

// Health reports liveness and store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "database not reachable", err)
		return
	}
	respondData(w, map[string]string{"status": "up"}, start)
}

// Summary returns canonical table statistics: row count, year range,
// country count.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := h.db.Summary(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error(), err)
		return
	}
	respondData(w, stats, start)
}

// TopConsumers ranks countries by consumption for a required year.
func (h *Handler) TopConsumers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	year, err := requiredIntParam(r, "year")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	limit, err := intParam(r, "limit", h.defaultLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	rows, err := h.db.TopConsumers(r.Context(), year, h.clampLimit(limit))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error(), err)
		return
	}
	respondData(w, rows, start)
}

// Peaks returns each country's peak consumption year at or after min_year
// (default 1970), bucketed into consumption levels.
func (h *Handler) Peaks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	minYear, err := intParam(r, "min_year", 1970)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	limit, err := intParam(r, "limit", h.defaultLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	rows, err := h.db.PeakPerEntity(r.Context(), minYear, h.clampLimit(limit))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error(), err)
		return
	}
	respondData(w, rows, start)
}

// Changes returns per-country consumption change between two required
// endpoint years.
func (h *Handler) Changes(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	yearStart, err := requiredIntParam(r, "year_start")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	yearEnd, err := requiredIntParam(r, "year_end")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if yearStart >= yearEnd {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "year_start must precede year_end", nil)
		return
	}

	rows, err := h.db.ChangeOverInterval(r.Context(), yearStart, yearEnd)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error(), err)
		return
	}
	respondData(w, rows, start)
}

// Trends returns time series for a comma-separated country list; with no
// list it defaults to the top 10 consumers in the latest year.
func (h *Handler) Trends(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	countries := listParam(r, "countries")
	yearStart, err := intParam(r, "year_start", 1990)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	yearEnd, err := intParam(r, "year_end", time.Now().Year())
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	rows, err := h.db.TrendSeries(r.Context(), countries, yearStart, yearEnd)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error(), err)
		return
	}
	respondData(w, rows, start)
}

// MapFrames returns choropleth frames from min_year (default 1990)
// onward.
func (h *Handler) MapFrames(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	minYear, err := intParam(r, "min_year", 1990)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	rows, err := h.db.MapFrames(r.Context(), minYear)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error(), err)
		return
	}
	respondData(w, rows, start)
}

// CountryTrend returns one country's full series by ISO3 code or exact
// name. An identifier matching no canonical row is a 404.
func (h *Handler) CountryTrend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	identifier := chi.URLParam(r, "identifier")
	if identifier == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "country identifier is required", nil)
		return
	}

	rows, err := h.db.CountryTrend(r.Context(), identifier)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error(), err)
		return
	}
	if len(rows) == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no data for country "+identifier, nil)
		return
	}
	respondData(w, rows, start)
}

// ETLRuns lists recorded pipeline runs, most recent first.
func (h *Handler) ETLRuns(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit, err := intParam(r, "limit", h.defaultLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	runs, err := h.db.ListETLRuns(r.Context(), h.clampLimit(limit))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error(), err)
		return
	}
	respondData(w, runs, start)
}
