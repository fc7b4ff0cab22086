// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrodata/fertistat/internal/config"
	"github.com/agrodata/fertistat/internal/database"
	"github.com/agrodata/fertistat/internal/logging"
	"github.com/agrodata/fertistat/internal/metrics"
)

// Router wires the analytical query endpoints into a chi mux.
type Router struct {
	handler *Handler
	apiCfg  *config.APIConfig
}

// NewRouter creates a Router over an open store.
func NewRouter(db *database.DB, apiCfg *config.APIConfig) *Router {
	return &Router{
		handler: NewHandler(db, apiCfg),
		apiCfg:  apiCfg,
	}
}

// Setup builds the full route tree with the global middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.apiCfg.RateLimitPerMinute, time.Minute))

		r.Get("/health", router.handler.Health)
		r.Get("/summary", router.handler.Summary)
		r.Get("/countries/{identifier}/trend", router.handler.CountryTrend)
		r.Get("/etl/runs", router.handler.ETLRuns)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/top-consumers", router.handler.TopConsumers)
			r.Get("/peaks", router.handler.Peaks)
			r.Get("/changes", router.handler.Changes)
			r.Get("/trends", router.handler.Trends)
			r.Get("/map-frames", router.handler.MapFrames)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestMetrics records per-route latency and emits an access log line.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())

		logging.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}
