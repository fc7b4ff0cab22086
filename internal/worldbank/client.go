// Fertistat - World Bank Fertilizer Consumption Analytics
// Copyright 2026 Agrodata Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/agrodata/fertistat

// Package worldbank implements the client for the World Bank open data
// API: a paginated fetch of one statistical indicator plus a single-shot
// fetch of the country metadata set.
//
// Every response is a two-element JSON array [meta, records]. A non-2xx
// status or an envelope that cannot be decoded fails the whole fetch; a
// decoded page with zero records terminates pagination normally. No
// partial result is ever returned alongside an error.
package worldbank

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/agrodata/fertistat/internal/config"
	"github.com/agrodata/fertistat/internal/logging"
	"github.com/agrodata/fertistat/internal/models"
)

// maxErrorBodySize limits how much of a failed response body is read for
// error reporting.
const maxErrorBodySize = 64 * 1024

// apiPage is one decoded response envelope.
type apiPage struct {
	meta    pageMeta
	records json.RawMessage
}

// ClientInterface is implemented by Client and by test fakes.
type ClientInterface interface {
	FetchIndicatorSeries(ctx context.Context) ([]models.RawIndicatorRecord, error)
	FetchCountries(ctx context.Context) ([]models.RawCountryRecord, error)
}

// Client fetches indicator and country data from the World Bank API.
//
// Outbound requests share a rate limiter and a circuit breaker: the
// breaker opens after three consecutive failures and stays open for 30
// seconds, so a dead upstream fails fast instead of burning the whole
// pagination budget on timeouts.
//
// Thread safety: safe for concurrent use.
type Client struct {
	baseURL         string
	indicator       string
	pageSize        int
	countryPageSize int
	httpClient      *http.Client
	breaker         *gobreaker.CircuitBreaker[*apiPage]
	limiter         *rate.Limiter
}

// NewClient creates a World Bank API client from configuration.
func NewClient(cfg *config.WorldBankConfig) *Client {
	settings := gobreaker.Settings{
		Name:    "worldbank",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		indicator:       cfg.Indicator,
		pageSize:        cfg.PageSize,
		countryPageSize: cfg.CountryPageSize,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[*apiPage](settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// FetchIndicatorSeries retrieves every observation of the configured
// indicator across all countries and years. Pagination starts at page 1
// and stops when a page comes back empty or the reported page count is
// reached; records are concatenated in arrival order.
func (c *Client) FetchIndicatorSeries(ctx context.Context) ([]models.RawIndicatorRecord, error) {
	var out []models.RawIndicatorRecord

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("format", "json")
		params.Set("per_page", strconv.Itoa(c.pageSize))
		params.Set("page", strconv.Itoa(page))
		reqURL := fmt.Sprintf("%s/country/ALL/indicator/%s?%s", c.baseURL, c.indicator, params.Encode())

		pg, err := c.fetchPage(ctx, reqURL)
		if err != nil {
			return nil, fmt.Errorf("indicator %s page %d: %w", c.indicator, page, err)
		}

		var observations []indicatorObservation
		if len(pg.records) > 0 {
			if err := json.Unmarshal(pg.records, &observations); err != nil {
				return nil, fmt.Errorf("indicator %s page %d: malformed records: %w", c.indicator, page, err)
			}
		}
		if len(observations) == 0 {
			break
		}

		for _, obs := range observations {
			out = append(out, models.RawIndicatorRecord{
				ISO3:        obs.CountryISO3Code,
				CountryName: obs.Country.Value,
				Date:        obs.Date,
				Value:       obs.Value,
			})
		}

		// A reported page count of zero (or one) means this was the last page.
		if page >= pg.meta.Pages {
			break
		}
	}

	logging.Debug().Str("indicator", c.indicator).Int("records", len(out)).Msg("Indicator fetch complete")
	return out, nil
}

// FetchCountries retrieves the full country metadata set in a single
// request. The World Bank country set is small and bounded, so one call
// with a large per_page returns every entity.
func (c *Client) FetchCountries(ctx context.Context) ([]models.RawCountryRecord, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", strconv.Itoa(c.countryPageSize))
	reqURL := fmt.Sprintf("%s/country?%s", c.baseURL, params.Encode())

	pg, err := c.fetchPage(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("country metadata: %w", err)
	}

	var entities []countryEntity
	if len(pg.records) > 0 {
		if err := json.Unmarshal(pg.records, &entities); err != nil {
			return nil, fmt.Errorf("country metadata: malformed records: %w", err)
		}
	}
	if pg.meta.Pages > 1 {
		return nil, fmt.Errorf("country metadata: %d entities exceed a single page (pages=%d), raise country_page_size",
			pg.meta.Total, pg.meta.Pages)
	}

	out := make([]models.RawCountryRecord, 0, len(entities))
	for _, e := range entities {
		rec := models.RawCountryRecord{
			ISO3: e.ID,
			ISO2: e.ISO2Code,
			Name: e.Name,
		}
		if region := strings.TrimSpace(e.Region.Value); region != "" {
			rec.Region = &region
		}
		out = append(out, rec)
	}

	logging.Debug().Int("entities", len(out)).Msg("Country metadata fetch complete")
	return out, nil
}

// fetchPage performs one rate-limited, breaker-protected GET and decodes
// the [meta, records] envelope.
func (c *Client) fetchPage(ctx context.Context, reqURL string) (*apiPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.breaker.Execute(func() (*apiPage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body := readBodyForError(resp.Body)
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		var envelope []json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("malformed envelope: %w", err)
		}
		if len(envelope) < 2 {
			return nil, fmt.Errorf("malformed envelope: expected [meta, records], got %d elements", len(envelope))
		}

		var meta pageMeta
		if err := json.Unmarshal(envelope[0], &meta); err != nil {
			return nil, fmt.Errorf("malformed page metadata: %w", err)
		}

		return &apiPage{meta: meta, records: envelope[1]}, nil
	})
}

// readBodyForError reads at most maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		body = append(body, []byte("... (truncated)")...)
	}
	return body
}
