package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for fetches and extraction.
type Metrics struct {
	// Fetch metrics
	FetchesTotal    atomic.Int64
	TransportErrors atomic.Int64
	ParseErrors     atomic.Int64
	BytesDownloaded atomic.Int64

	// Response metrics
	Responses2xx atomic.Int64
	Responses3xx atomic.Int64
	Responses4xx atomic.Int64
	Responses5xx atomic.Int64

	// Extraction metrics
	AggregatesFetched atomic.Int64
	AggregatesFailed  atomic.Int64
	PostsExtracted    atomic.Int64
	PostsSkipped      atomic.Int64

	// Storage metrics
	AggregatesStored atomic.Int64

	// Proxy metrics
	ProxyRotations atomic.Int64

	cacheStats func() (hits, misses int64)
	logger     *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// TrackCache reports selector cache counters alongside the others.
func (m *Metrics) TrackCache(stats func() (hits, misses int64)) {
	m.cacheStats = stats
}

// RecordStatus counts a response by status class.
func (m *Metrics) RecordStatus(code int) {
	switch {
	case code >= 500:
		m.Responses5xx.Add(1)
	case code >= 400:
		m.Responses4xx.Add(1)
	case code >= 300:
		m.Responses3xx.Add(1)
	case code >= 200:
		m.Responses2xx.Add(1)
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	var hits, misses int64
	if m.cacheStats != nil {
		hits, misses = m.cacheStats()
	}

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"feedstalk_fetches_total", "Total HTTP fetches attempted", m.FetchesTotal.Load()},
		{"feedstalk_transport_errors_total", "Fetches that failed before a status was received", m.TransportErrors.Load()},
		{"feedstalk_parse_errors_total", "Response bodies that failed to decode", m.ParseErrors.Load()},
		{"feedstalk_bytes_downloaded_total", "Total bytes downloaded", m.BytesDownloaded.Load()},
		{"feedstalk_responses_2xx_total", "Total 2xx responses", m.Responses2xx.Load()},
		{"feedstalk_responses_3xx_total", "Total 3xx responses", m.Responses3xx.Load()},
		{"feedstalk_responses_4xx_total", "Total 4xx responses", m.Responses4xx.Load()},
		{"feedstalk_responses_5xx_total", "Total 5xx responses", m.Responses5xx.Load()},
		{"feedstalk_aggregates_fetched_total", "Aggregates returned to callers", m.AggregatesFetched.Load()},
		{"feedstalk_aggregates_failed_total", "Aggregate fetches that failed", m.AggregatesFailed.Load()},
		{"feedstalk_posts_extracted_total", "Posts extracted", m.PostsExtracted.Load()},
		{"feedstalk_posts_skipped_total", "Candidate posts skipped for a missing field", m.PostsSkipped.Load()},
		{"feedstalk_aggregates_stored_total", "Aggregates written to storage", m.AggregatesStored.Load()},
		{"feedstalk_proxy_rotations_total", "Requests routed through a proxy", m.ProxyRotations.Load()},
		{"feedstalk_selector_cache_hits_total", "Selector cache hits", hits},
		{"feedstalk_selector_cache_misses_total", "Selector cache compilations", misses},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	snap := map[string]int64{
		"fetches_total":      m.FetchesTotal.Load(),
		"transport_errors":   m.TransportErrors.Load(),
		"parse_errors":       m.ParseErrors.Load(),
		"bytes_downloaded":   m.BytesDownloaded.Load(),
		"responses_2xx":      m.Responses2xx.Load(),
		"responses_4xx":      m.Responses4xx.Load(),
		"responses_5xx":      m.Responses5xx.Load(),
		"aggregates_fetched": m.AggregatesFetched.Load(),
		"aggregates_failed":  m.AggregatesFailed.Load(),
		"posts_extracted":    m.PostsExtracted.Load(),
		"posts_skipped":      m.PostsSkipped.Load(),
		"aggregates_stored":  m.AggregatesStored.Load(),
	}
	if m.cacheStats != nil {
		snap["selector_cache_hits"], snap["selector_cache_misses"] = m.cacheStats()
	}
	return snap
}

// LogSummary writes the current counters at Info level.
func (m *Metrics) LogSummary() {
	m.logger.Info("metrics summary",
		"fetches", m.FetchesTotal.Load(),
		"transport_errors", m.TransportErrors.Load(),
		"posts_extracted", m.PostsExtracted.Load(),
		"posts_skipped", m.PostsSkipped.Load(),
	)
}
