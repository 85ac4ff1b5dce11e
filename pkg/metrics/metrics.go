// Package metrics provides Prometheus instrumentation for sfbridge.
//
// # Overview
//
// The metrics package provides:
//   - Upstream request counters and latency histograms per target and operation
//   - Extraction and load volume counters per CRM object
//   - A counter of schema mapping gaps per native type
//   - Inbound HTTP request counters per route
//
// # Basic Usage
//
//	timer := metrics.NewTimer()
//	resp, err := client.Do(req)
//	metrics.ObserveUpstream(metrics.TargetCRM, "query", metrics.StatusLabel(resp, err), timer.Stop())
//
//	metrics.RecordsExtracted.WithLabelValues("Account").Add(float64(len(page.Records)))
//
// All collectors are registered on the default registry; Handler exposes them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream targets used as the "target" label.
const (
	TargetCRM       = "salesforce"
	TargetOAuth     = "salesforce_oauth"
	TargetWarehouse = "bigquery"
	TargetStaging   = "gcs"
)

var (
	// UpstreamRequests counts calls to external systems.
	// Labels: target, operation, status (HTTP status code or "error")
	//
	// Example:
	//	metrics.UpstreamRequests.WithLabelValues("salesforce", "describe", "200").Inc()
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfbridge_upstream_requests_total",
			Help: "Total number of requests made to upstream systems",
		},
		[]string{"target", "operation", "status"},
	)

	// UpstreamLatency tracks the distribution of upstream call durations in seconds.
	// Labels: target, operation
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sfbridge_upstream_latency_seconds",
			Help: "Upstream request latency in seconds",
			Buckets: []float64{
				0.01, // 10ms
				0.05, // 50ms
				0.1,  // 100ms
				0.25,
				0.5,
				1,
				2.5,
				5,
				10,
				30, // load jobs
				60,
				120,
			},
		},
		[]string{"target", "operation"},
	)

	// RecordsExtracted counts records returned by query pages.
	// Labels: object
	RecordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfbridge_records_extracted_total",
			Help: "Total number of CRM records extracted",
		},
		[]string{"object"},
	)

	// RowsLoaded counts rows appended to the warehouse.
	// Labels: object
	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfbridge_rows_loaded_total",
			Help: "Total number of rows appended to the warehouse",
		},
		[]string{"object"},
	)

	// SchemaMappingGaps counts native types that were downgraded or not recognised.
	// Labels: native_type
	SchemaMappingGaps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfbridge_schema_mapping_gaps_total",
			Help: "Total number of fields mapped to a fallback warehouse type",
		},
		[]string{"native_type"},
	)

	// ColumnsAdded counts columns added to existing warehouse tables.
	// Labels: object
	ColumnsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfbridge_columns_added_total",
			Help: "Total number of columns added to existing warehouse tables",
		},
		[]string{"object"},
	)

	// HTTPRequests counts inbound requests served by the broker.
	// Labels: route, status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfbridge_http_requests_total",
			Help: "Total number of inbound HTTP requests",
		},
		[]string{"route", "status"},
	)
)

// ObserveUpstream records one upstream call
func ObserveUpstream(target, operation, status string, d time.Duration) {
	UpstreamRequests.WithLabelValues(target, operation, status).Inc()
	UpstreamLatency.WithLabelValues(target, operation).Observe(d.Seconds())
}

// StatusLabel renders the status label for an HTTP exchange
func StatusLabel(resp *http.Response, err error) string {
	if err != nil || resp == nil {
		return "error"
	}
	return strconv.Itoa(resp.StatusCode)
}

// Handler exposes the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It may be called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
