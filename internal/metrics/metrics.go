// Package metrics provides Prometheus metrics for the stock search service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeFound       = "found"
	OutcomeFundMissing = "fund_missing"
	OutcomeNoTicker    = "no_ticker"

	ComponentLLM     = "llm"
	ComponentFund    = "fund_store"
	ComponentMarket  = "market_data"
	ComponentHistory = "history"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SearchOutcomesTotal   *prometheus.CounterVec
	UpstreamFailuresTotal *prometheus.CounterVec
	UpstreamCallDuration  *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockchat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockchat_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		SearchOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockchat_search_outcomes_total",
				Help: "Stock searches by outcome",
			},
			[]string{"outcome"},
		),
		UpstreamFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockchat_upstream_failures_total",
				Help: "Upstream calls that failed and were degraded",
			},
			[]string{"component"},
		),
		UpstreamCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockchat_upstream_call_duration_seconds",
				Help:    "Duration of upstream calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"component"},
		),
	}
}

// RecordSearch counts a search outcome
func (m *Metrics) RecordSearch(outcome string) {
	m.SearchOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordUpstreamFailure counts a degraded upstream call
func (m *Metrics) RecordUpstreamFailure(component string) {
	m.UpstreamFailuresTotal.WithLabelValues(component).Inc()
}

// ObserveUpstream records how long an upstream call took
func (m *Metrics) ObserveUpstream(component string, start time.Time) {
	m.UpstreamCallDuration.WithLabelValues(component).Observe(time.Since(start).Seconds())
}

// RecordHTTPRequest records a served HTTP request
func (m *Metrics) RecordHTTPRequest(route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
