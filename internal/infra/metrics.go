package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors shared by the fetch layer and the tracker.
var (
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgarkpi",
		Name:      "upstream_requests_total",
		Help:      "Requests sent to SEC EDGAR, by endpoint and HTTP status.",
	}, []string{"endpoint", "status"})

	UpstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgarkpi",
		Name:      "upstream_retries_total",
		Help:      "Retried SEC EDGAR requests, by endpoint.",
	}, []string{"endpoint"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edgarkpi",
		Name:      "upstream_request_seconds",
		Help:      "Latency of SEC EDGAR requests, retries included.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"endpoint"})

	ProviderFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgarkpi",
		Name:      "provider_fetches_total",
		Help:      "Registry fetches, by provider, model and outcome (fetched, cached or error).",
	}, []string{"provider", "model", "outcome"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgarkpi",
		Name:      "cache_lookups_total",
		Help:      "Fetch cache lookups, by model and result (hit or miss).",
	}, []string{"model", "result"})

	ConceptResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edgarkpi",
		Name:      "concept_resolutions_total",
		Help:      "KPI concept resolution outcomes, by concept and status.",
	}, []string{"concept", "status"})

	SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "edgarkpi",
		Name:      "snapshot_seconds",
		Help:      "Time to assemble a company snapshot.",
		Buckets:   prometheus.DefBuckets,
	})
)
