// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequests counts served requests by route pattern and status class.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citadel_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ScoreComputations counts score reads by outcome: hit, miss or shared.
	ScoreComputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_score_computations_total",
			Help: "Citadel Score reads by cache outcome",
		},
		[]string{"outcome"},
	)

	ScoreDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "citadel_score_duration_seconds",
			Help:    "Time spent computing a Citadel Score",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	TraversalNodes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "citadel_traversal_nodes",
			Help:    "Nodes visited per traversal",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// GraphWrites counts accepted writes by entity type.
	GraphWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_graph_writes_total",
			Help: "Accepted graph writes",
		},
		[]string{"entity"},
	)

	VotesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_votes_rejected_total",
			Help: "Verification votes rejected",
		},
		[]string{"reason"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter", "tier"},
	)

	IdentitiesDerived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_identities_derived_total",
			Help: "Identity derivations by result",
		},
		[]string{"result"},
	)

	TrustRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "citadel_trust_refresh_duration_seconds",
			Help:    "Duration of a full trust refresh pass",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
	prometheus.MustRegister(ScoreComputations)
	prometheus.MustRegister(ScoreDuration)
	prometheus.MustRegister(TraversalNodes)
	prometheus.MustRegister(GraphWrites)
	prometheus.MustRegister(VotesRejected)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(IdentitiesDerived)
	prometheus.MustRegister(TrustRefreshDuration)
}
