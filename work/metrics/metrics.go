package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ValidationsTotal counts completed source validations. The "kind" label is
// the detected protocol and "result" is either "valid" or "invalid".
// This metric is a counter and only increases.
var ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iptv_scout_validations_total",
	Help: "Number of completed source validations",
}, []string{"kind", "result"})

// ValidationDuration observes end-to-end validation latency per protocol
// kind, including endpoint discovery and catalog fetches.
var ValidationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "iptv_scout_validation_duration_seconds",
	Help:    "End to end validation latency",
	Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
}, []string{"kind"})

// ProbeAttempts counts individual endpoint probes issued during discovery.
// The "protocol" label distinguishes stalker path probes from xtream API
// and playlist probes; "outcome" is "accepted" or "rejected".
var ProbeAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iptv_scout_probe_attempts_total",
	Help: "Number of endpoint probes issued",
}, []string{"protocol", "outcome"})

// ValidationsInFlight tracks validations currently running. This metric is
// a gauge, rising when a validation starts and falling when it completes.
var ValidationsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "iptv_scout_validations_in_flight",
	Help: "Number of validations currently running",
})

// CacheHits counts validation cache lookups. The "store" label is
// "result" or "geo"; "outcome" is "hit" or "miss".
var CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iptv_scout_cache_lookups_total",
	Help: "Number of cache lookups",
}, []string{"store", "outcome"})
