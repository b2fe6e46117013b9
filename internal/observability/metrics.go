// Package observability exposes Prometheus metrics for the quest service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	loginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quest_service",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome (success, no_match, not_eligible, locked).",
	}, []string{"outcome"})

	linkRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quest_service",
		Subsystem: "linkcheck",
		Name:      "rejections_total",
		Help:      "Link proof rejections by code.",
	}, []string{"code"})

	probeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quest_service",
		Subsystem: "linkcheck",
		Name:      "probe_duration_seconds",
		Help:      "Duration of outbound link existence probes.",
		Buckets:   prometheus.DefBuckets,
	})

	proofScored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quest_service",
		Subsystem: "proof",
		Name:      "scored_total",
		Help:      "Proofs scored by engine (text, vision, heuristic, link).",
	}, []string{"engine"})

	providerFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quest_service",
		Subsystem: "ai",
		Name:      "provider_fallbacks_total",
		Help:      "AI provider failures that triggered a fallback.",
	}, []string{"provider"})

	progressConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quest_service",
		Subsystem: "progress",
		Name:      "write_conflicts_total",
		Help:      "Progress writes rejected with a stale revision.",
	})

	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quest_service",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-class rate limiter.",
	}, []string{"class"})
)

func init() {
	prometheus.MustRegister(
		loginAttempts,
		linkRejections,
		probeDuration,
		proofScored,
		providerFallbacks,
		progressConflicts,
		rateLimited,
	)
}

// RecordLogin counts a login attempt outcome.
func RecordLogin(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordLinkRejection counts a coded link rejection.
func RecordLinkRejection(code string) {
	linkRejections.WithLabelValues(code).Inc()
}

// ObserveProbe records the duration of one existence probe.
func ObserveProbe(d time.Duration) {
	probeDuration.Observe(d.Seconds())
}

// RecordProofScored counts a proof scoring by the engine that produced it.
func RecordProofScored(engine string) {
	proofScored.WithLabelValues(engine).Inc()
}

// RecordProviderFallback counts an AI provider failure.
func RecordProviderFallback(provider string) {
	providerFallbacks.WithLabelValues(provider).Inc()
}

// RecordProgressConflict counts a stale-revision write rejection.
func RecordProgressConflict() {
	progressConflicts.Inc()
}

// RecordRateLimited counts a request rejected by the limiter.
func RecordRateLimited(class string) {
	rateLimited.WithLabelValues(class).Inc()
}
