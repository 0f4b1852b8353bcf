// Package metrics provides Prometheus collectors for the parlay client.
// Labels are bounded enums only: no user, attempt or debug ids.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationAttemptsTotal counts attempts by mode and outcome kind.
	GenerationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlay_generation_attempts_total",
		Help: "Total number of generation attempts, by mode and outcome.",
	}, []string{"mode", "outcome"})

	// GenerationDuration observes wall time of generation calls.
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parlay_generation_duration_seconds",
		Help:    "Duration of generation calls, by mode.",
		Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120, 150, 180},
	}, []string{"mode"})

	// GenerationInFlight is 1 while an attempt is in flight.
	GenerationInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parlay_generation_in_flight",
		Help: "Whether a generation attempt is currently in flight.",
	})

	// PreflightRejectTotal counts attempts rejected before any network call.
	PreflightRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlay_preflight_reject_total",
		Help: "Total number of generation attempts rejected before the network call, by reason.",
	}, []string{"reason"})

	// RecoveryAppliedTotal counts applied recovery actions.
	RecoveryAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlay_recovery_applied_total",
		Help: "Total number of recovery actions applied, by action.",
	}, []string{"action"})

	// RecoveryResultTotal counts what the attempt after a recovery action produced.
	RecoveryResultTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlay_recovery_result_total",
		Help: "Outcome of attempts issued after a recovery action, by action and outcome.",
	}, []string{"action", "outcome"})

	// PaywallShownTotal counts paywall prompts by reason and origin.
	PaywallShownTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlay_paywall_shown_total",
		Help: "Total number of paywall prompts, by reason and origin (preflight/response).",
	}, []string{"reason", "origin"})

	// EntitlementFetchTotal counts entitlement fetches by result.
	EntitlementFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlay_entitlement_fetch_total",
		Help: "Total number of entitlement fetches, by result (ok/error/discarded).",
	}, []string{"result"})

	// ProbeResultTotal counts availability probe reads by result.
	ProbeResultTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlay_probe_result_total",
		Help: "Total number of availability probe reads, by result (ok/error/cache_hit).",
	}, []string{"result"})

	// ProbeStaleTotal counts probe results discarded because the selection moved on.
	ProbeStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlay_probe_stale_total",
		Help: "Total number of availability probe results discarded as stale.",
	})

	// WeeksSyncTotal counts NFL week list refreshes by result.
	WeeksSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlay_weeks_sync_total",
		Help: "Total number of NFL week list refreshes, by result.",
	}, []string{"result"})

	// TelemetryDropTotal counts telemetry events that could not be delivered.
	TelemetryDropTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlay_telemetry_drop_total",
		Help: "Total number of telemetry events dropped after a delivery failure.",
	})
)

// Result label values.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultDiscarded = "discarded"
	ResultCacheHit  = "cache_hit"
)

// Paywall origins.
const (
	OriginPreflight = "preflight"
	OriginResponse  = "response"
)

// RecordAttempt records the end of one generation attempt.
func RecordAttempt(mode, outcome string, seconds float64) {
	GenerationAttemptsTotal.WithLabelValues(mode, outcome).Inc()
	GenerationDuration.WithLabelValues(mode).Observe(seconds)
}

// RecordRecoveryResult attributes an outcome to the action that produced the attempt.
func RecordRecoveryResult(action, outcome string) {
	if action == "" {
		return
	}
	RecoveryResultTotal.WithLabelValues(action, outcome).Inc()
}
