// Package metrics holds the Prometheus collectors of the inference engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SolverFallbacks counts model solves that degraded to the ΛCDM curve
	SolverFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zfp_solver_fallbacks_total",
		Help: "Scalar-field solves that fell back to closed-form LCDM, by reason",
	}, []string{"reason"})

	// SolverDuration tracks a full solve including interpolation
	SolverDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zfp_solver_duration_seconds",
		Help:    "Model solve duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50us to ~400ms
	})

	// Evaluations counts log-probability evaluations by outcome
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zfp_likelihood_evaluations_total",
		Help: "Log-probability evaluations by outcome (ok, degraded, prior_rejected)",
	}, []string{"outcome"})

	// Proposals counts stretch-move proposals by result
	Proposals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zfp_sampler_proposals_total",
		Help: "Stretch-move proposals by result and phase",
	}, []string{"result", "phase"})

	// StepDuration tracks one ensemble generation including the barrier
	StepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zfp_sampler_step_duration_seconds",
		Help:    "Ensemble step duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	// Phase is the ordinal of the most recent sampler phase
	Phase = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zfp_sampler_phase",
		Help: "Current sampler phase (0 initialized, 1 burn-in, 2 production, 3 complete, -1 interrupted)",
	})

	// Runs counts finished inference runs by status
	Runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zfp_runs_total",
		Help: "Inference runs by final status",
	}, []string{"status"})
)

// Evaluation outcomes
const (
	OutcomeOK            = "ok"
	OutcomeDegraded      = "degraded"
	OutcomePriorRejected = "prior_rejected"
)

// ObserveSince records the elapsed time on a histogram.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
