package evo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"elfin/internal/team"
)

var (
	// mutationAttempts counts operator applications by operator
	mutationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elfin_mutation_attempts_total",
		Help: "Mutation operator applications by operator",
	}, []string{"operator"})

	// mutationFailures counts operators that found no valid edit
	mutationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elfin_mutation_failures_total",
		Help: "Mutation operator failures by operator",
	}, []string{"operator"})

	// phaseDuration tracks generation phase latency
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "elfin_generation_phase_seconds",
		Help:    "Generation phase duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
	}, []string{"phase"})

	// bestScore is the best score of the latest generation per work area
	bestScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "elfin_best_score",
		Help: "Best candidate score of the latest generation",
	}, []string{"work_area"})

	// generations counts completed generations per work area
	generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elfin_generations_total",
		Help: "Completed generations by work area",
	}, []string{"work_area"})
)

func observeCounters(c MutationCounters) {
	for i := range c.Attempts {
		if c.Attempts[i] == 0 {
			continue
		}
		name := team.Mutation(i).String()
		mutationAttempts.WithLabelValues(name).Add(float64(c.Attempts[i]))
		mutationFailures.WithLabelValues(name).Add(float64(c.Failures[i]))
	}
}
