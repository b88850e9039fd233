// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exports the tensioner counters and gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cycles
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tensioner",
		Subsystem: "cycle",
		Name:      "completed_total",
		Help:      "Total tensioning cycles that reached hold",
	})

	AbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensioner",
		Subsystem: "motion",
		Name:      "aborts_total",
		Help:      "Total motion aborts by reason",
	}, []string{"reason"})

	CorrectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensioner",
		Subsystem: "cycle",
		Name:      "corrections_total",
		Help:      "Total correction pulses by direction",
	}, []string{"direction"})

	SettleSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tensioner",
		Subsystem: "cycle",
		Name:      "settle_seconds",
		Help:      "Time from cycle start to reaching the target band",
		Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 20},
	})

	// Tuning
	TuneRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensioner",
		Subsystem: "tune",
		Name:      "runs_total",
		Help:      "Total tuning runs by result",
	}, []string{"result"})

	// Live state
	Tension = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tensioner",
		Name:      "tension_grams",
		Help:      "Latest scaled tension reading",
	})

	Position = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tensioner",
		Subsystem: "motion",
		Name:      "position_steps",
		Help:      "Slide position from the front switch",
	})

	Correction = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tensioner",
		Subsystem: "config",
		Name:      "correction_coefficient",
		Help:      "Current overshoot correction coefficient",
	})

	FineStep = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tensioner",
		Subsystem: "config",
		Name:      "fine_step",
		Help:      "Current fine correction step",
	})
)

// Abort counts a motion abort.
func Abort(reason string) {
	AbortsTotal.WithLabelValues(reason).Inc()
}

// Corrections counts correction pulses in each direction.
func Corrections(forward, backward int) {
	CorrectionsTotal.WithLabelValues("forward").Add(float64(forward))
	CorrectionsTotal.WithLabelValues("backward").Add(float64(backward))
}

// Tuned counts a tuning run.
func Tuned(result string) {
	TuneRunsTotal.WithLabelValues(result).Inc()
}

// Coefficients publishes the tunables learned by the controller.
func Coefficients(correction float64, fineStep int) {
	Correction.Set(correction)
	FineStep.Set(float64(fineStep))
}
