//
// Copyright © 2017 Solus Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package agent

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus series revshipd exposes on MetricsPath.
// Counting instructions, not packages, since the agent's whole job is
// running the executor pipeline, not building packages (contrast with
// the counterparts this was grounded on).
type metrics struct {
	instructionsApplied *prom.CounterVec
	applyDuration       *prom.HistogramVec
	generationsActive   prom.Gauge
}

func newMetrics(reg *prom.Registry) *metrics {
	m := &metrics{
		instructionsApplied: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "revshipd",
			Name:      "instructions_applied_total",
			Help:      "Instructions processed from the incoming directory, by outcome",
		}, []string{"outcome"}),
		applyDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "revshipd",
			Name:      "apply_duration_seconds",
			Help:      "Time spent executing one instruction",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"}),
		generationsActive: prom.NewGauge(prom.GaugeOpts{
			Namespace: "revshipd",
			Name:      "generations_total",
			Help:      "Number of generations recorded in the history store",
		}),
	}
	reg.MustRegister(m.instructionsApplied, m.applyDuration, m.generationsActive)
	return m
}
