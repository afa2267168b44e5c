// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"axonflow/aiservice/llm"
)

// Metrics are the Prometheus collectors the dispatcher updates. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	attempts  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	cache     *prometheus.CounterVec
	failovers *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// non-nil. Registration panics on duplicate collectors, so pass a fresh
// registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axonflow_ai_provider_attempts_total",
				Help: "Total number of provider attempts by outcome",
			},
			[]string{"provider", "operation", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "axonflow_ai_provider_duration_milliseconds",
				Help:    "Provider attempt duration in milliseconds",
				Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
			},
			[]string{"provider", "operation"},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axonflow_ai_cache_lookups_total",
				Help: "Total number of cache lookups by result",
			},
			[]string{"operation", "result"},
		),
		failovers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axonflow_ai_failovers_total",
				Help: "Total number of failovers between providers",
			},
			[]string{"from", "to", "operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.latency, m.cache, m.failovers)
	}
	return m
}

func (m *Metrics) observeAttempt(provider string, op llm.Operation, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		if pe, ok := llm.AsProviderError(err); ok {
			status = string(pe.Kind)
		}
	}
	m.attempts.WithLabelValues(provider, string(op), status).Inc()
	m.latency.WithLabelValues(provider, string(op)).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) observeCache(op llm.Operation, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(string(op), result).Inc()
}

func (m *Metrics) observeFailover(from, to string, op llm.Operation) {
	if m == nil {
		return
	}
	m.failovers.WithLabelValues(from, to, string(op)).Inc()
}
