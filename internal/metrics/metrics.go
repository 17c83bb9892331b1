// Copyright (c) 2026 John Earle
//
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

// Package metrics exposes Prometheus counters for the scan pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts completed scans by outcome.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodscan_scans_total",
		Help: "Completed mailbox scans by outcome.",
	}, []string{"outcome"})

	// EmailsFiltered counts emails rejected per filter tier.
	EmailsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodscan_emails_filtered_total",
		Help: "Emails rejected by the filter pipeline, by tier.",
	}, []string{"tier"})

	// EventsFound counts extracted events by food type.
	EventsFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodscan_events_found_total",
		Help: "Food events extracted, by food type.",
	}, []string{"food_type"})

	// BudgetSkips counts emails deferred because the extraction budget
	// was exhausted.
	BudgetSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodscan_budget_skips_total",
		Help: "Emails deferred to a later scan due to budget exhaustion.",
	})

	// ModelCalls counts external model invocations by purpose and result.
	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodscan_model_calls_total",
		Help: "External model calls by purpose and result.",
	}, []string{"purpose", "result"})

	// ModelLatency observes model call latency by purpose.
	ModelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodscan_model_call_seconds",
		Help:    "External model call latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"purpose"})

	// ScanDuration observes full scan duration.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "foodscan_scan_seconds",
		Help:    "Full mailbox scan duration in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)
