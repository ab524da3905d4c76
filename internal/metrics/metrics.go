// Copyright 2026 EngFlow Inc. All rights reserved.
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

// Package metrics holds the prometheus counters of an analysis run. They are
// registered on a private registry and written out as a textfile at the end
// of the run, for collection by a node exporter or inspection by hand.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "variant_analysis"

// Outcome label values of CacheLookups.
const (
	OutcomeHit  = "hit"
	OutcomeMiss = "miss"
)

// Reason label values of UnknownConditions.
const (
	ReasonNoSourceLocation = "no_source_location"
	ReasonNoFileCondition  = "no_file_condition"
	ReasonNoLineCondition  = "no_line_condition"
)

var (
	Registry = prometheus.NewRegistry()

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by entry kind and outcome",
		},
		[]string{"entry", "outcome"},
	)

	UnknownConditions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "unknown_conditions_total",
			Help:      "Presence condition queries that could not be answered, by reason",
		},
		[]string{"reason"},
	)

	Findings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "findings_total",
			Help:      "Findings added to the aggregator",
		},
	)

	AggregatedGroups = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "groups",
			Help:      "Distinct finding groups in the last aggregate snapshot, split by ambiguity",
		},
		[]string{"ambiguous"},
	)

	Variants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "variants_total",
			Help:      "Variants processed by the runner, by how their result was obtained",
		},
		[]string{"source"},
	)
)

func init() {
	Registry.MustRegister(CacheLookups, UnknownConditions, Findings, AggregatedGroups, Variants)
}

// CacheLookup records one cache lookup of the given entry kind.
func CacheLookup(entry string, hit bool) {
	outcome := OutcomeMiss
	if hit {
		outcome = OutcomeHit
	}
	CacheLookups.WithLabelValues(entry, outcome).Inc()
}

// WriteTextfile writes all metrics of Registry to path in the prometheus text
// exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
