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

package analysis

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/EngFlow/variant_analysis/internal/collections"
	"github.com/EngFlow/variant_analysis/internal/formula"
	"github.com/EngFlow/variant_analysis/internal/jsonfile"
	"github.com/EngFlow/variant_analysis/internal/metrics"
	"github.com/EngFlow/variant_analysis/internal/sample"
	"github.com/EngFlow/variant_analysis/internal/sourcemap"
)

// UnknownCondition is the text rendering of a missing condition.
const UnknownCondition = "unknown"

// unconditionalKey stands for findings without a condition in a group's
// condition set. No serialized formula is empty.
const unconditionalKey = ""

type (
	// ResultSource provides previously stored analysis results.
	// cache.ResultCache implements it.
	ResultSource interface {
		AnalysisResult(iteration, index int, into any) bool
	}

	// Aggregator folds analysis results of many configurations into groups of
	// findings sharing a name and a set of evidence locations. It is safe for
	// concurrent use.
	Aggregator struct {
		tracker *sample.Tracker

		mu      sync.Mutex
		results []*AnalysisResult
		groups  map[string]*group
	}

	group struct {
		finding    Finding
		conditions collections.OrderedSet[string]
		nodes      []formula.Node
		affected   collections.OrderedSet[*sample.Configuration]
	}

	// FindingAggregation is one group of equivalent findings. Conditions lists
	// every distinct condition observed for the group in first-seen order; a
	// nil entry stands for findings observed without a condition.
	FindingAggregation struct {
		Name                   string
		Title                  string
		Evidence               []sourcemap.SourceLocation
		Conditions             []formula.Node
		AffectedConfigurations []*sample.Configuration
	}

	// AggregatedResult is an immutable snapshot of an Aggregator.
	AggregatedResult struct {
		Groups []FindingAggregation `json:"findingAggregations"`
	}
)

var _ json.Marshaler = FindingAggregation{}

// NewAggregator creates an empty aggregator. Configurations of added results
// are registered with tracker.
func NewAggregator(tracker *sample.Tracker) *Aggregator {
	return &Aggregator{tracker: tracker, groups: make(map[string]*group)}
}

// Add folds the findings of one result into the groups.
func (a *Aggregator) Add(result *AnalysisResult) {
	configuration := a.tracker.Track(result.EnabledFeatures)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result)
	for _, finding := range result.Findings {
		finding.Evidence = normalizeEvidence(slices.Clone(finding.Evidence))
		key := signature(finding)
		g, ok := a.groups[key]
		if !ok {
			g = &group{finding: finding}
			a.groups[key] = g
		}
		conditionKey := unconditionalKey
		if finding.Condition != nil {
			conditionKey = formula.Key(finding.Condition)
		}
		if g.conditions.Add(conditionKey) {
			g.nodes = append(g.nodes, finding.Condition)
		}
		g.affected.Add(configuration)
		metrics.Findings.Inc()
	}
}

// TryAddFromCache adds the cached result of the configuration at index of
// iteration and returns it, or returns nil if nothing usable is cached.
func (a *Aggregator) TryAddFromCache(source ResultSource, iteration, index int) *AnalysisResult {
	var result AnalysisResult
	if !source.AnalysisResult(iteration, index, &result) {
		return nil
	}
	a.Add(&result)
	return &result
}

// Results returns the added results in the order they were added.
func (a *Aggregator) Results() []*AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.results)
}

// AggregateResults returns a snapshot of all groups, sorted by name and then
// by evidence.
func (a *Aggregator) AggregateResults() *AggregatedResult {
	a.mu.Lock()
	groups := make([]FindingAggregation, 0, len(a.groups))
	for _, g := range a.groups {
		groups = append(groups, FindingAggregation{
			Name:                   g.finding.Name,
			Title:                  g.finding.Title,
			Evidence:               slices.Clone(g.finding.Evidence),
			Conditions:             slices.Clone(g.nodes),
			AffectedConfigurations: g.affected.Values(),
		})
	}
	a.mu.Unlock()

	slices.SortFunc(groups, compareAggregations)
	ambiguous := 0
	for _, g := range groups {
		if g.IsAmbiguous() {
			ambiguous++
		}
	}
	metrics.AggregatedGroups.WithLabelValues("true").Set(float64(ambiguous))
	metrics.AggregatedGroups.WithLabelValues("false").Set(float64(len(groups) - ambiguous))
	return &AggregatedResult{Groups: groups}
}

// IsAmbiguous reports whether the group was observed under more than one
// distinct condition, counting the absence of a condition as one.
func (fa FindingAggregation) IsAmbiguous() bool {
	return len(fa.Conditions) > 1
}

// Unconditional reports whether any configuration produced the finding
// without a condition.
func (fa FindingAggregation) Unconditional() bool {
	return slices.Contains(fa.Conditions, nil)
}

func (fa FindingAggregation) MarshalJSON() ([]byte, error) {
	conditions := collections.MapSlice(fa.Conditions, func(n formula.Node) *formula.Text {
		if n == nil {
			return nil
		}
		return &formula.Text{Node: n}
	})
	evidence := fa.Evidence
	if evidence == nil {
		evidence = []sourcemap.SourceLocation{}
	}
	return jsonfile.Marshal(struct {
		Name                   string                     `json:"name"`
		Title                  string                     `json:"title"`
		Evidence               []sourcemap.SourceLocation `json:"evidence"`
		Conditions             []*formula.Text            `json:"possibleConditions"`
		AffectedConfigurations []*sample.Configuration    `json:"affectedConfigurations"`
		Ambiguous              bool                       `json:"ambiguous"`
	}{fa.Name, fa.Title, evidence, conditions, fa.AffectedConfigurations, fa.IsAmbiguous()})
}

func (fa FindingAggregation) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s at %s\n", fa.Title, strings.Join(collections.MapSlice(fa.Evidence, sourcemap.SourceLocation.String), ", "))
	indices := collections.MapSlice(fa.AffectedConfigurations, func(c *sample.Configuration) string { return strconv.Itoa(c.Index) })
	fmt.Fprintf(&sb, "  configurations: %s\n", strings.Join(indices, ", "))
	conditions := collections.MapSlice(fa.Conditions, func(n formula.Node) string {
		if n == nil {
			return UnknownCondition
		}
		return n.String()
	})
	fmt.Fprintf(&sb, "  conditions: %s", strings.Join(conditions, ", "))
	return sb.String()
}

// Ambiguous returns the groups observed under more than one condition.
func (r *AggregatedResult) Ambiguous() []FindingAggregation {
	return collections.FilterSlice(r.Groups, FindingAggregation.IsAmbiguous)
}

func (r *AggregatedResult) String() string {
	return strings.Join(collections.MapSlice(r.Groups, FindingAggregation.String), "\n\n")
}

func signature(f Finding) string {
	var sb strings.Builder
	sb.WriteString(f.Name)
	for _, location := range f.Evidence {
		fmt.Fprintf(&sb, "\x00%s\x00%d", location.File, location.Line)
	}
	return sb.String()
}

func compareAggregations(l, r FindingAggregation) int {
	if c := strings.Compare(l.Name, r.Name); c != 0 {
		return c
	}
	return slices.CompareFunc(l.Evidence, r.Evidence, sourcemap.SourceLocation.Compare)
}
