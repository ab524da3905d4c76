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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EngFlow/variant_analysis/internal/formula"
	"github.com/EngFlow/variant_analysis/internal/sample"
	"github.com/EngFlow/variant_analysis/internal/sourcemap"
)

type fakeMapper map[sourcemap.SourceLocation]formula.Node

func (m fakeMapper) PresenceCondition(file string, line int) (formula.Node, bool) {
	condition, ok := m[sourcemap.SourceLocation{File: file, Line: line}]
	return condition, ok
}

type shiftMap struct{}

func (shiftMap) OriginalLocation(generated sourcemap.SourceLocation) (sourcemap.SourceLocation, bool) {
	if generated.Line > 100 {
		return sourcemap.SourceLocation{}, false
	}
	return sourcemap.SourceLocation{File: "orig/" + generated.File, Line: generated.Line + 1}, true
}

func loc(file string, line int) sourcemap.SourceLocation {
	return sourcemap.SourceLocation{File: file, Line: line}
}

func TestAnnotate(t *testing.T) {
	mapper := fakeMapper{loc("a.c", 3): formula.Var("A")}
	raw := []RawFinding{
		{Name: "single", Title: "one location", Evidence: []sourcemap.SourceLocation{loc("a.c", 3)}},
		{Name: "unknown", Title: "no condition", Evidence: []sourcemap.SourceLocation{loc("b.c", 3)}},
		{Name: "multi", Title: "two locations", Evidence: []sourcemap.SourceLocation{loc("b.c", 9), loc("a.c", 3), loc("b.c", 9)}},
		{Name: "unmapped", Title: "dropped evidence", Evidence: []sourcemap.SourceLocation{loc("a.c", 3), loc("a.c", 200)}},
	}

	findings := Annotate(raw, mapper, shiftMap{})
	require.Len(t, findings, 4)

	assert.Equal(t, []sourcemap.SourceLocation{loc("orig/a.c", 4)}, findings[0].Evidence)
	assert.True(t, formula.Equal(formula.Var("A"), findings[0].Condition))

	assert.Nil(t, findings[1].Condition)

	assert.Equal(t, []sourcemap.SourceLocation{loc("orig/a.c", 4), loc("orig/b.c", 10)}, findings[2].Evidence)
	assert.Nil(t, findings[2].Condition, "conditions are only computed for single evidence")

	assert.Equal(t, []sourcemap.SourceLocation{loc("orig/a.c", 4)}, findings[3].Evidence)
	assert.Nil(t, findings[3].Condition)
}

func TestFindingJSON(t *testing.T) {
	testCases := []struct {
		name     string
		finding  Finding
		expected string
	}{
		{
			name:     "with condition",
			finding:  Finding{Name: "n", Title: "t", Evidence: []sourcemap.SourceLocation{loc("a.c", 1)}, Condition: formula.MustParse("&(A !(B))")},
			expected: `{"name":"n","title":"t","evidence":[{"file":"a.c","line":1}],"condition":"&(A !(B))"}`,
		},
		{
			name:     "without condition",
			finding:  Finding{Name: "n", Title: "t"},
			expected: `{"name":"n","title":"t","evidence":[],"condition":null}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.finding)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(data))

			var decoded Finding
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tc.finding.Name, decoded.Name)
			assert.Equal(t, len(tc.finding.Evidence), len(decoded.Evidence))
			if tc.finding.Condition == nil {
				assert.Nil(t, decoded.Condition)
			} else {
				assert.True(t, formula.Equal(tc.finding.Condition, decoded.Condition))
			}
		})
	}
}

func result(features map[string]bool, findings ...Finding) *AnalysisResult {
	return &AnalysisResult{EnabledFeatures: features, Findings: findings}
}

func TestAggregatorMergesEqualFindings(t *testing.T) {
	aggregator := NewAggregator(sample.NewTracker())
	evidence := []sourcemap.SourceLocation{loc("a.c", 5)}
	aggregator.Add(result(map[string]bool{"A": true}, Finding{Name: "leak", Title: "Leak", Evidence: evidence, Condition: formula.Var("A")}))
	aggregator.Add(result(map[string]bool{"A": true, "B": true}, Finding{Name: "leak", Title: "Leak", Evidence: evidence, Condition: formula.Var("A")}))

	aggregated := aggregator.AggregateResults()
	require.Len(t, aggregated.Groups, 1)
	group := aggregated.Groups[0]
	assert.Len(t, group.Conditions, 1)
	assert.False(t, group.IsAmbiguous())
	assert.Equal(t, []int{0, 1}, configurationIndices(group))
	assert.Empty(t, aggregated.Ambiguous())
}

func TestAggregatorAmbiguity(t *testing.T) {
	testCases := []struct {
		name       string
		conditions []formula.Node
		ambiguous  bool
	}{
		{name: "single condition", conditions: []formula.Node{formula.Var("A"), formula.Var("A")}},
		{name: "only unconditional", conditions: []formula.Node{nil, nil}},
		{name: "distinct conditions", conditions: []formula.Node{formula.Var("A"), formula.NewNot(formula.Var("B"))}, ambiguous: true},
		{name: "condition and unconditional", conditions: []formula.Node{formula.Var("A"), nil}, ambiguous: true},
		{name: "structurally equal", conditions: []formula.Node{formula.MustParse("&(A B)"), formula.NewAnd(formula.Var("A"), formula.Var("B"))}},
		{name: "order sensitive", conditions: []formula.Node{formula.MustParse("&(A B)"), formula.MustParse("&(B A)")}, ambiguous: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			aggregator := NewAggregator(sample.NewTracker())
			for i, condition := range tc.conditions {
				aggregator.Add(result(map[string]bool{"X": i == 0}, Finding{Name: "f", Evidence: []sourcemap.SourceLocation{loc("a.c", 1)}, Condition: condition}))
			}
			groups := aggregator.AggregateResults().Groups
			require.Len(t, groups, 1)
			assert.Equal(t, tc.ambiguous, groups[0].IsAmbiguous())
		})
	}
}

func TestAggregatorNeverMergesDifferentEvidence(t *testing.T) {
	aggregator := NewAggregator(sample.NewTracker())
	aggregator.Add(result(map[string]bool{},
		Finding{Name: "f", Evidence: []sourcemap.SourceLocation{loc("b.c", 1)}},
		Finding{Name: "f", Evidence: []sourcemap.SourceLocation{loc("a.c", 1)}},
		Finding{Name: "f", Evidence: []sourcemap.SourceLocation{loc("a.c", 1), loc("b.c", 1)}},
		Finding{Name: "e", Evidence: []sourcemap.SourceLocation{loc("b.c", 1)}},
	))

	groups := aggregator.AggregateResults().Groups
	require.Len(t, groups, 4)
	assert.Equal(t, "e", groups[0].Name)
	assert.Equal(t, []sourcemap.SourceLocation{loc("a.c", 1)}, groups[1].Evidence)
	assert.Equal(t, []sourcemap.SourceLocation{loc("a.c", 1), loc("b.c", 1)}, groups[2].Evidence)
	assert.Equal(t, []sourcemap.SourceLocation{loc("b.c", 1)}, groups[3].Evidence)
}

func TestAggregatorGroupsByEvidenceSet(t *testing.T) {
	aggregator := NewAggregator(sample.NewTracker())
	ordered := []sourcemap.SourceLocation{loc("a.c", 1), loc("b.c", 2)}
	shuffled := []sourcemap.SourceLocation{loc("b.c", 2), loc("a.c", 1), loc("a.c", 1)}
	aggregator.Add(result(map[string]bool{"X": true}, Finding{Name: "n", Evidence: ordered, Condition: formula.Var("X")}))
	aggregator.Add(result(map[string]bool{"Y": true}, Finding{Name: "n", Evidence: shuffled, Condition: formula.Var("Y")}))

	groups := aggregator.AggregateResults().Groups
	require.Len(t, groups, 1)
	assert.Equal(t, ordered, groups[0].Evidence)
	assert.True(t, groups[0].IsAmbiguous())
	assert.Equal(t, []sourcemap.SourceLocation{loc("b.c", 2), loc("a.c", 1), loc("a.c", 1)}, shuffled, "added findings are not modified")
}

func TestAggregatorSnapshotIsImmutable(t *testing.T) {
	aggregator := NewAggregator(sample.NewTracker())
	finding := Finding{Name: "f", Evidence: []sourcemap.SourceLocation{loc("a.c", 1)}, Condition: formula.Var("A")}
	aggregator.Add(result(map[string]bool{"A": true}, finding))
	snapshot := aggregator.AggregateResults()

	finding.Condition = formula.Var("B")
	aggregator.Add(result(map[string]bool{"B": true}, finding))

	assert.Len(t, snapshot.Groups[0].Conditions, 1)
	assert.Len(t, aggregator.AggregateResults().Groups[0].Conditions, 2)
}

func TestAggregatorConcurrentAdd(t *testing.T) {
	aggregator := NewAggregator(sample.NewTracker())
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			aggregator.Add(result(map[string]bool{fmt.Sprint("F", i): true},
				Finding{Name: "f", Evidence: []sourcemap.SourceLocation{loc("a.c", 1)}, Condition: formula.Var(fmt.Sprint("C", i%4))},
			))
		}(i)
	}
	wg.Wait()

	groups := aggregator.AggregateResults().Groups
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Conditions, 4)
	assert.Len(t, groups[0].AffectedConfigurations, 32)
	assert.Len(t, aggregator.Results(), 32)
}

type fakeSource map[[2]int]*AnalysisResult

func (s fakeSource) AnalysisResult(iteration, index int, into any) bool {
	r, ok := s[[2]int{iteration, index}]
	if !ok {
		return false
	}
	data, err := json.Marshal(r)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, into) == nil
}

func TestTryAddFromCache(t *testing.T) {
	source := fakeSource{
		{0, 1}: result(map[string]bool{"A": true}, Finding{Name: "f", Evidence: []sourcemap.SourceLocation{loc("a.c", 2)}, Condition: formula.Var("A")}),
	}
	aggregator := NewAggregator(sample.NewTracker())

	assert.Nil(t, aggregator.TryAddFromCache(source, 0, 0))
	cached := aggregator.TryAddFromCache(source, 0, 1)
	require.NotNil(t, cached)
	assert.Equal(t, map[string]bool{"A": true}, cached.EnabledFeatures)

	groups := aggregator.AggregateResults().Groups
	require.Len(t, groups, 1)
	assert.True(t, formula.Equal(formula.Var("A"), groups[0].Conditions[0]))
}

func TestFindingAggregationJSON(t *testing.T) {
	aggregator := NewAggregator(sample.NewTracker())
	evidence := []sourcemap.SourceLocation{loc("a.c", 1)}
	aggregator.Add(result(map[string]bool{"A": true}, Finding{Name: "f", Title: "T", Evidence: evidence, Condition: formula.MustParse("&(A)")}))
	aggregator.Add(result(map[string]bool{"A": false}, Finding{Name: "f", Title: "T", Evidence: evidence}))

	data, err := json.Marshal(aggregator.AggregateResults())
	require.NoError(t, err)
	assert.JSONEq(t, `{"findingAggregations": [{
		"name": "f",
		"title": "T",
		"evidence": [{"file": "a.c", "line": 1}],
		"possibleConditions": ["&(A)", null],
		"affectedConfigurations": [0, 1],
		"ambiguous": true
	}]}`, string(data))
}

func TestFindingAggregationString(t *testing.T) {
	aggregation := FindingAggregation{
		Title:                  "Leak",
		Evidence:               []sourcemap.SourceLocation{loc("a.c", 1), loc("b.c", 2)},
		Conditions:             []formula.Node{formula.Var("A"), nil},
		AffectedConfigurations: []*sample.Configuration{{Index: 0}, {Index: 3}},
	}
	assert.Equal(t, "Leak at a.c:1, b.c:2\n  configurations: 0, 3\n  conditions: A, unknown", aggregation.String())
	assert.True(t, aggregation.Unconditional())
}

func configurationIndices(fa FindingAggregation) []int {
	indices := make([]int, 0, len(fa.AffectedConfigurations))
	for _, c := range fa.AffectedConfigurations {
		indices = append(indices, c.Index)
	}
	return indices
}
