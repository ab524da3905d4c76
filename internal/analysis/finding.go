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

// Package analysis turns analyzer output into findings located in the original
// source tree and aggregates them across all analyzed configurations.
package analysis

import (
	"encoding/json"
	"slices"

	"github.com/EngFlow/variant_analysis/internal/formula"
	"github.com/EngFlow/variant_analysis/internal/jsonfile"
	"github.com/EngFlow/variant_analysis/internal/presence"
	"github.com/EngFlow/variant_analysis/internal/sourcemap"
)

type (
	// RawFinding is a finding as reported by an analyzer, located in the
	// generated variant.
	RawFinding struct {
		Name     string                     `json:"name"`
		Title    string                     `json:"title"`
		Evidence []sourcemap.SourceLocation `json:"evidence"`
	}

	// Finding is a finding located in the original source tree. Evidence is
	// sorted and free of duplicates. A nil Condition means the finding has no
	// known presence condition in its configuration.
	Finding struct {
		Name      string
		Title     string
		Evidence  []sourcemap.SourceLocation
		Condition formula.Node
	}

	// AnalysisResult holds the findings of exactly one configuration.
	AnalysisResult struct {
		EnabledFeatures map[string]bool `json:"enabledFeatures"`
		Findings        []Finding       `json:"findings"`
	}

	findingJSON struct {
		Name      string                     `json:"name"`
		Title     string                     `json:"title"`
		Evidence  []sourcemap.SourceLocation `json:"evidence"`
		Condition *formula.Text              `json:"condition"`
	}
)

var (
	_ json.Marshaler   = Finding{}
	_ json.Unmarshaler = (*Finding)(nil)
)

func (f Finding) MarshalJSON() ([]byte, error) {
	encoded := findingJSON{Name: f.Name, Title: f.Title, Evidence: f.Evidence}
	if encoded.Evidence == nil {
		encoded.Evidence = []sourcemap.SourceLocation{}
	}
	if f.Condition != nil {
		encoded.Condition = &formula.Text{Node: f.Condition}
	}
	return jsonfile.Marshal(encoded)
}

func (f *Finding) UnmarshalJSON(data []byte) error {
	var decoded findingJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*f = Finding{Name: decoded.Name, Title: decoded.Title, Evidence: normalizeEvidence(decoded.Evidence)}
	if decoded.Condition != nil {
		f.Condition = decoded.Condition.Node
	}
	return nil
}

// Annotate maps raw findings of one configuration into the original source
// tree. Evidence the source map cannot resolve is dropped. The presence
// condition is only determined for findings with exactly one piece of
// evidence, since the conditions of several locations cannot be told apart.
func Annotate(raw []RawFinding, mapper presence.Mapper, sourceMap sourcemap.SourceMap) []Finding {
	findings := make([]Finding, 0, len(raw))
	for _, r := range raw {
		finding := Finding{Name: r.Name, Title: r.Title}
		if len(r.Evidence) == 1 {
			if condition, ok := mapper.PresenceCondition(r.Evidence[0].File, r.Evidence[0].Line); ok {
				finding.Condition = condition
			}
		}
		for _, generated := range r.Evidence {
			if original, ok := sourceMap.OriginalLocation(generated); ok {
				finding.Evidence = append(finding.Evidence, original)
			}
		}
		finding.Evidence = normalizeEvidence(finding.Evidence)
		findings = append(findings, finding)
	}
	return findings
}

func normalizeEvidence(evidence []sourcemap.SourceLocation) []sourcemap.SourceLocation {
	slices.SortFunc(evidence, sourcemap.SourceLocation.Compare)
	return slices.Compact(evidence)
}
