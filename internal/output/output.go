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

// Package output renders the results of a run.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/EngFlow/variant_analysis/internal/analysis"
	"github.com/EngFlow/variant_analysis/internal/collections"
	"github.com/EngFlow/variant_analysis/internal/jsonfile"
	"github.com/EngFlow/variant_analysis/internal/sample"
	"github.com/EngFlow/variant_analysis/internal/sourcemap"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type (
	// Data holds everything reported about a run. Results and aggregated
	// groups refer to configurations by their index in Configurations.
	Data struct {
		Configurations []*sample.Configuration
		Results        []IndividualResult
		Aggregated     *analysis.AggregatedResult
	}

	IndividualResult struct {
		Configuration *sample.Configuration `json:"configuration"`
		Findings      []analysis.Finding    `json:"findings"`
	}

	dataJSON struct {
		Configurations []map[string]bool          `json:"configurations"`
		Results        []IndividualResult         `json:"individualResults"`
		Aggregated     *analysis.AggregatedResult `json:"aggregatedResult"`
	}
)

// ParseFormat returns the format with the given name.
func ParseFormat(name string) (Format, error) {
	switch format := Format(strings.ToLower(name)); format {
	case FormatJSON, FormatText:
		return format, nil
	}
	return "", fmt.Errorf("unknown output format %q, expected %q or %q", name, FormatJSON, FormatText)
}

// NewData collects the output of a run. The configurations of results are
// registered with tracker, which must be the tracker of the aggregator that
// produced aggregated.
func NewData(tracker *sample.Tracker, results []*analysis.AnalysisResult, aggregated *analysis.AggregatedResult) *Data {
	individual := collections.MapSlice(results, func(r *analysis.AnalysisResult) IndividualResult {
		findings := r.Findings
		if findings == nil {
			findings = []analysis.Finding{}
		}
		return IndividualResult{Configuration: tracker.Track(r.EnabledFeatures), Findings: findings}
	})
	return &Data{
		Configurations: tracker.Configurations(),
		Results:        individual,
		Aggregated:     aggregated,
	}
}

// Write renders d to w in the given format.
func (d *Data) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		return jsonfile.Encode(w, dataJSON{
			Configurations: sample.Full(d.Configurations),
			Results:        d.Results,
			Aggregated:     d.Aggregated,
		}, "  ")
	case FormatText:
		_, err := io.WriteString(w, d.String())
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

func (d *Data) String() string {
	var sb strings.Builder
	sb.WriteString("Summary:\n")
	for _, result := range d.Results {
		fmt.Fprintf(&sb, "Configuration %d (enabled: %s): %d findings\n",
			result.Configuration.Index,
			strings.Join(result.Configuration.EnabledFeatures(), ", "),
			len(result.Findings))
		for _, finding := range result.Findings {
			condition := analysis.UnknownCondition
			if finding.Condition != nil {
				condition = finding.Condition.String()
			}
			fmt.Fprintf(&sb, "  %s: %s at %s; condition: %s\n",
				finding.Name,
				finding.Title,
				strings.Join(collections.MapSlice(finding.Evidence, sourcemap.SourceLocation.String), ", "),
				condition)
		}
	}
	if d.Aggregated != nil && len(d.Aggregated.Groups) > 0 {
		sb.WriteString("\nAggregated findings:\n")
		sb.WriteString(d.Aggregated.String())
		sb.WriteByte('\n')
		if ambiguous := d.Aggregated.Ambiguous(); len(ambiguous) > 0 {
			fmt.Fprintf(&sb, "\n%d of %d findings depend on the configuration in more than one way\n", len(ambiguous), len(d.Aggregated.Groups))
		}
	}
	return sb.String()
}
