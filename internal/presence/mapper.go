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

// Package presence answers the question "under which feature selection does
// this line of a generated variant exist?" by combining a source map, a table
// of per-file conditions and per-file line conditions.
//
// An answer is either a formula or unknown. Mappers never guess: whenever one
// of the inputs has no information for a location, the result is unknown.
package presence

import (
	"maps"

	"github.com/charmbracelet/log"

	"github.com/EngFlow/variant_analysis/internal/formula"
	"github.com/EngFlow/variant_analysis/internal/metrics"
	"github.com/EngFlow/variant_analysis/internal/sourcemap"
)

type (
	// Mapper determines the presence condition of a line of a generated file.
	// Implementations are immutable and safe for concurrent use.
	Mapper interface {
		// PresenceCondition returns the condition of the 1-based line of the
		// generated file, or false if it is unknown.
		PresenceCondition(file string, line int) (formula.Node, bool)
	}

	// LineConditions provides the condition of each line of one original
	// file. *conditiontree.Tree implements it.
	LineConditions interface {
		ConditionOfLine(line int) (formula.Node, error)
	}

	// Empty knows nothing.
	Empty struct{}

	// CombinedMapper resolves a generated location through a source map,
	// then conjoins the condition of the original file with the condition of
	// the original line.
	CombinedMapper struct {
		files     *FileConditionTable
		lines     map[string]LineConditions
		sourceMap sourcemap.SourceMap
	}

	// TreeMapper answers from line conditions alone. It suits composers that
	// keep paths and line numbers, such as the Antenna composer.
	TreeMapper struct {
		lines map[string]LineConditions
	}
)

var (
	_ Mapper = Empty{}
	_ Mapper = (*CombinedMapper)(nil)
	_ Mapper = (*TreeMapper)(nil)
)

func (Empty) PresenceCondition(string, int) (formula.Node, bool) {
	return nil, false
}

// NewCombinedMapper creates a mapper over the given inputs. lines is keyed by
// generated file path: each generated file is registered with the line
// conditions of the original file it was produced from.
func NewCombinedMapper(files *FileConditionTable, lines map[string]LineConditions, sourceMap sourcemap.SourceMap) *CombinedMapper {
	return &CombinedMapper{files: files, lines: maps.Clone(lines), sourceMap: sourceMap}
}

func (m *CombinedMapper) PresenceCondition(file string, line int) (formula.Node, bool) {
	original, ok := m.sourceMap.OriginalLocation(sourcemap.SourceLocation{File: file, Line: line})
	if !ok {
		log.Debugf("no original location for %s:%d", file, line)
		metrics.UnknownConditions.WithLabelValues(metrics.ReasonNoSourceLocation).Inc()
		return nil, false
	}

	fileCondition, ok := m.files.Lookup(original.File)
	if !ok {
		log.Debugf("no file presence condition for %s (generated %s)", original.File, file)
		metrics.UnknownConditions.WithLabelValues(metrics.ReasonNoFileCondition).Inc()
		return nil, false
	}

	lineCondition, ok := lineConditionOf(m.lines, file, original.Line)
	if !ok {
		return nil, false
	}
	return formula.NewAnd(fileCondition, lineCondition), true
}

// NewTreeMapper creates a mapper from line conditions keyed by file path.
func NewTreeMapper(lines map[string]LineConditions) *TreeMapper {
	return &TreeMapper{lines: maps.Clone(lines)}
}

func (m *TreeMapper) PresenceCondition(file string, line int) (formula.Node, bool) {
	return lineConditionOf(m.lines, file, line)
}

func lineConditionOf(lines map[string]LineConditions, file string, line int) (formula.Node, bool) {
	conditions, ok := lines[file]
	if !ok {
		log.Debugf("no line presence conditions for %s", file)
		metrics.UnknownConditions.WithLabelValues(metrics.ReasonNoLineCondition).Inc()
		return nil, false
	}
	condition, err := conditions.ConditionOfLine(line)
	if err != nil {
		log.Debugf("no line presence condition for %s:%d: %v", file, line, err)
		metrics.UnknownConditions.WithLabelValues(metrics.ReasonNoLineCondition).Inc()
		return nil, false
	}
	return condition, true
}
