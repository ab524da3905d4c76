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

package sourcemap

import (
	"path"
	"path/filepath"

	"github.com/bazelbuild/bazel-gazelle/pathtools"
	"github.com/charmbracelet/log"
)

type (
	// Generation describes how a generated file was derived from an original
	// file: a copy with AddedLines extra lines prepended. Paths are
	// slash-separated and relative to their tree roots.
	Generation struct {
		Original   string `json:"original"`
		AddedLines int    `json:"added_lines"`
	}

	// TreeMap maps the files of a generated tree back to the original source
	// tree. After removing the prepended lines it follows the #line
	// directives of the original file, and reports paths those directives
	// name absolutely relative to the source root.
	TreeMap struct {
		sourceRoot  string
		generations map[string]Generation
		directives  map[string]*LineDirectiveMap
	}
)

var _ SourceMap = (*TreeMap)(nil)

// NewTreeMap creates a TreeMap for the generated files described by
// generations. Original files that cannot be read are mapped without #line
// handling.
func NewTreeMap(sourceRoot string, generations map[string]Generation) *TreeMap {
	m := &TreeMap{
		sourceRoot:  path.Clean(filepath.ToSlash(sourceRoot)),
		generations: make(map[string]Generation, len(generations)),
		directives:  make(map[string]*LineDirectiveMap),
	}
	for generated, generation := range generations {
		generation.Original = path.Clean(generation.Original)
		m.generations[path.Clean(generated)] = generation
		if _, seen := m.directives[generation.Original]; seen {
			continue
		}
		directives, err := ReadLineDirectiveMap(filepath.Join(sourceRoot, filepath.FromSlash(generation.Original)))
		if err != nil {
			log.Debugf("no #line information for %s: %v", generation.Original, err)
			m.directives[generation.Original] = nil
			continue
		}
		m.directives[generation.Original] = directives
	}
	return m
}

func (m *TreeMap) OriginalLocation(generated SourceLocation) (SourceLocation, bool) {
	generation, ok := m.generations[path.Clean(generated.File)]
	if !ok {
		return SourceLocation{}, false
	}
	location := SourceLocation{File: generation.Original, Line: generated.Line - generation.AddedLines}
	if location.Line < 1 {
		return SourceLocation{}, false
	}
	directives := m.directives[generation.Original]
	if directives == nil {
		return location, true
	}

	location, ok = directives.OriginalLocation(location.Line)
	if !ok {
		return SourceLocation{}, false
	}
	// #line directives are read from the file under the source root, so
	// locations without one carry that joined path.
	location.File = m.relativize(filepath.ToSlash(location.File))
	return location, true
}

func (m *TreeMap) relativize(file string) string {
	if m.sourceRoot == "." || !pathtools.HasPrefix(file, m.sourceRoot) {
		return file
	}
	return pathtools.TrimPrefix(file, m.sourceRoot)
}
