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
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var lineDirectivePattern = regexp.MustCompile(`^\s*#\s*line\s+(\d+)(?:\s+"([^"]+)")?\s*$`)

type (
	// LineDirectiveMap maps the lines of one file to the locations announced
	// by its #line directives. A directive `#line N "file"` on line i places
	// line i+1 at N of "file"; following lines advance from there. Lines
	// before the first directive map onto the file itself.
	LineDirectiveMap struct {
		anchors []anchor // sorted by generatedLine
	}

	anchor struct {
		generatedLine int
		location      SourceLocation
	}
)

// NewLineDirectiveMap builds the map for the given lines of path. Lines
// ending in a backslash are joined with the following line first, like the
// C preprocessor does.
func NewLineDirectiveMap(path string, lines []string) *LineDirectiveMap {
	joined := make([]string, len(lines))
	copy(joined, lines)
	for i := 0; i < len(joined)-1; i++ {
		line := joined[i]
		if strings.HasSuffix(strings.TrimSpace(line), `\`) {
			joined[i+1] = line[:strings.LastIndex(line, `\`)] + joined[i+1]
			joined[i] = ""
		}
	}

	m := &LineDirectiveMap{anchors: []anchor{{generatedLine: 1, location: SourceLocation{File: path, Line: 1}}}}
	currentFile := path
	for i, line := range joined {
		match := lineDirectivePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		lineNumber, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if match[2] != "" {
			currentFile = match[2]
		}
		m.set(anchor{generatedLine: i + 2, location: SourceLocation{File: currentFile, Line: lineNumber}})
	}
	return m
}

// ReadLineDirectiveMap reads path and builds its map.
func ReadLineDirectiveMap(path string) (*LineDirectiveMap, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewLineDirectiveMap(path, splitLines(string(content))), nil
}

func (m *LineDirectiveMap) set(a anchor) {
	last := len(m.anchors) - 1
	if m.anchors[last].generatedLine == a.generatedLine {
		m.anchors[last] = a
		return
	}
	m.anchors = append(m.anchors, a)
}

// OriginalLocation returns the original location of the 1-based line, or
// false for lines before the start of the file.
func (m *LineDirectiveMap) OriginalLocation(line int) (SourceLocation, bool) {
	i := sort.Search(len(m.anchors), func(i int) bool { return m.anchors[i].generatedLine > line }) - 1
	if i < 0 {
		return SourceLocation{}, false
	}
	a := m.anchors[i]
	return SourceLocation{File: a.location.File, Line: a.location.Line + line - a.generatedLine}, true
}

func splitLines(content string) []string {
	content = strings.TrimSuffix(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}
