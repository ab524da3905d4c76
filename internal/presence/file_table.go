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

package presence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bazelbuild/buildtools/build"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/EngFlow/variant_analysis/internal/collections"
	"github.com/EngFlow/variant_analysis/internal/formula"
	"github.com/EngFlow/variant_analysis/internal/jsonfile"
)

type (
	// FileConditionTable maps original file paths to the condition under
	// which the build includes the file at all. Keys are either exact
	// slash-separated paths or doublestar patterns such as "drivers/**/*.c".
	// Exact entries take precedence; patterns are tried in insertion order.
	FileConditionTable struct {
		exact    map[string]formula.Node
		patterns []patternCondition
	}

	patternCondition struct {
		pattern   string
		condition formula.Node
	}
)

var (
	_ json.Marshaler   = (*FileConditionTable)(nil)
	_ json.Unmarshaler = (*FileConditionTable)(nil)
)

// Name of the Starlark function declaring one table entry:
//
//	file_condition(path = "drivers/net/*.c", condition = "&(NET !(EMBEDDED))")
const starlarkFunctionName = "file_condition"

func NewFileConditionTable() *FileConditionTable {
	return &FileConditionTable{exact: make(map[string]formula.Node)}
}

func isPattern(key string) bool {
	return strings.ContainsAny(key, "*?[{")
}

// Set adds or replaces the entry for a path or pattern.
func (t *FileConditionTable) Set(key string, condition formula.Node) error {
	if condition == nil {
		return fmt.Errorf("missing condition for %q", key)
	}
	if !isPattern(key) {
		t.exact[path.Clean(key)] = condition
		return nil
	}
	if !doublestar.ValidatePattern(key) {
		return fmt.Errorf("invalid file pattern %q", key)
	}
	for i, entry := range t.patterns {
		if entry.pattern == key {
			t.patterns[i].condition = condition
			return nil
		}
	}
	t.patterns = append(t.patterns, patternCondition{pattern: key, condition: condition})
	return nil
}

// Lookup returns the condition of the original file, or false if the table
// has no entry covering it.
func (t *FileConditionTable) Lookup(file string) (formula.Node, bool) {
	if t == nil {
		return nil, false
	}
	file = path.Clean(filepath.ToSlash(file))
	if condition, ok := t.exact[file]; ok {
		return condition, true
	}
	for _, entry := range t.patterns {
		if doublestar.MatchUnvalidated(entry.pattern, file) {
			return entry.condition, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (t *FileConditionTable) Len() int {
	return len(t.exact) + len(t.patterns)
}

func (t *FileConditionTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, condition formula.Node) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		encodedKey, err := jsonfile.Marshal(key)
		if err != nil {
			return err
		}
		encodedCondition, err := jsonfile.Marshal(formula.Text{Node: condition})
		if err != nil {
			return err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(encodedCondition)
		return nil
	}
	for file, condition := range collections.SortedEntries(t.exact) {
		if err := write(file, condition); err != nil {
			return nil, err
		}
	}
	for _, entry := range t.patterns {
		if err := write(entry.pattern, entry.condition); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of path or pattern keys to formulas in the
// textual grammar. The order of pattern keys is preserved.
func (t *FileConditionTable) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if token, err := dec.Token(); err != nil {
		return err
	} else if token != json.Delim('{') {
		return fmt.Errorf("expected a JSON object of file conditions, found %v", token)
	}

	table := NewFileConditionTable()
	for dec.More() {
		token, err := dec.Token()
		if err != nil {
			return err
		}
		key := token.(string)
		var condition formula.Text
		if err := dec.Decode(&condition); err != nil {
			return fmt.Errorf("condition of %q: %w", key, err)
		}
		if err := table.Set(key, condition.Node); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*t = *table
	return nil
}

// ParseStarlark reads a table from a Starlark file of file_condition calls.
func ParseStarlark(filename string, content []byte) (*FileConditionTable, error) {
	file, err := build.ParseDefault(filename, content)
	if err != nil {
		return nil, err
	}

	table := NewFileConditionTable()
	for _, stmt := range file.Stmt {
		call, ok := stmt.(*build.CallExpr)
		if !ok {
			continue
		}
		receiver, ok := call.X.(*build.Ident)
		if !ok || receiver.Name != starlarkFunctionName {
			continue
		}

		start, _ := call.Span()
		var key, conditionText string
		for idx, arg := range call.List {
			switch arg := arg.(type) {
			case *build.StringExpr:
				switch idx {
				case 0:
					key = arg.Value
				case 1:
					conditionText = arg.Value
				}
			case *build.AssignExpr:
				param, ok := arg.LHS.(*build.Ident)
				if !ok {
					continue
				}
				rhs, ok := arg.RHS.(*build.StringExpr)
				if !ok {
					return nil, fmt.Errorf("%s:%d: %s argument must be a string", filename, start.Line, param.Name)
				}
				switch param.Name {
				case "path":
					key = rhs.Value
				case "condition":
					conditionText = rhs.Value
				}
			}
		}
		if key == "" || conditionText == "" {
			return nil, fmt.Errorf("%s:%d: %s requires path and condition", filename, start.Line, starlarkFunctionName)
		}
		condition, err := formula.Parse(conditionText)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, start.Line, err)
		}
		if err := table.Set(key, condition); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, start.Line, err)
		}
	}
	return table, nil
}

// ReadFileConditionTable loads a table from a .json file or, for any other
// extension, from a Starlark file.
func ReadFileConditionTable(filename string) (*FileConditionTable, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(filename) != ".json" {
		return ParseStarlark(filepath.Base(filename), content)
	}
	table := NewFileConditionTable()
	if err := json.Unmarshal(content, table); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return table, nil
}

// Summary lists the entries, exact paths first.
func (t *FileConditionTable) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "File conditions (%d exact, %d patterns):\n", len(t.exact), len(t.patterns))
	for _, file := range collections.SortedKeys(t.exact) {
		fmt.Fprintf(&sb, "  %-60q %v\n", file, t.exact[file])
	}
	for _, entry := range t.patterns {
		fmt.Fprintf(&sb, "  %-60q %v\n", entry.pattern, entry.condition)
	}
	return sb.String()
}

// UniformFileConditions returns a table giving every file the same
// condition.
func UniformFileConditions(condition formula.Node) *FileConditionTable {
	table := NewFileConditionTable()
	table.patterns = append(table.patterns, patternCondition{pattern: "**", condition: condition})
	return table
}
