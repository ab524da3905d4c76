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

// Package conditiontree interprets the //# conditional-compilation
// directives of a single source file and answers which presence condition
// guards each of its lines.
//
// The file is modeled as nested blocks. The root block spans the whole file
// and carries the base condition from an optional "//#condition" on line 1
// (true otherwise). Every branch of an #if/#elif/#else chain is a child block
// spanning the lines between its directive and the next one. The condition of
// a line is the condition of the innermost block containing it, conjoined
// with the conditions of all enclosing blocks:
//
//	AND(base, AND(outer branch, AND(inner branch)))
//
// Directive lines themselves belong to the enclosing block.
package conditiontree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/EngFlow/variant_analysis/internal/directive/parser"
	"github.com/EngFlow/variant_analysis/internal/formula"
)

var ErrLineOutOfRange = errors.New("line number out of range")

type (
	// Tree holds the block structure of one file. It is immutable and safe
	// for concurrent use once built.
	Tree struct {
		root *block
	}

	block struct {
		firstLine int // 1-based
		length    int
		condition formula.Node
		children  []*block
	}

	// Error reports a directive that prevents building the tree. Column is 0
	// when the problem is not tied to a position within the line.
	Error struct {
		Line   int
		Column int
		Msg    string
	}
)

func (e *Error) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// New builds the tree for the given file lines.
func New(lines []string) (*Tree, error) {
	b := builder{lines: lines}
	children, _, err := b.parseBody(true)
	if err != nil {
		return nil, err
	}
	return &Tree{root: &block{firstLine: 1, length: len(lines), condition: b.base, children: children}}, nil
}

// Read splits r into lines and builds the tree.
func Read(r io.Reader) (*Tree, error) {
	lines, err := ReadLines(r)
	if err != nil {
		return nil, err
	}
	return New(lines)
}

// ReadLines splits r into lines, dropping line terminators.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// LineCount returns the number of lines of the file.
func (t *Tree) LineCount() int {
	return t.root.length
}

// ConditionOfLine returns the presence condition of the 1-based line n. The
// result is not simplified.
func (t *Tree) ConditionOfLine(n int) (formula.Node, error) {
	if n < 1 || n > t.root.length {
		return nil, fmt.Errorf("line %d of %d: %w", n, t.root.length, ErrLineOutOfRange)
	}
	return t.root.conditionOf(n), nil
}

// String renders the block structure, one block per line.
func (t *Tree) String() string {
	var sb strings.Builder
	t.root.writeTo(&sb, 0)
	return sb.String()
}

func (blk *block) contains(line int) bool {
	return line >= blk.firstLine && line < blk.firstLine+blk.length
}

func (blk *block) conditionOf(line int) formula.Node {
	for _, child := range blk.children {
		if child.contains(line) {
			return formula.NewAnd(blk.condition, child.conditionOf(line))
		}
	}
	return blk.condition
}

func (blk *block) writeTo(sb *strings.Builder, depth int) {
	fmt.Fprintf(sb, "%slines %d-%d: %v\n", strings.Repeat("  ", depth), blk.firstLine, blk.firstLine+blk.length-1, blk.condition)
	for _, child := range blk.children {
		child.writeTo(sb, depth+1)
	}
}

type builder struct {
	lines []string
	pos   int // 0-based index of the next line to read
	base  formula.Node
}

// parseBody reads lines until a directive continuing or closing the current
// block, which is returned without being consumed.
func (b *builder) parseBody(topLevel bool) ([]*block, *parser.Directive, error) {
	var children []*block
	for ; b.pos < len(b.lines); b.pos++ {
		lineNumber := b.pos + 1
		directive, ok, err := parser.ParseLine(b.lines[b.pos], lineNumber)
		if err != nil {
			return nil, nil, directiveError(lineNumber, err)
		}
		if !ok {
			continue
		}

		switch {
		case directive.Kind == parser.DirectiveCondition:
			if lineNumber != 1 {
				return nil, nil, &Error{Line: lineNumber, Column: directive.Location.Column, Msg: "#condition is only allowed in line 1"}
			}
			b.base = directive.Condition
		case directive.Kind.OpensBlock():
			b.pos++
			branches, err := b.parseConditional(directive, lineNumber)
			if err != nil {
				return nil, nil, err
			}
			children = append(children, branches...)
			// parseConditional leaves pos on the #endif line, which the loop skips.
		default:
			if topLevel {
				return nil, nil, &Error{Line: lineNumber, Column: directive.Location.Column, Msg: fmt.Sprintf("unexpected %v without matching #if", directive.Kind)}
			}
			return children, &directive, nil
		}
	}

	if b.base == nil {
		b.base = formula.True()
	}
	return children, nil, nil
}

// parseConditional reads all branches of the conditional opened by open on
// openLine, up to and including the matching #endif.
func (b *builder) parseConditional(open parser.Directive, openLine int) ([]*block, error) {
	var (
		branches []*block
		previous []formula.Node
	)
	current := open
	for {
		var condition formula.Node
		operands := make([]formula.Node, 0, len(previous)+1)
		for _, p := range previous {
			operands = append(operands, formula.NewNot(p))
		}
		if current.Kind == parser.DirectiveElse {
			condition = formula.NewAnd(operands...)
		} else {
			condition = formula.NewAnd(append(operands, current.Condition)...)
			previous = append(previous, current.Condition)
		}

		bodyStart := b.pos
		children, next, err := b.parseBody(false)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, &Error{Line: len(b.lines), Msg: fmt.Sprintf("unexpected end of file, %v in line %d is never closed", open.Kind, openLine)}
		}
		branches = append(branches, &block{firstLine: bodyStart + 1, length: b.pos - bodyStart, condition: condition, children: children})

		if next.Kind == parser.DirectiveEndif {
			return branches, nil
		}
		if current.Kind == parser.DirectiveElse {
			return nil, &Error{Line: b.pos + 1, Column: next.Location.Column, Msg: fmt.Sprintf("unexpected %v after #else", next.Kind)}
		}
		current = *next
		b.pos++
	}
}

func directiveError(lineNumber int, err error) error {
	var parseErr *parser.Error
	if errors.As(err, &parseErr) {
		return &Error{Line: lineNumber, Column: parseErr.Location.Column, Msg: parseErr.Msg}
	}
	return &Error{Line: lineNumber, Msg: err.Error()}
}
