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

package lexer

import (
	"fmt"
	"unicode/utf8"
)

// Cursor is a 1-based position in a source file. A directive never spans
// lines, so only the column moves while lexing.
type Cursor struct {
	Line, Column int
}

var (
	// CursorInit is the start of a standalone expression.
	CursorInit = LineStart(1)
	// CursorEOF marks the end of the input.
	CursorEOF = Cursor{}
)

// LineStart returns the cursor at the first column of the given line.
func LineStart(line int) Cursor {
	return Cursor{Line: line, Column: 1}
}

func (c Cursor) String() string {
	if c == CursorEOF {
		return "EOF"
	}
	return fmt.Sprintf("%d:%d", c.Line, c.Column)
}

// Skip returns the cursor right after text, which must start at c and
// contain no line break.
func (c Cursor) Skip(text string) Cursor {
	c.Column += utf8.RuneCountInString(text)
	return c
}
