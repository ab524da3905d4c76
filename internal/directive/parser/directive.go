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

package parser

import (
	"fmt"

	"github.com/EngFlow/variant_analysis/internal/directive/lexer"
	"github.com/EngFlow/variant_analysis/internal/formula"
)

type DirectiveKind int

const (
	// //#condition <expr>, the base condition of the whole file.
	DirectiveCondition DirectiveKind = iota
	// //#if <expr>
	DirectiveIf
	// //#ifdef <name>
	DirectiveIfdef
	// //#ifndef <name>
	DirectiveIfndef
	// //#elif <expr>
	DirectiveElif
	// //#elifdef <name>
	DirectiveElifdef
	// //#elifndef <name>
	DirectiveElifndef
	// //#else
	DirectiveElse
	// //#endif
	DirectiveEndif
)

var directiveKeywords = map[string]DirectiveKind{
	"condition": DirectiveCondition,
	"if":        DirectiveIf,
	"ifdef":     DirectiveIfdef,
	"ifndef":    DirectiveIfndef,
	"elif":      DirectiveElif,
	"elifdef":   DirectiveElifdef,
	"elifndef":  DirectiveElifndef,
	"else":      DirectiveElse,
	"endif":     DirectiveEndif,
}

func (k DirectiveKind) String() string {
	for keyword, kind := range directiveKeywords {
		if kind == k {
			return "#" + keyword
		}
	}
	return fmt.Sprintf("DirectiveKind(%d)", int(k))
}

// OpensBlock reports whether the directive starts a new conditional block.
func (k DirectiveKind) OpensBlock() bool {
	return k == DirectiveIf || k == DirectiveIfdef || k == DirectiveIfndef
}

// ContinuesBlock reports whether the directive starts another branch of the
// innermost open block.
func (k DirectiveKind) ContinuesBlock() bool {
	return k == DirectiveElif || k == DirectiveElifdef || k == DirectiveElifndef || k == DirectiveElse
}

type (
	// Directive is a parsed directive line.
	Directive struct {
		Kind DirectiveKind
		// Condition introduced by the directive, nil for #else and #endif.
		// #ifdef X yields the literal X and #ifndef X its negation.
		Condition formula.Node
		// Location of the directive marker.
		Location lexer.Cursor
	}

	// Error reports a malformed or unsupported directive line.
	Error struct {
		Location lexer.Cursor
		Msg      string
	}
)

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Location, e.Msg)
}

func errorAt(location lexer.Cursor, format string, args ...any) *Error {
	return &Error{Location: location, Msg: fmt.Sprintf(format, args...)}
}
