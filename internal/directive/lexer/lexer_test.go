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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	testCases := []struct {
		input    string
		expected []Token
	}{
		{
			input: "//#if foo",
			expected: []Token{
				{Type: TokenType_Directive, Location: Cursor{3, 1}, Content: "//#if"},
				{Type: TokenType_Whitespace, Location: Cursor{3, 6}, Content: " "},
				{Type: TokenType_Identifier, Location: Cursor{3, 7}, Content: "foo"},
			},
		},
		{
			input: "\t//# elif !(a||b)&c",
			expected: []Token{
				{Type: TokenType_Whitespace, Location: Cursor{3, 1}, Content: "\t"},
				{Type: TokenType_Directive, Location: Cursor{3, 2}, Content: "//# elif"},
				{Type: TokenType_Whitespace, Location: Cursor{3, 10}, Content: " "},
				{Type: TokenType_Symbol, Location: Cursor{3, 11}, Content: "!"},
				{Type: TokenType_Symbol, Location: Cursor{3, 12}, Content: "("},
				{Type: TokenType_Identifier, Location: Cursor{3, 13}, Content: "a"},
				{Type: TokenType_Symbol, Location: Cursor{3, 14}, Content: "||"},
				{Type: TokenType_Identifier, Location: Cursor{3, 16}, Content: "b"},
				{Type: TokenType_Symbol, Location: Cursor{3, 17}, Content: ")"},
				{Type: TokenType_Symbol, Location: Cursor{3, 18}, Content: "&"},
				{Type: TokenType_Identifier, Location: Cursor{3, 19}, Content: "c"},
			},
		},
		{
			input: "//#if a != b",
			expected: []Token{
				{Type: TokenType_Directive, Location: Cursor{3, 1}, Content: "//#if"},
				{Type: TokenType_Whitespace, Location: Cursor{3, 6}, Content: " "},
				{Type: TokenType_Identifier, Location: Cursor{3, 7}, Content: "a"},
				{Type: TokenType_Whitespace, Location: Cursor{3, 8}, Content: " "},
				{Type: TokenType_Symbol, Location: Cursor{3, 9}, Content: "!="},
				{Type: TokenType_Whitespace, Location: Cursor{3, 11}, Content: " "},
				{Type: TokenType_Identifier, Location: Cursor{3, 12}, Content: "b"},
			},
		},
		{
			input: "//#if $x",
			expected: []Token{
				{Type: TokenType_Directive, Location: Cursor{3, 1}, Content: "//#if"},
				{Type: TokenType_Whitespace, Location: Cursor{3, 6}, Content: " "},
				{Type: TokenType_Word, Location: Cursor{3, 7}, Content: "$"},
				{Type: TokenType_Identifier, Location: Cursor{3, 8}, Content: "x"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NewLexer(tc.input, LineStart(3)).Tokenize())
		})
	}
}

func TestNextTokenAtEnd(t *testing.T) {
	lx := NewLexer("", CursorInit)
	assert.Equal(t, TokenEOF, lx.NextToken())
	assert.Empty(t, lx.Tokenize())
}

func TestIsDirectiveLine(t *testing.T) {
	testCases := []struct {
		line     string
		expected bool
	}{
		{line: "//#if foo", expected: true},
		{line: "   \t//#endif", expected: true},
		{line: "// #if foo", expected: false},
		{line: "//@ int x;", expected: false},
		{line: "int x; //#if foo", expected: false},
		{line: "", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsDirectiveLine(tc.line))
		})
	}
}

func TestCursorSkip(t *testing.T) {
	assert.Equal(t, Cursor{1, 4}, CursorInit.Skip("abc"))
	assert.Equal(t, Cursor{7, 3}, LineStart(7).Skip("äb"))
	assert.Equal(t, "EOF", CursorEOF.String())
	assert.Equal(t, "2:5", Cursor{2, 5}.String())
}
