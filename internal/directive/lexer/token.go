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

type TokenType int

const (
	// Special token type indicating the end of the input (or default value
	// when an error is returned).
	TokenType_EOF TokenType = iota

	// Every run of characters that no other rule matches. The parser reports
	// these as unexpected input.
	TokenType_Word

	// One or more whitespace characters.
	TokenType_Whitespace

	// Directive marker "//#" followed by the directive name, with optional
	// whitespace between, e.g. "//#ifdef" or "//# endif".
	TokenType_Directive

	// Feature name: letters, digits and underscores.
	TokenType_Identifier

	// Operators and parentheses of condition expressions: && & || | ! ( ).
	// The comparison operators == and != are recognized only so that they can
	// be rejected with a precise message.
	TokenType_Symbol
)

func (t TokenType) String() string {
	switch t {
	case TokenType_EOF:
		return "end of line"
	case TokenType_Word:
		return "word"
	case TokenType_Whitespace:
		return "whitespace"
	case TokenType_Directive:
		return "directive"
	case TokenType_Identifier:
		return "identifier"
	case TokenType_Symbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// Token is a single lexical unit of a directive line.
type Token struct {
	Type     TokenType
	Location Cursor
	Content  string
}

// Special token returned when no input data is left to process.
var TokenEOF = Token{Type: TokenType_EOF, Location: CursorEOF}
