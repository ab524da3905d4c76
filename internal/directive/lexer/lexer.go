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

// Package lexer breaks preprocessor directive lines of the form
//
//	//#if FEATURE_A && !(FEATURE_B || FEATURE_C)
//
// into tokens with their 1-based source locations, so that the parser can
// report errors at the exact column.
package lexer

import (
	"regexp"
	"strings"
)

type (
	// Abstraction over regexp.Regexp allows providing an alternative implementation.
	matcher interface {
		// Return a two-element slice of integers defining the location of the leftmost match in content of this
		// matcher. The match itself is at content[indices[0]:indices[1]]. A return value of nil indicates no match.
		FindIndex(content []byte) (indices []int)
	}

	// Represents a way of matching a specific token type.
	matchingRule struct {
		matchedType  TokenType
		matchingImpl matcher
	}

	// Lexer breaks a directive line into a sequence of tokens.
	Lexer struct {
		dataLeft []byte
		cursor   Cursor
	}
)

// DirectivePrefix starts every directive line after optional indentation.
const DirectivePrefix = "//#"

// Matching logic for all token types apart from:
// - TokenType_Word which is the default fallback type when no other matchingRule apply.
// - TokenType_EOF which is returned when no input data is left to process.
var matchingRules = []matchingRule{
	{matchedType: TokenType_Directive, matchingImpl: regexp.MustCompile(`//#[\t\v\f\r ]*\w*`)},
	{matchedType: TokenType_Whitespace, matchingImpl: regexp.MustCompile(`[\t\v\f\r\n ]+`)},
	{matchedType: TokenType_Identifier, matchingImpl: regexp.MustCompile(`\w+`)},
	{matchedType: TokenType_Symbol, matchingImpl: regexp.MustCompile(`==|!=|&&?|\|\|?|[!()]`)},
}

// IsDirectiveLine reports whether line is a directive line, i.e. starts with
// DirectivePrefix after optional whitespace.
func IsDirectiveLine(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, "\t\v\f\r "), DirectivePrefix)
}

// NewLexer creates a lexer for the given input whose first character is at
// position start.
func NewLexer(input string, start Cursor) *Lexer {
	return &Lexer{dataLeft: []byte(input), cursor: start}
}

// Update the lexer state accordingly to the extracted token content.
func (lx *Lexer) consume(content string) {
	lx.dataLeft = lx.dataLeft[len(content):]
	lx.cursor = lx.cursor.Skip(content)
}

// Return the next token extracted from the beginning of the input data left to process. If no more tokens are left,
// returns TokenEOF.
func (lx *Lexer) NextToken() Token {
	if len(lx.dataLeft) == 0 {
		return TokenEOF
	}

	// Try each matchingRule looking for the earliest match.
	tokenBegin := len(lx.dataLeft)
	tokenEnd := len(lx.dataLeft)
	tokenType := TokenType_Word
	for _, rule := range matchingRules {
		match := rule.matchingImpl.FindIndex(lx.dataLeft)
		if match != nil && match[1] > match[0] && (match[0] < tokenBegin || (match[0] == tokenBegin && match[1] > tokenEnd)) {
			tokenBegin = match[0]
			tokenEnd = match[1]
			tokenType = rule.matchedType
		}
	}

	var result Token
	if tokenBegin == 0 {
		result = Token{Type: tokenType, Location: lx.cursor, Content: string(lx.dataLeft[tokenBegin:tokenEnd])}
	} else {
		// Nothing matched at the beginning, so everything up to the next match is an unrecognized word.
		result = Token{Type: TokenType_Word, Location: lx.cursor, Content: string(lx.dataLeft[:tokenBegin])}
	}

	lx.consume(result.Content)
	return result
}

// Return all tokens extracted from the input data.
func (lx *Lexer) Tokenize() []Token {
	var tokens []Token
	for len(lx.dataLeft) > 0 {
		tokens = append(tokens, lx.NextToken())
	}
	return tokens
}
