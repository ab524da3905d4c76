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

package formula

import (
	"fmt"
	"unicode"
)

// ParseError describes why a formula could not be parsed. Offset is the
// zero-based character offset in the input.
type ParseError struct {
	Msg    string
	Offset int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid formula at offset %d: %s", e.Offset, e.Msg)
}

// Parse reads a formula in the textual grammar. Negations of literals are
// collapsed into negative literals.
func Parse(input string) (Node, error) {
	p := parser{input: []rune(input)}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf(p.pos, "empty input")
	}
	node, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf(p.pos, "unexpected trailing input %q", string(p.input[p.pos:]))
	}
	return node, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(input string) Node {
	node, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return node
}

type parser struct {
	input []rune
	pos   int
}

func (p *parser) eof() bool { return p.pos >= len(p.input) }

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
}

func (p *parser) errorf(offset int, format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Offset: offset}
}

func (p *parser) parseNode() (Node, error) {
	switch c := p.input[p.pos]; {
	case c == '&' || c == '|' || c == '!':
		return p.parseOperator()
	case c == '"':
		return p.parseQuoted()
	case isBareRune(c):
		start := p.pos
		for !p.eof() && isBareRune(p.input[p.pos]) {
			p.pos++
		}
		return Var(string(p.input[start:p.pos])), nil
	default:
		return nil, p.errorf(p.pos, "unexpected character %q", c)
	}
}

func (p *parser) parseOperator() (Node, error) {
	opOffset := p.pos
	op := p.input[p.pos]
	p.pos++
	p.skipSpace()
	if p.eof() || p.input[p.pos] != '(' {
		return nil, p.errorf(p.pos, "expected '(' after operator %q", op)
	}
	openOffset := p.pos
	p.pos++

	var children []Node
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf(openOffset, "unmatched '('")
		}
		if p.input[p.pos] == ')' {
			p.pos++
			break
		}
		child, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	switch op {
	case '&':
		return And{Children: children}, nil
	case '|':
		return Or{Children: children}, nil
	default:
		if len(children) != 1 {
			return nil, p.errorf(opOffset, "operator '!' expects exactly one child, found %d", len(children))
		}
		return NewNot(children[0]), nil
	}
}

func (p *parser) parseQuoted() (Node, error) {
	start := p.pos
	p.pos++
	var name []rune
	for {
		if p.eof() {
			return nil, p.errorf(start, "unterminated quoted literal")
		}
		c := p.input[p.pos]
		p.pos++
		switch c {
		case '"':
			return Var(string(name)), nil
		case '\\':
			if p.eof() {
				return nil, p.errorf(p.pos-1, "dangling escape in quoted literal")
			}
			name = append(name, p.input[p.pos])
			p.pos++
		default:
			name = append(name, c)
		}
	}
}

func isBareRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-'
}
