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

// Package parser turns directive lines recognized by the lexer into
// Directive values. Conditions are parsed with a small Pratt parser that
// understands feature names, !, && (binding tighter) and ||, parentheses, and
// the single-character spellings & and |. A chain of the same operator yields
// a single n-ary formula: "a && b && c" becomes &(a b c).
package parser

import (
	"strings"

	"github.com/EngFlow/variant_analysis/internal/collections"
	"github.com/EngFlow/variant_analysis/internal/directive/lexer"
	"github.com/EngFlow/variant_analysis/internal/formula"
)

type (
	parseRule struct {
		precedence   precedence
		prefixParser prefixParseFn
		infixParser  infixParserFn
	}
	prefixParseFn func(p *parser, token lexer.Token) (formula.Node, error)
	infixParserFn func(p *parser, token lexer.Token, left formula.Node) (formula.Node, error)
	precedence    int
)

const (
	precedenceLowest precedence = iota
	precedenceOr                // || |
	precedenceAnd               // && &
	precedenceBang              // ! (prefix)
	precedenceParens            // (
)

// exprKeywordsPrecedence maps operator tokens to their precedence and parser functions.
// This is initialized in init() to avoid cyclic reference errors at package init time.
var exprKeywordsPrecedence map[string]parseRule

func init() {
	exprKeywordsPrecedence = map[string]parseRule{
		"!":  {precedence: precedenceBang, prefixParser: parseUnaryBangOperator},
		"(":  {precedence: precedenceParens, prefixParser: parseUnaryOpenParenthesis},
		"||": {precedence: precedenceOr, infixParser: parseLogicChain(precedenceOr, newOr)},
		"|":  {precedence: precedenceOr, infixParser: parseLogicChain(precedenceOr, newOr)},
		"&&": {precedence: precedenceAnd, infixParser: parseLogicChain(precedenceAnd, newAnd)},
		"&":  {precedence: precedenceAnd, infixParser: parseLogicChain(precedenceAnd, newAnd)},
		"==": {precedence: precedenceParens, infixParser: parseUnsupportedOperator},
		"!=": {precedence: precedenceParens, infixParser: parseUnsupportedOperator},
	}
}

// ParseLine parses a single source line. The boolean result is false when
// the line is not a directive line at all; lineNumber is used for error
// locations only.
func ParseLine(line string, lineNumber int) (Directive, bool, error) {
	if !lexer.IsDirectiveLine(line) {
		return Directive{}, false, nil
	}
	tokens := collections.FilterSlice(
		lexer.NewLexer(line, lexer.LineStart(lineNumber)).Tokenize(),
		func(token lexer.Token) bool { return token.Type != lexer.TokenType_Whitespace },
	)
	p := parser{tokensLeft: tokens}
	directive, err := p.parseDirective()
	return directive, true, err
}

// ParseExpr parses a condition expression such as "a && !(b || c)".
func ParseExpr(expr string) (formula.Node, error) {
	tokens := collections.FilterSlice(
		lexer.NewLexer(expr, lexer.CursorInit).Tokenize(),
		func(token lexer.Token) bool { return token.Type != lexer.TokenType_Whitespace },
	)
	p := parser{tokensLeft: tokens}
	node, err := p.parseExprPrecedence(precedenceLowest)
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return node, nil
}

type parser struct {
	tokensLeft []lexer.Token // Tokens yet to be processed
}

// Drop n tokens from the front of the input stream (or all if number of tokens < n).
func (p *parser) drop(n int) {
	p.tokensLeft = p.tokensLeft[min(n, len(p.tokensLeft)):]
}

// Return the next token without consuming it, or TokenEOF if no tokens are left.
func (p *parser) peek() lexer.Token {
	if len(p.tokensLeft) == 0 {
		return lexer.TokenEOF
	}
	return p.tokensLeft[0]
}

// Return the next token and consume it, or TokenEOF if no tokens are left.
func (p *parser) next() lexer.Token {
	token := p.peek()
	p.drop(1)
	return token
}

// Check if the next token matches the expected content, returning error otherwise.
func (p *parser) expectNext(expected string, context lexer.Token) error {
	token := p.next()
	if token.Type == lexer.TokenType_EOF {
		return errorAt(context.Location, "expected %q but reached end of line", expected)
	}
	if token.Content != expected {
		return errorAt(token.Location, "expected %q but found %q", expected, token.Content)
	}
	return nil
}

func (p *parser) expectEnd() error {
	if token := p.peek(); token.Type != lexer.TokenType_EOF {
		return errorAt(token.Location, "unexpected %q after expression", token.Content)
	}
	return nil
}

func (p *parser) parseDirective() (Directive, error) {
	marker := p.next()
	if marker.Type != lexer.TokenType_Directive {
		return Directive{}, errorAt(marker.Location, "expected directive but found %v", marker.Type)
	}
	keyword := strings.TrimSpace(strings.TrimPrefix(marker.Content, lexer.DirectivePrefix))
	kind, known := directiveKeywords[keyword]
	if !known {
		if keyword == "" {
			return Directive{}, errorAt(marker.Location, "missing directive name")
		}
		return Directive{}, errorAt(marker.Location, "unsupported directive #%s", keyword)
	}

	directive := Directive{Kind: kind, Location: marker.Location}
	switch kind {
	case DirectiveCondition, DirectiveIf, DirectiveElif:
		if p.peek().Type == lexer.TokenType_EOF {
			return Directive{}, errorAt(marker.Location, "missing condition after %v", kind)
		}
		condition, err := p.parseExprPrecedence(precedenceLowest)
		if err != nil {
			return Directive{}, err
		}
		if err := p.expectEnd(); err != nil {
			return Directive{}, err
		}
		directive.Condition = condition
	case DirectiveIfdef, DirectiveIfndef, DirectiveElifdef, DirectiveElifndef:
		name := p.next()
		if name.Type != lexer.TokenType_Identifier {
			return Directive{}, errorAt(marker.Location, "%v expects a feature name", kind)
		}
		if err := p.expectEnd(); err != nil {
			return Directive{}, err
		}
		literal := formula.Var(name.Content)
		if kind == DirectiveIfndef || kind == DirectiveElifndef {
			directive.Condition = formula.NewNot(literal)
		} else {
			directive.Condition = literal
		}
	}
	// Anything after #else and #endif is treated as a comment.
	return directive, nil
}

// getPrefixParseFn returns a prefix parser for a token, or the feature name parser.
func getPrefixParseFn(token lexer.Token) prefixParseFn {
	if rule, exists := exprKeywordsPrecedence[token.Content]; exists && rule.prefixParser != nil {
		return rule.prefixParser
	}
	return parseFeatureName
}

// parseExprPrecedence implements Pratt parsing for conditions.
// minPrecedence controls operator binding (precedence climbing).
func (p *parser) parseExprPrecedence(minPrecedence precedence) (formula.Node, error) {
	token := p.next()
	if token.Type == lexer.TokenType_EOF {
		return nil, errorAt(token.Location, "unexpected end of line in condition")
	}

	result, err := getPrefixParseFn(token)(p, token)
	if err != nil {
		return nil, err
	}

	for {
		token := p.peek()
		if token.Type == lexer.TokenType_EOF {
			return result, nil
		}

		rule, exists := exprKeywordsPrecedence[token.Content]
		if !exists || rule.infixParser == nil || rule.precedence < minPrecedence {
			return result, nil // current operator binds less – stop and return
		}
		p.next()
		result, err = rule.infixParser(p, token, result)
		if err != nil {
			return nil, err
		}
	}
}

// parseLogicChain collects all operands joined by operators of the same
// precedence into a single And or Or node.
func parseLogicChain(level precedence, build func(operands []formula.Node) formula.Node) infixParserFn {
	return func(p *parser, _ lexer.Token, lhs formula.Node) (formula.Node, error) {
		operands := []formula.Node{lhs}
		for {
			rhs, err := p.parseExprPrecedence(level + 1)
			if err != nil {
				return nil, err
			}
			operands = append(operands, rhs)

			rule, exists := exprKeywordsPrecedence[p.peek().Content]
			if !exists || rule.infixParser == nil || rule.precedence != level {
				break
			}
			p.next()
		}
		return build(operands), nil
	}
}

func newOr(operands []formula.Node) formula.Node  { return formula.NewOr(operands...) }
func newAnd(operands []formula.Node) formula.Node { return formula.NewAnd(operands...) }

func parseUnsupportedOperator(_ *parser, token lexer.Token, _ formula.Node) (formula.Node, error) {
	return nil, errorAt(token.Location, "unsupported operator %q", token.Content)
}

func parseUnaryBangOperator(p *parser, _ lexer.Token) (formula.Node, error) {
	inner, err := p.parseExprPrecedence(precedenceBang)
	if err != nil {
		return nil, err
	}
	return formula.NewNot(inner), nil
}

func parseUnaryOpenParenthesis(p *parser, token lexer.Token) (formula.Node, error) {
	expr, err := p.parseExprPrecedence(precedenceLowest)
	if err != nil {
		return nil, err
	}
	if err := p.expectNext(")", token); err != nil {
		return nil, err
	}
	return expr, nil
}

func parseFeatureName(_ *parser, token lexer.Token) (formula.Node, error) {
	switch {
	case token.Type == lexer.TokenType_Identifier:
		return formula.Var(token.Content), nil
	case token.Content == "==" || token.Content == "!=":
		return nil, errorAt(token.Location, "unsupported operator %q", token.Content)
	default:
		return nil, errorAt(token.Location, "unexpected %q in condition", token.Content)
	}
}
