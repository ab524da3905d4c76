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

// Package formula implements the propositional formulas used as presence
// conditions, together with their textual grammar:
//
//	formula  := operator | literal
//	operator := ('&' | '|' | '!') '(' formula* ')'
//	literal  := quoted-string | [A-Za-z0-9_-]+
//
// Children are separated by whitespace. An empty conjunction is a tautology
// and an empty disjunction is a contradiction. Formulas are never simplified:
// the structure a caller builds is the structure that is printed and
// compared.
package formula

import (
	"regexp"
	"slices"
	"strings"
)

type (
	// Node is one of Literal, And, Or or Not.
	Node interface {
		// String serializes the formula in the textual grammar.
		String() string
		writeTo(sb *strings.Builder)
	}

	// Literal is a feature name, positive or negated.
	Literal struct {
		Name     string
		Positive bool
	}

	// And is a conjunction. No children means true.
	And struct {
		Children []Node
	}

	// Or is a disjunction. No children means false.
	Or struct {
		Children []Node
	}

	// Not is the negation of a non-literal formula. Negations of literals are
	// always represented as negative Literal values, so NewNot is the only way
	// to build a Not.
	Not struct {
		child Node
	}
)

var bareLiteralPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Var returns the positive literal for the named feature.
func Var(name string) Literal {
	return Literal{Name: name, Positive: true}
}

// NewAnd creates a conjunction of the given children in order.
func NewAnd(children ...Node) And {
	return And{Children: slices.Clone(children)}
}

// NewOr creates a disjunction of the given children in order.
func NewOr(children ...Node) Or {
	return Or{Children: slices.Clone(children)}
}

// NewNot negates child. A literal is negated by flipping its polarity, so
// NewNot(NewNot(l)) == l for any literal l.
func NewNot(child Node) Node {
	if lit, ok := child.(Literal); ok {
		return Literal{Name: lit.Name, Positive: !lit.Positive}
	}
	return Not{child: child}
}

// Child returns the negated formula.
func (n Not) Child() Node {
	return n.child
}

// True returns the empty conjunction.
func True() Node { return And{} }

// False returns the empty disjunction.
func False() Node { return Or{} }

// Equal reports whether a and b are structurally identical. The order of
// children is significant.
func Equal(a, b Node) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case Literal:
		b, ok := b.(Literal)
		return ok && a == b
	case And:
		b, ok := b.(And)
		return ok && slices.EqualFunc(a.Children, b.Children, Equal)
	case Or:
		b, ok := b.(Or)
		return ok && slices.EqualFunc(a.Children, b.Children, Equal)
	case Not:
		b, ok := b.(Not)
		return ok && Equal(a.child, b.child)
	}
	return false
}

// Key returns a string that is equal for two formulas exactly when they are
// structurally equal.
func Key(n Node) string {
	if n == nil {
		return ""
	}
	return n.String()
}

func (l Literal) String() string { return serialize(l) }
func (a And) String() string     { return serialize(a) }
func (o Or) String() string      { return serialize(o) }
func (n Not) String() string     { return serialize(n) }

func serialize(n Node) string {
	var sb strings.Builder
	n.writeTo(&sb)
	return sb.String()
}

func (l Literal) writeTo(sb *strings.Builder) {
	if !l.Positive {
		sb.WriteString("!(")
		writeName(sb, l.Name)
		sb.WriteByte(')')
		return
	}
	writeName(sb, l.Name)
}

func (a And) writeTo(sb *strings.Builder) { writeOperator(sb, '&', a.Children) }
func (o Or) writeTo(sb *strings.Builder)  { writeOperator(sb, '|', o.Children) }
func (n Not) writeTo(sb *strings.Builder) { writeOperator(sb, '!', []Node{n.child}) }

func writeOperator(sb *strings.Builder, op byte, children []Node) {
	sb.WriteByte(op)
	sb.WriteByte('(')
	for i, child := range children {
		if i > 0 {
			sb.WriteByte(' ')
		}
		child.writeTo(sb)
	}
	sb.WriteByte(')')
}

func writeName(sb *strings.Builder, name string) {
	if bareLiteralPattern.MatchString(name) {
		sb.WriteString(name)
		return
	}
	sb.WriteByte('"')
	for _, r := range name {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
}
