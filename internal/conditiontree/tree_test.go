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

package conditiontree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EngFlow/variant_analysis/internal/formula"
)

func lineConditions(t *testing.T, source string) []string {
	t.Helper()
	tree, err := Read(strings.NewReader(source))
	require.NoError(t, err)
	var result []string
	for line := 1; line <= tree.LineCount(); line++ {
		condition, err := tree.ConditionOfLine(line)
		require.NoError(t, err)
		result = append(result, condition.String())
	}
	return result
}

func TestConditionOfLine(t *testing.T) {
	testCases := []struct {
		name     string
		source   string
		expected []string
	}{
		{
			name:     "no directives",
			source:   "a\nb\n",
			expected: []string{"&()", "&()"},
		},
		{
			name: "simple if",
			source: `int a;
//#if foo
int b;
//#endif
int c;
`,
			expected: []string{"&()", "&()", "&(&() &(foo))", "&()", "&()"},
		},
		{
			name: "nested if",
			source: `int a;
//#if foo
//#if bar
int b;
//#endif
//#endif
`,
			expected: []string{
				"&()",
				"&()",
				"&(&() &(foo))",
				"&(&() &(&(foo) &(bar)))",
				"&(&() &(foo))",
				"&()",
			},
		},
		{
			name: "if elif else",
			source: `//#if foo
a();
//#elif bar
b();
//#else
c();
//#endif
`,
			expected: []string{
				"&()",
				"&(&() &(foo))",
				"&()",
				"&(&() &(!(foo) bar))",
				"&()",
				"&(&() &(!(foo) !(bar)))",
				"&()",
			},
		},
		{
			name: "file condition",
			source: `//#condition base
int a;
//#if baz
int b;
//#endif
`,
			expected: []string{"base", "base", "base", "&(base &(baz))", "base"},
		},
		{
			name: "ifdef and ifndef",
			source: `//#ifndef X
one();
//#elifdef Y
two();
//#else
three();
//#endif
`,
			expected: []string{
				"&()",
				"&(&() &(!(X)))",
				"&()",
				"&(&() &(X Y))",
				"&()",
				"&(&() &(X !(Y)))",
				"&()",
			},
		},
		{
			name: "complex expression negated by later branch",
			source: `//#if a && b || c
x();
//#else
y();
//#endif
`,
			expected: []string{
				"&()",
				"&(&() &(|(&(a b) c)))",
				"&()",
				"&(&() &(!(|(&(a b) c))))",
				"&()",
			},
		},
		{
			name: "empty branches and indentation",
			source: `  //#if a
  //#elif b
    //#ifdef c
    //#endif
  //#endif
`,
			expected: []string{"&()", "&()", "&(&() &(!(a) b))", "&(&() &(!(a) b))", "&()"},
		},
		{
			name:     "commented out lines are not directives",
			source:   "//@ hidden();\n// #if foo\n",
			expected: []string{"&()", "&()"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, lineConditions(t, tc.source))
		})
	}
}

func TestConditionOfLineIsStructural(t *testing.T) {
	tree, err := New([]string{"//#if foo", "x", "//#endif"})
	require.NoError(t, err)
	condition, err := tree.ConditionOfLine(2)
	require.NoError(t, err)
	expected := formula.NewAnd(formula.True(), formula.NewAnd(formula.Var("foo")))
	assert.True(t, formula.Equal(expected, condition))
}

func TestConditionOfLineOutOfRange(t *testing.T) {
	tree, err := New([]string{"a", "b"})
	require.NoError(t, err)

	for _, line := range []int{-1, 0, 3} {
		_, err := tree.ConditionOfLine(line)
		assert.ErrorIs(t, err, ErrLineOutOfRange, "line %d", line)
	}

	empty, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.LineCount())
	_, err = empty.ConditionOfLine(1)
	assert.ErrorIs(t, err, ErrLineOutOfRange)
}

func TestNewErrors(t *testing.T) {
	testCases := []struct {
		name   string
		source string
		line   int
	}{
		{name: "condition not on first line", source: "a\n//#condition x\n", line: 2},
		{name: "unsupported directive", source: "a\n//#define X\n", line: 2},
		{name: "unsupported include", source: "//#include other\n", line: 1},
		{name: "stray endif", source: "a\n//#endif\n", line: 2},
		{name: "stray else", source: "//#else\n", line: 1},
		{name: "stray elif", source: "x\ny\n//#elif a\n", line: 3},
		{name: "unterminated if", source: "//#if a\nb\nc\n", line: 3},
		{name: "unterminated nested if", source: "//#if a\n//#if b\n//#endif\n", line: 3},
		{name: "elif after else", source: "//#if a\n//#else\n//#elif b\n//#endif\n", line: 3},
		{name: "malformed expression", source: "a\n//#if a &&\n//#endif\n", line: 2},
		{name: "unsupported operator", source: "//#if a == b\n//#endif\n", line: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.source))
			var treeErr *Error
			require.ErrorAs(t, err, &treeErr)
			assert.Equal(t, tc.line, treeErr.Line, treeErr.Error())
		})
	}
}

func TestString(t *testing.T) {
	tree, err := New([]string{"//#if a", "x", "//#else", "y", "//#endif"})
	require.NoError(t, err)
	assert.Equal(t, `lines 1-5: &()
  lines 2-2: &(a)
  lines 4-4: &(!(a))
`, tree.String())
}
