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
	"cmp"

	"github.com/EngFlow/variant_analysis/internal/collections"
)

// Eval evaluates n under the given feature assignment. Features missing from
// the assignment are treated as disabled.
func Eval(n Node, assignment map[string]bool) bool {
	switch n := n.(type) {
	case Literal:
		return assignment[n.Name] == n.Positive
	case And:
		for _, child := range n.Children {
			if !Eval(child, assignment) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range n.Children {
			if Eval(child, assignment) {
				return true
			}
		}
		return false
	case Not:
		return !Eval(n.child, assignment)
	}
	return false
}

// Features returns the distinct feature names referenced by n, sorted.
func Features(n Node) []string {
	names := make(collections.Set[string])
	collectFeatures(n, names)
	return names.SortedValues(cmp.Compare[string])
}

func collectFeatures(n Node, into collections.Set[string]) {
	switch n := n.(type) {
	case Literal:
		into.Add(n.Name)
	case And:
		for _, child := range n.Children {
			collectFeatures(child, into)
		}
	case Or:
		for _, child := range n.Children {
			collectFeatures(child, into)
		}
	case Not:
		collectFeatures(n.child, into)
	}
}
