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

package collections

import (
	"iter"
	"maps"
	"slices"
)

type (
	// Set is a generic unordered set for comparable types.
	Set[T comparable] map[T]struct{}

	// OrderedSet keeps distinct elements in first-insertion order. The zero
	// value is ready to use. It is not safe for concurrent use.
	OrderedSet[T comparable] struct {
		index map[T]int
		items []T
	}
)

// SetOf creates a new Set containing the given elements.
func SetOf[T comparable](elems ...T) Set[T] {
	return make(Set[T], len(elems)).AddSlice(elems)
}

// Add inserts an element into the Set and returns the Set.
func (s Set[T]) Add(elem T) Set[T] {
	s[elem] = struct{}{}
	return s
}

// AddSlice inserts all elements of the slice and returns the Set.
func (s Set[T]) AddSlice(elems []T) Set[T] {
	for _, elem := range elems {
		s.Add(elem)
	}
	return s
}

// Contains checks whether an element exists in the Set.
func (s Set[T]) Contains(elem T) bool {
	_, exists := s[elem]
	return exists
}

// All returns a sequence of all elements in unspecified order.
func (s Set[T]) All() iter.Seq[T] {
	return maps.Keys(s)
}

// SortedValues returns the elements sorted with `cmp`.
func (s Set[T]) SortedValues(cmp func(l, r T) int) []T {
	return slices.SortedFunc(s.All(), cmp)
}

// Add inserts elem unless already present and reports whether it was new.
func (s *OrderedSet[T]) Add(elem T) bool {
	if s.index == nil {
		s.index = make(map[T]int)
	}
	if _, exists := s.index[elem]; exists {
		return false
	}
	s.index[elem] = len(s.items)
	s.items = append(s.items, elem)
	return true
}

// Contains checks whether an element exists in the OrderedSet.
func (s *OrderedSet[T]) Contains(elem T) bool {
	_, exists := s.index[elem]
	return exists
}

// Len returns the number of distinct elements.
func (s *OrderedSet[T]) Len() int {
	return len(s.items)
}

// Values returns a copy of the elements in insertion order.
func (s *OrderedSet[T]) Values() []T {
	return slices.Clone(s.items)
}
