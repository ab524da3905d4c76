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

// Package collections provides small generic helpers over slices, maps and
// sets shared by the analysis packages.
//
// Set is an unordered membership set. OrderedSet remembers the order in which
// distinct elements were first inserted, which keeps aggregated output stable
// across runs.
package collections

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// MapSlice applies `fn` to each element of `s` and returns the results in
// order.
//
// Example:
//
//	MapSlice([]int{1, 2, 3}, func(x int) string { return fmt.Sprint(x) })
//	=> []string{"1", "2", "3"}
func MapSlice[TSlice ~[]T, T, V any](s TSlice, fn func(T) V) []V {
	result := make([]V, 0, len(s))
	for _, t := range s {
		result = append(result, fn(t))
	}
	return result
}

// FilterSlice returns the elements of `s` for which `predicate` returns true.
//
// Example:
//
//	FilterSlice([]int{1, 2, 3, 4}, func(x int) bool { return x%2 == 0 })
//	=> []int{2, 4}
func FilterSlice[TSlice ~[]T, T any](s TSlice, predicate func(T) bool) TSlice {
	result := make(TSlice, 0, len(s))
	for _, t := range s {
		if predicate(t) {
			result = append(result, t)
		}
	}
	return result
}

// FilterMapSlice applies `fn` to each element of `s` and keeps the values for
// which `fn` reported success.
//
// Example:
//
//	FilterMapSlice(
//		[]int{1, -1, 2},
//		func(x int) (int, bool) {
//			if x < 0 { return 0, false }
//			return x * 2, true
//		}
//	)
//	=> []int{2, 4}
func FilterMapSlice[TSlice ~[]T, T, V any](s TSlice, fn func(T) (V, bool)) []V {
	result := make([]V, 0, len(s))
	for _, t := range s {
		if v, ok := fn(t); ok {
			result = append(result, v)
		}
	}
	return result
}

// SortedKeys returns the keys of `m` in ascending order.
func SortedKeys[M ~map[K]V, K cmp.Ordered, V any](m M) []K {
	return slices.Sorted(maps.Keys(m))
}

// SortedEntries iterates over `m` in ascending key order.
func SortedEntries[M ~map[K]V, K cmp.Ordered, V any](m M) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range SortedKeys(m) {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}
