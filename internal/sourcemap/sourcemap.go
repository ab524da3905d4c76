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

// Package sourcemap translates locations in a generated variant back to the
// original source tree the variant was composed from.
package sourcemap

import (
	"fmt"
)

type (
	// SourceLocation identifies a line of a file. Line is 1-based.
	SourceLocation struct {
		File string `json:"file"`
		Line int    `json:"line"`
	}

	// SourceMap maps a location in a generated file to its origin. Lookups
	// are pure: implementations hold no mutable state after construction.
	SourceMap interface {
		// OriginalLocation returns the original location of the generated
		// location, or false if it cannot be determined.
		OriginalLocation(generated SourceLocation) (SourceLocation, bool)
	}

	// Identity maps every location onto itself. It is used by composers that
	// preserve file paths and line numbers.
	Identity struct{}
)

var _ SourceMap = Identity{}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Compare orders locations by file, then by line.
func (l SourceLocation) Compare(other SourceLocation) int {
	switch {
	case l.File < other.File:
		return -1
	case l.File > other.File:
		return 1
	case l.Line < other.Line:
		return -1
	case l.Line > other.Line:
		return 1
	}
	return 0
}

func (Identity) OriginalLocation(generated SourceLocation) (SourceLocation, bool) {
	return generated, true
}
