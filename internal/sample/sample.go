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

// Package sample tracks the configurations analyzed during a run. Every
// distinct feature assignment receives a stable index the first time it is
// seen, which output documents use to refer to it.
package sample

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/EngFlow/variant_analysis/internal/collections"
)

type (
	// Configuration is one feature assignment and its index within a run.
	// Nested in other documents it serializes as its index only; see Full
	// for the complete form.
	Configuration struct {
		Features map[string]bool
		Index    int
	}

	// Tracker assigns indices to configurations. It is safe for concurrent
	// use and lives as long as one run.
	Tracker struct {
		mu      sync.Mutex
		byKey   map[string]*Configuration
		ordered []*Configuration
	}
)

var _ json.Marshaler = Configuration{}

func (c Configuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Index)
}

// EnabledFeatures returns the names of the enabled features, sorted.
func (c Configuration) EnabledFeatures() []string {
	return EnabledFeatures(c.Features)
}

// EnabledFeatures returns the names of the features enabled by assignment,
// sorted.
func EnabledFeatures(assignment map[string]bool) []string {
	return collections.FilterSlice(collections.SortedKeys(assignment), func(name string) bool { return assignment[name] })
}

func NewTracker() *Tracker {
	return &Tracker{byKey: make(map[string]*Configuration)}
}

// Track returns the configuration for the assignment, creating it with the
// next free index if it has not been seen before.
func (t *Tracker) Track(features map[string]bool) *Configuration {
	key := Key(features)

	t.mu.Lock()
	defer t.mu.Unlock()
	if configuration, ok := t.byKey[key]; ok {
		return configuration
	}
	configuration := &Configuration{Features: maps.Clone(features), Index: len(t.ordered)}
	t.byKey[key] = configuration
	t.ordered = append(t.ordered, configuration)
	return configuration
}

// Configurations returns all tracked configurations in index order.
func (t *Tracker) Configurations() []*Configuration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.ordered)
}

// Full returns the feature maps of the configurations, the form used for the
// top-level configuration list of output documents.
func Full(configurations []*Configuration) []map[string]bool {
	return collections.MapSlice(configurations, func(c *Configuration) map[string]bool { return c.Features })
}

// Key returns a string identifying the assignment independent of map order.
func Key(features map[string]bool) string {
	var sb strings.Builder
	for name, enabled := range collections.SortedEntries(features) {
		sb.WriteString(name)
		if enabled {
			sb.WriteString("\x00+\x00")
		} else {
			sb.WriteString("\x00-\x00")
		}
	}
	return sb.String()
}
