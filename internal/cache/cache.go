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

// Package cache persists the intermediate products of an analysis run so that
// an interrupted or repeated run can skip work already done: the feature
// model, the sample of each iteration and the analysis result of each
// configuration of a sample.
//
// An analysis result is only ever valid together with the sample its
// iteration had when the result was stored. Caching a new sample for an
// iteration therefore drops all results of that iteration, and opening a
// cache drops results of iterations whose sample cannot be read.
//
// Caches never fail their callers: unreadable entries are misses and failed
// writes are logged.
package cache

import (
	"io"

	"github.com/EngFlow/variant_analysis/internal/featuremodel"
)

// Entry kinds, used as metric labels.
const (
	entryFeatureModel   = "feature_model"
	entrySample         = "sample"
	entryAnalysisResult = "analysis_result"
)

type (
	// ResultCache stores the products of a run. Implementations serialize all
	// operations of one instance.
	ResultCache interface {
		FeatureModel() (*featuremodel.FeatureModel, bool)
		CacheFeatureModel(model *featuremodel.FeatureModel)

		// Sample returns the configurations sampled in iteration.
		Sample(iteration int) ([]map[string]bool, bool)
		// CacheSample stores the sample of iteration and drops all analysis
		// results of iteration.
		CacheSample(sample []map[string]bool, iteration int)

		// AnalysisResult decodes the result of the configuration at index
		// in the sample of iteration into the value pointed to by into, and
		// reports whether it succeeded.
		AnalysisResult(iteration, index int, into any) bool
		CacheAnalysisResult(result any, iteration, index int)

		io.Closer
	}

	// Noop is the cache used when caching is disabled. Every lookup misses.
	Noop struct{}
)

var _ ResultCache = Noop{}

func (Noop) FeatureModel() (*featuremodel.FeatureModel, bool) { return nil, false }
func (Noop) CacheFeatureModel(*featuremodel.FeatureModel)     {}
func (Noop) Sample(int) ([]map[string]bool, bool)             { return nil, false }
func (Noop) CacheSample([]map[string]bool, int)               {}
func (Noop) AnalysisResult(int, int, any) bool                { return false }
func (Noop) CacheAnalysisResult(any, int, int)                {}
func (Noop) Close() error                                     { return nil }
