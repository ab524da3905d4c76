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

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EngFlow/variant_analysis/internal/analysis"
	"github.com/EngFlow/variant_analysis/internal/cache"
	"github.com/EngFlow/variant_analysis/internal/conditiontree"
	"github.com/EngFlow/variant_analysis/internal/featuremodel"
	"github.com/EngFlow/variant_analysis/internal/presence"
	"github.com/EngFlow/variant_analysis/internal/sample"
	"github.com/EngFlow/variant_analysis/internal/sourcemap"
)

const sourceFile = "//#if A\nbad();\n//#else\nworse();\n//#endif\n"

type fakeSampler struct {
	configurations []map[string]bool
	calls          atomic.Int32
}

func (s *fakeSampler) Sample(context.Context, int) ([]map[string]bool, error) {
	s.calls.Add(1)
	return s.configurations, nil
}

type fakeComposer struct {
	err   error
	calls atomic.Int32
}

func (c *fakeComposer) Compose(_ context.Context, features map[string]bool, destination string, _ *featuremodel.FeatureModel) (*Composition, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	if err := os.WriteFile(filepath.Join(destination, "main.c"), []byte(sourceFile), 0o644); err != nil {
		return nil, err
	}
	tree, err := conditiontree.Read(strings.NewReader(sourceFile))
	if err != nil {
		return nil, err
	}
	return &Composition{
		Root:      destination,
		Features:  features,
		SourceMap: sourcemap.Identity{},
		Mapper:    presence.NewTreeMapper(map[string]presence.LineConditions{"main.c": tree}),
	}, nil
}

// fakeAnalyzer reports the line of main.c that is enabled in the variant.
type fakeAnalyzer struct {
	err error
}

func (a fakeAnalyzer) Analyze(ctx context.Context, composition *Composition) ([]analysis.RawFinding, error) {
	if a.err != nil {
		return nil, a.err
	}
	if _, err := os.Stat(filepath.Join(composition.Root, "main.c")); err != nil {
		return nil, err
	}
	line := 4
	if composition.Features["A"] {
		line = 2
	}
	return []analysis.RawFinding{{
		Name:     "call",
		Title:    "Suspicious call",
		Evidence: []sourcemap.SourceLocation{{File: "main.c", Line: line}},
	}}, nil
}

var configurations = []map[string]bool{
	{"A": true, "B": false},
	{"A": false, "B": false},
	{"A": true, "B": true},
	{"A": false, "B": true},
}

func newRunner(t *testing.T, opts Options, composer Composer, analyzer Analyzer, resultCache cache.ResultCache) (*Runner, *analysis.Aggregator, *fakeSampler) {
	t.Helper()
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	if opts.Iterations == 0 {
		opts.Iterations = 1
	}
	sampler := &fakeSampler{configurations: configurations}
	aggregator := analysis.NewAggregator(sample.NewTracker())
	r, err := New(opts, nil, sampler, composer, analyzer, resultCache, aggregator)
	require.NoError(t, err)
	return r, aggregator, sampler
}

func TestRun(t *testing.T) {
	testCases := []struct {
		name string
		opts Options
	}{
		{name: "sequential", opts: Options{Composers: 1, Analyzers: 1}},
		{name: "parallel", opts: Options{Composers: 3, Analyzers: 2, QueueCapacity: 1}},
		{name: "unbuffered", opts: Options{Composers: 2, Analyzers: 2}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, aggregator, _ := newRunner(t, tc.opts, &fakeComposer{}, fakeAnalyzer{}, cache.Noop{})
			results, err := r.Run(context.Background())
			require.NoError(t, err)

			require.Len(t, results, len(configurations))
			for i, result := range results {
				assert.Equal(t, configurations[i], result.EnabledFeatures)
			}

			groups := aggregator.AggregateResults().Groups
			require.Len(t, groups, 2)
			assert.Equal(t, []sourcemap.SourceLocation{{File: "main.c", Line: 2}}, groups[0].Evidence)
			assert.Equal(t, "&(&() &(A))", groups[0].Conditions[0].String())
			assert.Equal(t, "&(&() &(!(A)))", groups[1].Conditions[0].String())
			assert.False(t, groups[0].IsAmbiguous())
			assert.Len(t, groups[0].AffectedConfigurations, 2)
		})
	}
}

func TestRunUsesCachedResults(t *testing.T) {
	dir := t.TempDir()
	resultCache, err := cache.Open(dir)
	require.NoError(t, err)

	first, _, _ := newRunner(t, Options{Composers: 2, Analyzers: 2}, &fakeComposer{}, fakeAnalyzer{}, resultCache)
	_, err = first.Run(context.Background())
	require.NoError(t, err)

	composer := &fakeComposer{err: errors.New("must not compose")}
	second, aggregator, sampler := newRunner(t, Options{Composers: 2, Analyzers: 2}, composer, fakeAnalyzer{}, resultCache)
	results, err := second.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, results, len(configurations))
	assert.Zero(t, composer.calls.Load())
	assert.Zero(t, sampler.calls.Load(), "the cached sample is reused")
	assert.Len(t, aggregator.AggregateResults().Groups, 2)
}

func TestRunIterationComposesOnlyMissingResults(t *testing.T) {
	resultCache, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	resultCache.CacheSample(configurations, 0)
	resultCache.CacheAnalysisResult(&analysis.AnalysisResult{EnabledFeatures: configurations[1]}, 0, 1)

	composer := &fakeComposer{}
	r, _, _ := newRunner(t, Options{Composers: 1, Analyzers: 1}, composer, fakeAnalyzer{}, resultCache)
	results, err := r.RunIteration(context.Background(), 0, configurations)
	require.NoError(t, err)

	assert.Equal(t, int32(len(configurations)-1), composer.calls.Load())
	assert.Empty(t, results[1].Findings)
	var cached analysis.AnalysisResult
	assert.True(t, resultCache.AnalysisResult(0, 3, &cached), "new results are cached")
}

func TestRunFailures(t *testing.T) {
	testCases := []struct {
		name     string
		opts     Options
		composer *fakeComposer
		analyzer fakeAnalyzer
		err      string
	}{
		{name: "composer sequential", opts: Options{Composers: 1, Analyzers: 1}, composer: &fakeComposer{err: errors.New("broken build")}, err: "broken build"},
		{name: "composer parallel", opts: Options{Composers: 2, Analyzers: 2}, composer: &fakeComposer{err: errors.New("broken build")}, err: "broken build"},
		{name: "analyzer sequential", opts: Options{Composers: 1, Analyzers: 1}, composer: &fakeComposer{}, analyzer: fakeAnalyzer{err: errors.New("analyzer crashed")}, err: "analyzer crashed"},
		{name: "analyzer parallel", opts: Options{Composers: 2, Analyzers: 2}, composer: &fakeComposer{}, analyzer: fakeAnalyzer{err: errors.New("analyzer crashed")}, err: "analyzer crashed"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, _, _ := newRunner(t, tc.opts, tc.composer, tc.analyzer, cache.Noop{})
			_, err := r.Run(context.Background())
			assert.ErrorContains(t, err, tc.err)
			assert.NoDirExists(t, filepath.Join(r.opts.WorkDir, "run-"+r.ID()), "variants of a failed run are removed")
		})
	}
}

func TestRunCancelled(t *testing.T) {
	r, _, _ := newRunner(t, Options{Composers: 2, Analyzers: 2}, &fakeComposer{}, fakeAnalyzer{}, cache.Noop{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, filepath.Join(r.opts.WorkDir, "run-"+r.ID()))
}

func TestWorkDirectory(t *testing.T) {
	for _, keep := range []bool{false, true} {
		workDir := t.TempDir()
		r, _, _ := newRunner(t, Options{Composers: 1, Analyzers: 1, WorkDir: workDir, KeepVariants: keep}, &fakeComposer{}, fakeAnalyzer{}, cache.Noop{})
		_, err := r.Run(context.Background())
		require.NoError(t, err)

		variant := filepath.Join(workDir, "run-"+r.ID(), "0-2", "main.c")
		if keep {
			assert.FileExists(t, variant)
		} else {
			assert.NoDirExists(t, filepath.Join(workDir, "run-"+r.ID()))
		}
	}
}

func TestOptionsValidation(t *testing.T) {
	testCases := []Options{
		{Iterations: 0, Composers: 1, Analyzers: 1, WorkDir: "w"},
		{Iterations: 1, Composers: 0, Analyzers: 1, WorkDir: "w"},
		{Iterations: 1, Composers: 1, Analyzers: 1, QueueCapacity: -1, WorkDir: "w"},
		{Iterations: 1, Composers: 1, Analyzers: 1},
	}
	for _, opts := range testCases {
		_, err := New(opts, nil, nil, nil, nil, cache.Noop{}, nil)
		assert.ErrorIs(t, err, ErrInvalidOptions)
	}
}
