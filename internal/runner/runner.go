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

// Package runner drives an analysis run: for every iteration it obtains a
// sample of configurations, composes and analyzes the variants whose results
// are not cached, and feeds every result into the aggregator.
//
// Composition and analysis run in two worker pools connected by a bounded
// queue, so composers stall once analyzers fall behind.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/EngFlow/variant_analysis/internal/analysis"
	"github.com/EngFlow/variant_analysis/internal/cache"
	"github.com/EngFlow/variant_analysis/internal/featuremodel"
	"github.com/EngFlow/variant_analysis/internal/metrics"
	"github.com/EngFlow/variant_analysis/internal/sample"
)

// Variant sources, used as metric labels.
const (
	sourceCache    = "cache"
	sourceAnalyzed = "analyzed"
)

type (
	Options struct {
		Iterations    int
		Composers     int
		Analyzers     int
		QueueCapacity int
		// WorkDir receives one directory per run holding the composed
		// variants.
		WorkDir string
		// KeepVariants keeps composed variants after their analysis.
		KeepVariants bool
	}

	Runner struct {
		id         string
		opts       Options
		model      *featuremodel.FeatureModel
		sampler    sample.Sampler
		composer   Composer
		analyzer   Analyzer
		cache      cache.ResultCache
		aggregator *analysis.Aggregator
	}

	job struct {
		iteration int
		index     int
		features  map[string]bool
	}

	composed struct {
		job
		composition *Composition
	}
)

var ErrInvalidOptions = errors.New("invalid runner options")

func (o Options) validate() error {
	switch {
	case o.Iterations < 1:
		return fmt.Errorf("%w: at least one iteration is required", ErrInvalidOptions)
	case o.Composers < 1 || o.Analyzers < 1:
		return fmt.Errorf("%w: at least one composer and one analyzer are required", ErrInvalidOptions)
	case o.QueueCapacity < 0:
		return fmt.Errorf("%w: negative queue capacity", ErrInvalidOptions)
	case o.WorkDir == "":
		return fmt.Errorf("%w: no work directory", ErrInvalidOptions)
	}
	return nil
}

// Sequential reports whether the options ask for a single composer and
// analyzer, which are then run one after the other without a queue.
func (o Options) Sequential() bool {
	return o.Composers == 1 && o.Analyzers == 1
}

func New(opts Options, model *featuremodel.FeatureModel, sampler sample.Sampler, composer Composer, analyzer Analyzer, resultCache cache.ResultCache, aggregator *analysis.Aggregator) (*Runner, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Runner{
		id:         uuid.New().String(),
		opts:       opts,
		model:      model,
		sampler:    sampler,
		composer:   composer,
		analyzer:   analyzer,
		cache:      resultCache,
		aggregator: aggregator,
	}, nil
}

// ID identifies the run in logs and names its work directory.
func (r *Runner) ID() string {
	return r.id
}

func (r *Runner) workDir() string {
	return filepath.Join(r.opts.WorkDir, "run-"+r.id)
}

// Run performs all iterations and returns every analysis result in iteration
// and sample order.
func (r *Runner) Run(ctx context.Context) ([]*analysis.AnalysisResult, error) {
	log.Infof("Starting run %s", r.id)
	if !r.opts.KeepVariants {
		defer func() {
			if err := os.RemoveAll(r.workDir()); err != nil {
				log.Warnf("Failed to remove work directory %s: %v", r.workDir(), err)
			}
		}()
	}
	var results []*analysis.AnalysisResult
	for iteration := range r.opts.Iterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		configurations, err := r.sample(ctx, iteration)
		if err != nil {
			return nil, fmt.Errorf("sampling iteration %d: %w", iteration, err)
		}
		iterationResults, err := r.RunIteration(ctx, iteration, configurations)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}
		results = append(results, iterationResults...)
	}
	return results, nil
}

// sample returns the cached sample of iteration, or draws and caches a new
// one. Cached results stay usable only with the cached sample.
func (r *Runner) sample(ctx context.Context, iteration int) ([]map[string]bool, error) {
	if configurations, ok := r.cache.Sample(iteration); ok {
		log.Infof("Iteration %d: using cached sample of %d configurations", iteration, len(configurations))
		return configurations, nil
	}
	configurations, err := r.sampler.Sample(ctx, iteration)
	if err != nil {
		return nil, err
	}
	r.cache.CacheSample(configurations, iteration)
	return configurations, nil
}

// RunIteration analyzes the configurations of one iteration. Results found in
// the cache are used as they are; all others are composed, analyzed, cached
// and aggregated. The results are returned in the order of configurations.
func (r *Runner) RunIteration(ctx context.Context, iteration int, configurations []map[string]bool) ([]*analysis.AnalysisResult, error) {
	results := make([]*analysis.AnalysisResult, len(configurations))
	var pending []job
	for index, features := range configurations {
		if result := r.aggregator.TryAddFromCache(r.cache, iteration, index); result != nil {
			results[index] = result
			metrics.Variants.WithLabelValues(sourceCache).Inc()
			continue
		}
		pending = append(pending, job{iteration: iteration, index: index, features: features})
	}
	log.Infof("Iteration %d: analyzing %d of %d variants", iteration, len(pending), len(configurations))

	var err error
	if r.opts.Sequential() {
		err = r.runSequential(ctx, pending, results)
	} else {
		err = r.runParallel(ctx, pending, results)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runSequential(ctx context.Context, pending []job, results []*analysis.AnalysisResult) error {
	for _, j := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		composition, err := r.compose(ctx, j)
		if err != nil {
			return err
		}
		result, err := r.analyze(ctx, composed{job: j, composition: composition})
		if err != nil {
			return err
		}
		results[j.index] = result
	}
	return nil
}

func (r *Runner) runParallel(ctx context.Context, pending []job, results []*analysis.AnalysisResult) error {
	eg, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job)
	compositions := make(chan composed, r.opts.QueueCapacity)

	eg.Go(func() error {
		defer close(jobs)
		for _, j := range pending {
			select {
			case jobs <- j:
			case <-gctx.Done():
				return context.Cause(gctx)
			}
		}
		return nil
	})

	var composing sync.WaitGroup
	for range r.opts.Composers {
		composing.Add(1)
		eg.Go(func() error {
			defer composing.Done()
			for j := range jobs {
				composition, err := r.compose(gctx, j)
				if err != nil {
					return err
				}
				select {
				case compositions <- composed{job: j, composition: composition}:
				case <-gctx.Done():
					return context.Cause(gctx)
				}
			}
			return nil
		})
	}
	eg.Go(func() error {
		composing.Wait()
		close(compositions)
		return nil
	})

	for range r.opts.Analyzers {
		eg.Go(func() error {
			for c := range compositions {
				result, err := r.analyze(gctx, c)
				if err != nil {
					return err
				}
				results[c.index] = result
			}
			return nil
		})
	}
	return eg.Wait()
}

func (r *Runner) destination(j job) string {
	return filepath.Join(r.workDir(), fmt.Sprintf("%d-%d", j.iteration, j.index))
}

func (r *Runner) compose(ctx context.Context, j job) (*Composition, error) {
	destination := r.destination(j)
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return nil, fmt.Errorf("creating composer destination: %w", err)
	}
	log.Infof("Composing variant %d-%d with features %v", j.iteration, j.index, sample.EnabledFeatures(j.features))
	composition, err := r.composer.Compose(ctx, j.features, destination, r.model)
	if err != nil {
		return nil, fmt.Errorf("composing variant %d-%d: %w", j.iteration, j.index, err)
	}
	return composition, nil
}

func (r *Runner) analyze(ctx context.Context, c composed) (*analysis.AnalysisResult, error) {
	log.Infof("Analyzing variant %d-%d", c.iteration, c.index)
	raw, err := r.analyzer.Analyze(ctx, c.composition)
	if err != nil {
		return nil, fmt.Errorf("analyzing variant %d-%d: %w", c.iteration, c.index, err)
	}
	result := &analysis.AnalysisResult{
		EnabledFeatures: c.features,
		Findings:        analysis.Annotate(raw, c.composition.Mapper, c.composition.SourceMap),
	}
	r.cache.CacheAnalysisResult(result, c.iteration, c.index)
	r.aggregator.Add(result)
	metrics.Variants.WithLabelValues(sourceAnalyzed).Inc()

	if !r.opts.KeepVariants {
		if err := os.RemoveAll(r.destination(c.job)); err != nil {
			log.Warnf("Failed to remove variant %d-%d: %v", c.iteration, c.index, err)
		}
	}
	return result, nil
}
