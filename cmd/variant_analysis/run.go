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

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/EngFlow/variant_analysis/internal/analysis"
	"github.com/EngFlow/variant_analysis/internal/antenna"
	"github.com/EngFlow/variant_analysis/internal/cache"
	"github.com/EngFlow/variant_analysis/internal/config"
	"github.com/EngFlow/variant_analysis/internal/external"
	"github.com/EngFlow/variant_analysis/internal/featuremodel"
	"github.com/EngFlow/variant_analysis/internal/jsonfile"
	"github.com/EngFlow/variant_analysis/internal/logging"
	"github.com/EngFlow/variant_analysis/internal/metrics"
	"github.com/EngFlow/variant_analysis/internal/output"
	"github.com/EngFlow/variant_analysis/internal/presence"
	"github.com/EngFlow/variant_analysis/internal/runner"
	"github.com/EngFlow/variant_analysis/internal/sample"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Composes, analyzes and aggregates all sampled variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("log-level") {
				root.logLevel = cfg.LogLevel
			}
			if !flags.Changed("log-format") {
				root.logFormat = cfg.LogFormat
			}
			if err := logging.Init(cmd.ErrOrStderr(), root.logLevel, root.logFormat); err != nil {
				return err
			}
			return runAnalysis(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "variant_analysis.yaml", "path of the YAML configuration")
	return cmd
}

func runAnalysis(ctx context.Context, cfg config.Config, stdout io.Writer) (err error) {
	resultCache, err := openCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resultCache.Close(); err == nil {
			err = closeErr
		}
	}()

	model, err := loadFeatureModel(cfg.FeatureModel, resultCache)
	if err != nil {
		return err
	}
	sampler, err := sample.NewFixed(model, cfg.Samples)
	if err != nil {
		return err
	}
	composer, err := newComposer(cfg)
	if err != nil {
		return err
	}
	analyzer, err := external.NewAnalyzer(external.Command{Args: cfg.Analyzer.Command, Timeout: cfg.Analyzer.Timeout})
	if err != nil {
		return err
	}

	tracker := sample.NewTracker()
	aggregator := analysis.NewAggregator(tracker)
	r, err := runner.New(runner.Options{
		Iterations:    cfg.Iterations,
		Composers:     cfg.Parallelism.Composers,
		Analyzers:     cfg.Parallelism.Analyzers,
		QueueCapacity: cfg.Parallelism.QueueCapacity,
		WorkDir:       cfg.WorkDir,
		KeepVariants:  cfg.KeepVariants,
	}, model, sampler, composer, analyzer, resultCache, aggregator)
	if err != nil {
		return err
	}
	results, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("run %s: %w", r.ID(), err)
	}

	data := output.NewData(tracker, results, aggregator.AggregateResults())
	if err := writeOutput(data, cfg.Output, stdout); err != nil {
		return err
	}
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

func openCache(c config.CacheConfig) (cache.ResultCache, error) {
	switch c.Backend {
	case config.CacheFile:
		return cache.Open(c.Dir)
	case config.CacheBadger:
		return cache.OpenBadger(c.Dir)
	}
	return cache.Noop{}, nil
}

// loadFeatureModel prefers the cached model so that all iterations of a
// resumed run sample from the same model.
func loadFeatureModel(path string, resultCache cache.ResultCache) (*featuremodel.FeatureModel, error) {
	if model, ok := resultCache.FeatureModel(); ok {
		log.Infof("Using cached feature model %q", model.Name)
		return model, nil
	}
	model, err := featuremodel.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feature model: %w", err)
	}
	log.Infof("Loaded feature model %q with %d features", model.Name, len(model.Features))
	resultCache.CacheFeatureModel(model)
	return model, nil
}

func newComposer(cfg config.Config) (runner.Composer, error) {
	if cfg.Composer.Kind == config.ComposerAntenna {
		return antenna.NewComposer(cfg.SourceDir, cfg.Include)
	}
	files := presence.NewFileConditionTable()
	if cfg.FileConditions != "" {
		var err error
		if files, err = presence.ReadFileConditionTable(cfg.FileConditions); err != nil {
			return nil, fmt.Errorf("reading file conditions: %w", err)
		}
		log.Debug(files.Summary())
	}
	command := external.Command{Args: cfg.Composer.Command, Timeout: cfg.Composer.Timeout}
	return external.NewComposer(command, cfg.SourceDir, files)
}

func writeOutput(data *output.Data, c config.OutputConfig, stdout io.Writer) error {
	format, err := output.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	if c.Path == "" {
		return data.Write(stdout, format)
	}
	var buf bytes.Buffer
	if err := data.Write(&buf, format); err != nil {
		return err
	}
	if err := jsonfile.WriteBytes(c.Path, buf.Bytes()); err != nil {
		return err
	}
	log.Infof("Wrote results to %s", c.Path)
	return nil
}
