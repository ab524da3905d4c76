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

// Package config loads the YAML configuration of a variant analysis run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/EngFlow/variant_analysis/internal/output"
)

// Composer kinds.
const (
	ComposerAntenna  = "antenna"
	ComposerExternal = "external"
)

// Cache backends.
const (
	CacheFile   = "file"
	CacheBadger = "badger"
	CacheNone   = "none"
)

var ErrInvalidConfig = errors.New("invalid config")

type (
	Config struct {
		// SourceDir is the root of the product line.
		SourceDir string `json:"source_dir" yaml:"source_dir"`
		// Include selects the files the antenna composer preprocesses.
		Include []string `json:"include" yaml:"include"`
		// WorkDir receives the composed variants.
		WorkDir      string `json:"work_dir" yaml:"work_dir"`
		KeepVariants bool   `json:"keep_variants" yaml:"keep_variants"`

		FeatureModel   string `json:"feature_model" yaml:"feature_model"`
		FileConditions string `json:"file_conditions" yaml:"file_conditions"`
		// Samples lists the enabled features of each sampled configuration.
		Samples    [][]string `json:"samples" yaml:"samples"`
		Iterations int        `json:"iterations" yaml:"iterations"`

		Composer    ComposerConfig    `json:"composer" yaml:"composer"`
		Analyzer    CommandConfig     `json:"analyzer" yaml:"analyzer"`
		Cache       CacheConfig       `json:"cache" yaml:"cache"`
		Parallelism ParallelismConfig `json:"parallelism" yaml:"parallelism"`
		Output      OutputConfig      `json:"output" yaml:"output"`

		// MetricsFile receives the run metrics in the prometheus text format.
		MetricsFile string `json:"metrics_file" yaml:"metrics_file"`
		LogLevel    string `json:"log_level" yaml:"log_level"`
		LogFormat   string `json:"log_format" yaml:"log_format"`
	}

	CommandConfig struct {
		Command []string      `json:"command" yaml:"command"`
		Timeout time.Duration `json:"timeout" yaml:"timeout"`
	}

	ComposerConfig struct {
		Kind          string `json:"kind" yaml:"kind"`
		CommandConfig `yaml:",inline"`
	}

	CacheConfig struct {
		Dir     string `json:"dir" yaml:"dir"`
		Backend string `json:"backend" yaml:"backend"`
	}

	ParallelismConfig struct {
		Composers     int `json:"composers" yaml:"composers"`
		Analyzers     int `json:"analyzers" yaml:"analyzers"`
		QueueCapacity int `json:"queue_capacity" yaml:"queue_capacity"`
	}

	OutputConfig struct {
		Format string `json:"format" yaml:"format"`
		// Path is the output file. Empty means standard output.
		Path string `json:"path" yaml:"path"`
	}
)

// Default returns the configuration used for everything a config file leaves
// out.
func Default() Config {
	return Config{
		SourceDir:  ".",
		Include:    []string{"**/*.java"},
		WorkDir:    filepath.Join(os.TempDir(), "variant_analysis"),
		Iterations: 1,
		Composer: ComposerConfig{
			Kind: ComposerAntenna,
		},
		Analyzer: CommandConfig{
			Timeout: 10 * time.Minute,
		},
		Cache: CacheConfig{
			Dir:     ".variant_analysis_cache",
			Backend: CacheFile,
		},
		Parallelism: ParallelismConfig{
			Composers:     1,
			Analyzers:     1,
			QueueCapacity: 4,
		},
		Output: OutputConfig{
			Format: "text",
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the config file at path over Default. Relative paths in the
// file are resolved against the file's directory. Environment variables
// VARIANT_ANALYSIS_LOG_LEVEL, VARIANT_ANALYSIS_CACHE_DIR and
// VARIANT_ANALYSIS_WORK_DIR override the file.
func Load(path string) (Config, error) {
	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("parse config %s: %w", path, err)
		}
		config.resolvePaths(filepath.Dir(path))
	}
	loadFromEnv(&config)
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func loadFromEnv(config *Config) {
	if v := os.Getenv("VARIANT_ANALYSIS_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("VARIANT_ANALYSIS_CACHE_DIR"); v != "" {
		config.Cache.Dir = v
	}
	if v := os.Getenv("VARIANT_ANALYSIS_WORK_DIR"); v != "" {
		config.WorkDir = v
	}
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.SourceDir, &c.WorkDir, &c.FeatureModel, &c.FileConditions, &c.Cache.Dir, &c.MetricsFile, &c.Output.Path} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Validate checks everything that can be checked without touching the file
// system.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.SourceDir == "" {
		return invalid("source_dir is required")
	}
	if c.WorkDir == "" {
		return invalid("work_dir is required")
	}
	if c.FeatureModel == "" {
		return invalid("feature_model is required")
	}
	if len(c.Samples) == 0 {
		return invalid("samples must list at least one configuration")
	}
	if c.Iterations < 1 {
		return invalid("iterations must be >= 1")
	}
	for _, pattern := range c.Include {
		if !doublestar.ValidatePattern(pattern) {
			return invalid("include pattern %q is malformed", pattern)
		}
	}
	switch c.Composer.Kind {
	case ComposerAntenna:
	case ComposerExternal:
		if len(c.Composer.Command) == 0 {
			return invalid("composer.command is required for the %s composer", ComposerExternal)
		}
	default:
		return invalid("unknown composer kind %q", c.Composer.Kind)
	}
	if len(c.Analyzer.Command) == 0 {
		return invalid("analyzer.command is required")
	}
	if c.Composer.Timeout < 0 || c.Analyzer.Timeout < 0 {
		return invalid("timeouts must not be negative")
	}
	switch c.Cache.Backend {
	case CacheFile, CacheBadger:
		if c.Cache.Dir == "" {
			return invalid("cache.dir is required for the %s backend", c.Cache.Backend)
		}
	case CacheNone:
	default:
		return invalid("unknown cache backend %q", c.Cache.Backend)
	}
	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		return invalid("%v", err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level: %v", err)
	}
	p := c.Parallelism
	if p.Composers < 1 || p.Analyzers < 1 {
		return invalid("parallelism needs at least one composer and one analyzer")
	}
	if p.QueueCapacity < 0 {
		return invalid("parallelism.queue_capacity must be >= 0")
	}
	return nil
}
