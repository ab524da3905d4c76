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

package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/EngFlow/variant_analysis/internal/featuremodel"
	"github.com/EngFlow/variant_analysis/internal/jsonfile"
	"github.com/EngFlow/variant_analysis/internal/metrics"
)

const (
	featureModelFile     = "featureModel.json.xz"
	sampleFile           = "sample.json"
	analysisResultPrefix = "analysisResult_"
	analysisResultGlob   = analysisResultPrefix + "*.json"
	leftoverTempGlob     = "**/.*.tmp"
)

// FileCache stores entries as files below a root directory:
//
//	<root>/featureModel.json.xz
//	<root>/<iteration>/sample.json
//	<root>/<iteration>/analysisResult_<index>.json
type FileCache struct {
	mu   sync.Mutex
	root string
}

var _ ResultCache = (*FileCache)(nil)

// Open opens the cache rooted at dir, creating dir if needed, and drops the
// analysis results of iterations without a readable sample.
func Open(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	c := &FileCache{root: dir}
	if err := c.sweep(); err != nil {
		return nil, fmt.Errorf("checking cache %s: %w", dir, err)
	}
	return c, nil
}

func (c *FileCache) sweep() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	leftovers, err := doublestar.Glob(os.DirFS(c.root), leftoverTempGlob)
	if err != nil {
		return err
	}
	for _, leftover := range leftovers {
		os.Remove(filepath.Join(c.root, filepath.FromSlash(leftover)))
	}

	entries, err := os.ReadDir(c.root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		iteration, ok := parseIteration(entry)
		if !ok {
			continue
		}
		if _, ok := c.readSample(iteration); !ok {
			log.Debugf("Iteration %d has no sample, invalidating its analysis results", iteration)
			c.invalidateAnalysisResults(iteration)
		}
	}
	return nil
}

func parseIteration(entry fs.DirEntry) (int, bool) {
	if !entry.IsDir() {
		return 0, false
	}
	iteration, err := strconv.Atoi(entry.Name())
	if err != nil || iteration < 0 || strconv.Itoa(iteration) != entry.Name() {
		return 0, false
	}
	return iteration, true
}

func (c *FileCache) iterationDir(iteration int) string {
	return filepath.Join(c.root, strconv.Itoa(iteration))
}

func (c *FileCache) analysisResultPath(iteration, index int) string {
	return filepath.Join(c.iterationDir(iteration), fmt.Sprintf("%s%d.json", analysisResultPrefix, index))
}

func (c *FileCache) FeatureModel() (*featuremodel.FeatureModel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(c.root, featureModelFile))
	if err != nil {
		logReadError("feature model", err)
		metrics.CacheLookup(entryFeatureModel, false)
		return nil, false
	}
	model, err := featuremodel.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warnf("Failed to read feature model from cache: %v", err)
		metrics.CacheLookup(entryFeatureModel, false)
		return nil, false
	}
	log.Debugf("Read feature model from cache")
	metrics.CacheLookup(entryFeatureModel, true)
	return model, true
}

func (c *FileCache) CacheFeatureModel(model *featuremodel.FeatureModel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	if err := model.Encode(&buf); err != nil {
		log.Warnf("Failed to encode feature model for cache: %v", err)
		return
	}
	if err := jsonfile.WriteBytes(filepath.Join(c.root, featureModelFile), buf.Bytes()); err != nil {
		log.Warnf("Failed to save feature model to cache: %v", err)
		return
	}
	log.Debugf("Feature model saved to cache")
}

func (c *FileCache) Sample(iteration int) ([]map[string]bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sample, ok := c.readSample(iteration)
	metrics.CacheLookup(entrySample, ok)
	return sample, ok
}

func (c *FileCache) readSample(iteration int) ([]map[string]bool, bool) {
	var sample []map[string]bool
	if err := jsonfile.Read(filepath.Join(c.iterationDir(iteration), sampleFile), &sample); err != nil {
		logReadError(fmt.Sprintf("sample of iteration %d", iteration), err)
		return nil, false
	}
	if sample == nil {
		log.Warnf("Cached sample of iteration %d is null", iteration)
		return nil, false
	}
	return sample, true
}

func (c *FileCache) CacheSample(sample []map[string]bool, iteration int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateAnalysisResults(iteration)
	if err := jsonfile.Write(filepath.Join(c.iterationDir(iteration), sampleFile), sample); err != nil {
		log.Warnf("Failed to save sample of iteration %d to cache: %v", iteration, err)
		return
	}
	log.Debugf("Sample of iteration %d saved to cache", iteration)
}

func (c *FileCache) invalidateAnalysisResults(iteration int) {
	dir := c.iterationDir(iteration)
	matches, err := doublestar.Glob(os.DirFS(dir), analysisResultGlob)
	if err != nil {
		log.Warnf("Failed to list analysis results of iteration %d: %v", iteration, err)
		return
	}
	for _, match := range matches {
		if err := os.Remove(filepath.Join(dir, match)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warnf("Failed to delete cached analysis result %s: %v", match, err)
		}
	}
}

func (c *FileCache) AnalysisResult(iteration, index int, into any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.analysisResultPath(iteration, index))
	if err != nil {
		logReadError(fmt.Sprintf("analysis result of configuration %d in iteration %d", index, iteration), err)
		metrics.CacheLookup(entryAnalysisResult, false)
		return false
	}
	if err := json.Unmarshal(data, into); err != nil {
		log.Warnf("Failed to read analysis result of configuration %d in iteration %d from cache: %v", index, iteration, err)
		metrics.CacheLookup(entryAnalysisResult, false)
		return false
	}
	log.Debugf("Read analysis result of configuration %d in iteration %d from cache", index, iteration)
	metrics.CacheLookup(entryAnalysisResult, true)
	return true
}

func (c *FileCache) CacheAnalysisResult(result any, iteration, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := jsonfile.Write(c.analysisResultPath(iteration, index), result); err != nil {
		log.Warnf("Failed to save analysis result of configuration %d in iteration %d to cache: %v", index, iteration, err)
		return
	}
	log.Debugf("Analysis result of configuration %d in iteration %d saved to cache", index, iteration)
}

func (c *FileCache) Close() error {
	return nil
}

// logReadError logs a failed read. Absent entries are expected and only
// logged at debug level.
func logReadError(what string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf("No cached %s", what)
		return
	}
	log.Warnf("Failed to read cached %s: %v", what, err)
}
