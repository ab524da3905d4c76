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
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"

	"github.com/EngFlow/variant_analysis/internal/featuremodel"
	"github.com/EngFlow/variant_analysis/internal/jsonfile"
	"github.com/EngFlow/variant_analysis/internal/metrics"
)

const (
	featureModelKey         = "featureModel"
	sampleKeyPrefix         = "sample/"
	analysisResultKeyPrefix = "analysisResult/"
)

// BadgerCache stores entries in a badger database. It keeps the guarantees
// of FileCache in a single store that updates atomically.
type BadgerCache struct {
	mu sync.Mutex
	db *badger.DB
}

var _ ResultCache = (*BadgerCache)(nil)

// badgerLogger forwards badger's own messages to the process logger. Badger
// reports routine progress at info level, so that is demoted to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any)   { log.Errorf("badger: "+format, args...) }
func (badgerLogger) Warningf(format string, args ...any) { log.Warnf("badger: "+format, args...) }
func (badgerLogger) Infof(format string, args ...any)    { log.Debugf("badger: "+format, args...) }
func (badgerLogger) Debugf(format string, args ...any)   { log.Debugf("badger: "+format, args...) }

// OpenBadger opens the badger database in dir, creating it if needed, and
// drops the analysis results of iterations without a readable sample.
func OpenBadger(dir string) (*BadgerCache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger cache %s: %w", dir, err)
	}

	c := &BadgerCache{db: db}
	if err := c.sweep(); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking badger cache %s: %w", dir, err)
	}
	return c, nil
}

func sampleKey(iteration int) []byte {
	return []byte(sampleKeyPrefix + strconv.Itoa(iteration))
}

func analysisResultsPrefix(iteration int) []byte {
	return []byte(analysisResultKeyPrefix + strconv.Itoa(iteration) + "/")
}

func analysisResultKey(iteration, index int) []byte {
	return append(analysisResultsPrefix(iteration), strconv.Itoa(index)...)
}

// get returns the value of key, or nil if it does not exist.
func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// keysWithPrefix lists the keys starting with prefix without reading their
// values.
func keysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func (c *BadgerCache) sweep() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.Update(func(txn *badger.Txn) error {
		valid := make(map[int]bool)
		for _, key := range keysWithPrefix(txn, []byte(analysisResultKeyPrefix)) {
			iterationPart, _, _ := strings.Cut(strings.TrimPrefix(string(key), analysisResultKeyPrefix), "/")
			iteration, err := strconv.Atoi(iterationPart)
			if err != nil {
				continue
			}
			ok, checked := valid[iteration]
			if !checked {
				_, ok = readSample(txn, iteration)
				valid[iteration] = ok
				if !ok {
					log.Debugf("Iteration %d has no sample, invalidating its analysis results", iteration)
				}
			}
			if !ok {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (c *BadgerCache) FeatureModel() (*featuremodel.FeatureModel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var model *featuremodel.FeatureModel
	err := c.db.View(func(txn *badger.Txn) error {
		data, err := get(txn, []byte(featureModelKey))
		if err != nil || data == nil {
			return err
		}
		model, err = featuremodel.Decode(bytes.NewReader(data))
		return err
	})
	if err != nil {
		log.Warnf("Failed to read feature model from cache: %v", err)
		model = nil
	} else if model == nil {
		log.Debugf("No cached feature model")
	}
	metrics.CacheLookup(entryFeatureModel, model != nil)
	return model, model != nil
}

func (c *BadgerCache) CacheFeatureModel(model *featuremodel.FeatureModel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	if err := model.Encode(&buf); err != nil {
		log.Warnf("Failed to encode feature model for cache: %v", err)
		return
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(featureModelKey), buf.Bytes())
	}); err != nil {
		log.Warnf("Failed to save feature model to cache: %v", err)
		return
	}
	log.Debugf("Feature model saved to cache")
}

func (c *BadgerCache) Sample(iteration int) ([]map[string]bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sample []map[string]bool
	var ok bool
	if err := c.db.View(func(txn *badger.Txn) error {
		sample, ok = readSample(txn, iteration)
		return nil
	}); err != nil {
		log.Warnf("Failed to read sample of iteration %d from cache: %v", iteration, err)
	}
	metrics.CacheLookup(entrySample, ok)
	return sample, ok
}

func readSample(txn *badger.Txn, iteration int) ([]map[string]bool, bool) {
	data, err := get(txn, sampleKey(iteration))
	if err != nil {
		log.Warnf("Failed to read sample of iteration %d from cache: %v", iteration, err)
		return nil, false
	} else if data == nil {
		log.Debugf("No cached sample of iteration %d", iteration)
		return nil, false
	}
	var sample []map[string]bool
	if err := json.Unmarshal(data, &sample); err != nil || sample == nil {
		log.Warnf("Failed to decode cached sample of iteration %d: %v", iteration, err)
		return nil, false
	}
	return sample, true
}

func (c *BadgerCache) CacheSample(sample []map[string]bool, iteration int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := jsonfile.Marshal(sample)
	if err != nil {
		log.Warnf("Failed to encode sample of iteration %d: %v", iteration, err)
		return
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		for _, key := range keysWithPrefix(txn, analysisResultsPrefix(iteration)) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return txn.Set(sampleKey(iteration), data)
	}); err != nil {
		log.Warnf("Failed to save sample of iteration %d to cache: %v", iteration, err)
		return
	}
	log.Debugf("Sample of iteration %d saved to cache", iteration)
}

func (c *BadgerCache) AnalysisResult(iteration, index int, into any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var found bool
	err := c.db.View(func(txn *badger.Txn) error {
		data, err := get(txn, analysisResultKey(iteration, index))
		if err != nil || data == nil {
			return err
		}
		if err := json.Unmarshal(data, into); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		log.Warnf("Failed to read analysis result of configuration %d in iteration %d from cache: %v", index, iteration, err)
	} else if !found {
		log.Debugf("No cached analysis result of configuration %d in iteration %d", index, iteration)
	}
	metrics.CacheLookup(entryAnalysisResult, found)
	return found
}

func (c *BadgerCache) CacheAnalysisResult(result any, iteration, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := jsonfile.Marshal(result)
	if err != nil {
		log.Warnf("Failed to encode analysis result of configuration %d in iteration %d: %v", index, iteration, err)
		return
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(analysisResultKey(iteration, index), data)
	}); err != nil {
		log.Warnf("Failed to save analysis result of configuration %d in iteration %d to cache: %v", index, iteration, err)
		return
	}
	log.Debugf("Analysis result of configuration %d in iteration %d saved to cache", index, iteration)
}

func (c *BadgerCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}
