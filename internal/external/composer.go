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

package external

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/EngFlow/variant_analysis/internal/conditiontree"
	"github.com/EngFlow/variant_analysis/internal/featuremodel"
	"github.com/EngFlow/variant_analysis/internal/jsonfile"
	"github.com/EngFlow/variant_analysis/internal/presence"
	"github.com/EngFlow/variant_analysis/internal/runner"
	"github.com/EngFlow/variant_analysis/internal/sample"
	"github.com/EngFlow/variant_analysis/internal/sourcemap"
)

const (
	// GenerationFile is written by composer commands into the destination.
	// It maps every generated file to a sourcemap.Generation.
	GenerationFile = "generation.json"
	// FileConditionsFile may be written by composer commands into the
	// destination to replace the configured file condition table.
	FileConditionsFile = "file_conditions.json"
	// FeaturesFile is written into the destination before the composer
	// command runs and holds the complete feature assignment.
	FeaturesFile = "features.json"
)

// Composer runs a composition command that generates a variant into a
// destination directory and describes it with GenerationFile.
//
// Placeholders: {source} is the source tree, {destination} the destination
// directory, {features} the comma-separated enabled features and
// {features_file} the path of FeaturesFile.
type Composer struct {
	command   Command
	sourceDir string
	files     *presence.FileConditionTable
}

var _ runner.Composer = (*Composer)(nil)

// NewComposer creates a composer for the tree in sourceDir. files provides the
// file presence conditions unless a composition writes its own; it may be
// nil.
func NewComposer(command Command, sourceDir string, files *presence.FileConditionTable) (*Composer, error) {
	if len(command.Args) == 0 {
		return nil, fmt.Errorf("composer: %w", ErrEmptyCommand)
	}
	return &Composer{command: command, sourceDir: sourceDir, files: files}, nil
}

func (c *Composer) Compose(ctx context.Context, features map[string]bool, destination string, model *featuremodel.FeatureModel) (*runner.Composition, error) {
	if model != nil {
		if err := model.Validate(features); err != nil {
			return nil, err
		}
	}
	featuresFile := filepath.Join(destination, FeaturesFile)
	if err := jsonfile.Write(featuresFile, features); err != nil {
		return nil, err
	}

	_, err := c.command.run(ctx, destination, map[string]string{
		"source":        c.sourceDir,
		"destination":   destination,
		"features":      strings.Join(sample.EnabledFeatures(features), ","),
		"features_file": featuresFile,
	})
	if err != nil {
		return nil, err
	}

	var generations map[string]sourcemap.Generation
	if err := jsonfile.Read(filepath.Join(destination, GenerationFile), &generations); err != nil {
		return nil, fmt.Errorf("composer did not describe its output: %w", err)
	}

	files := c.files
	if written, err := presence.ReadFileConditionTable(filepath.Join(destination, FileConditionsFile)); err == nil {
		files = written
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading file conditions of composition: %w", err)
	}

	lines := make(map[string]presence.LineConditions, len(generations))
	for generated, generation := range generations {
		tree, err := c.readTree(generation.Original)
		if err != nil {
			log.Warnf("No line presence conditions for %s: %v", generated, err)
			continue
		}
		lines[filepath.ToSlash(filepath.Clean(generated))] = tree
	}

	sourceMap := sourcemap.NewTreeMap(c.sourceDir, generations)
	return &runner.Composition{
		Root:      destination,
		Features:  features,
		SourceMap: sourceMap,
		Mapper:    presence.NewCombinedMapper(files, lines, sourceMap),
	}, nil
}

// readTree builds the condition tree of an original file. Each generated file
// gets its own tree.
func (c *Composer) readTree(original string) (*conditiontree.Tree, error) {
	f, err := os.Open(filepath.Join(c.sourceDir, filepath.FromSlash(original)))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return conditiontree.Read(f)
}
