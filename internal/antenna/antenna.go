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

// Package antenna composes variants of source trees annotated with //#
// directives. Lines of disabled branches are commented out with "//@" instead
// of being removed, so every generated file keeps the paths and line numbers
// of its original.
package antenna

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/EngFlow/variant_analysis/internal/conditiontree"
	"github.com/EngFlow/variant_analysis/internal/directive/lexer"
	"github.com/EngFlow/variant_analysis/internal/featuremodel"
	"github.com/EngFlow/variant_analysis/internal/formula"
	"github.com/EngFlow/variant_analysis/internal/presence"
	"github.com/EngFlow/variant_analysis/internal/runner"
	"github.com/EngFlow/variant_analysis/internal/sourcemap"
)

// DisabledPrefix marks a line that is not part of the variant.
const DisabledPrefix = "//@"

// DefaultInclude selects the files composed when no patterns are given.
var DefaultInclude = []string{"**/*.java"}

// Composer generates variants of the source tree below sourceDir. Only files
// matching one of the include patterns are part of a variant.
type Composer struct {
	sourceDir string
	include   []string
}

var _ runner.Composer = (*Composer)(nil)

func NewComposer(sourceDir string, include []string) (*Composer, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}
	return &Composer{sourceDir: sourceDir, include: include}, nil
}

func (c *Composer) included(rel string) bool {
	for _, pattern := range c.include {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return true
		}
	}
	return false
}

// Compose writes the variant of features to destination. Files whose
// directives cannot be interpreted are copied unchanged and have unknown
// presence conditions.
func (c *Composer) Compose(ctx context.Context, features map[string]bool, destination string, model *featuremodel.FeatureModel) (*runner.Composition, error) {
	if model != nil {
		if err := model.Validate(features); err != nil {
			return nil, err
		}
	}

	lines := make(map[string]presence.LineConditions)
	err := fs.WalkDir(os.DirFS(c.sourceDir), ".", func(rel string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.Type().IsRegular() || !c.included(rel) {
			return nil
		}
		tree, err := c.composeFile(rel, features, destination)
		if err != nil {
			return err
		}
		if tree != nil {
			lines[rel] = tree
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("composing %s: %w", c.sourceDir, err)
	}

	log.Debugf("Composed %d files with known line conditions into %s", len(lines), destination)
	return &runner.Composition{
		Root:      destination,
		Features:  features,
		SourceMap: sourcemap.Identity{},
		Mapper:    presence.NewTreeMapper(lines),
	}, nil
}

// composeFile writes the variant of one file and returns its condition tree,
// or nil if the file's directives are invalid.
func (c *Composer) composeFile(rel string, features map[string]bool, destination string) (*conditiontree.Tree, error) {
	f, err := os.Open(filepath.Join(c.sourceDir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	original, err := conditiontree.ReadLines(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}

	output := original
	tree, err := conditiontree.New(original)
	if err != nil {
		log.Warnf("Skipping directives of %s: %v", rel, err)
		tree = nil
	} else if output, err = Preprocess(original, tree, features); err != nil {
		return nil, fmt.Errorf("preprocessing %s: %w", rel, err)
	}

	target := filepath.Join(destination, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, line := range output {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(target, []byte(sb.String()), 0o644); err != nil {
		return nil, err
	}
	return tree, nil
}

// Preprocess returns the lines of the variant of features. Directive lines are
// kept. Other lines are enabled or disabled by their condition in tree: a
// disabled line gains DisabledPrefix, an enabled line loses it.
func Preprocess(lines []string, tree *conditiontree.Tree, features map[string]bool) ([]string, error) {
	result := make([]string, len(lines))
	for i, line := range lines {
		if lexer.IsDirectiveLine(line) {
			result[i] = line
			continue
		}
		condition, err := tree.ConditionOfLine(i + 1)
		if err != nil {
			return nil, err
		}
		if formula.Eval(condition, features) {
			result[i] = enable(line)
		} else {
			result[i] = disable(line)
		}
	}
	return result, nil
}

func enable(line string) string {
	body := strings.TrimLeft(line, "\t ")
	if !strings.HasPrefix(body, DisabledPrefix) {
		return line
	}
	return line[:len(line)-len(body)] + strings.TrimPrefix(body, DisabledPrefix)
}

func disable(line string) string {
	body := strings.TrimLeft(line, "\t ")
	if strings.HasPrefix(body, DisabledPrefix) {
		return line
	}
	return line[:len(line)-len(body)] + DisabledPrefix + body
}
