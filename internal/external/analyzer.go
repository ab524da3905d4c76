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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"

	"github.com/bazelbuild/bazel-gazelle/pathtools"

	"github.com/EngFlow/variant_analysis/internal/analysis"
	"github.com/EngFlow/variant_analysis/internal/runner"
)

// Analyzer runs an analysis command in the root of each variant. The command
// prints a JSON array of findings to stdout:
//
//	[{"name": "...", "title": "...", "evidence": [{"file": "...", "line": 1}]}]
//
// Evidence paths are relative to the variant root; absolute paths below the
// root are accepted too.
//
// Placeholders: {root} is the variant root.
type Analyzer struct {
	command Command
}

var _ runner.Analyzer = (*Analyzer)(nil)

func NewAnalyzer(command Command) (*Analyzer, error) {
	if len(command.Args) == 0 {
		return nil, fmt.Errorf("analyzer: %w", ErrEmptyCommand)
	}
	return &Analyzer{command: command}, nil
}

func (a *Analyzer) Analyze(ctx context.Context, composition *runner.Composition) ([]analysis.RawFinding, error) {
	stdout, err := a.command.run(ctx, composition.Root, map[string]string{"root": composition.Root})
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(stdout)) == 0 {
		return nil, nil
	}

	var findings []analysis.RawFinding
	if err := json.Unmarshal(stdout, &findings); err != nil {
		return nil, fmt.Errorf("parsing analyzer output: %w", err)
	}
	root := path.Clean(filepath.ToSlash(composition.Root))
	for i := range findings {
		for j, evidence := range findings[i].Evidence {
			findings[i].Evidence[j].File = relativeTo(root, evidence.File)
		}
	}
	return findings, nil
}

func relativeTo(root, file string) string {
	file = path.Clean(filepath.ToSlash(file))
	if path.IsAbs(file) && pathtools.HasPrefix(file, root) {
		return pathtools.TrimPrefix(file, root)
	}
	return file
}
