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

	"github.com/EngFlow/variant_analysis/internal/analysis"
	"github.com/EngFlow/variant_analysis/internal/featuremodel"
	"github.com/EngFlow/variant_analysis/internal/presence"
	"github.com/EngFlow/variant_analysis/internal/sourcemap"
)

type (
	// Composition describes a generated variant: where it was written and how
	// its locations relate to the original source tree.
	Composition struct {
		// Root is the directory holding the generated variant.
		Root string
		// Features is the configuration the variant was generated for.
		Features  map[string]bool
		SourceMap sourcemap.SourceMap
		Mapper    presence.Mapper
	}

	// Composer generates the variant of one configuration into destination.
	Composer interface {
		Compose(ctx context.Context, features map[string]bool, destination string, model *featuremodel.FeatureModel) (*Composition, error)
	}

	// Analyzer analyzes a generated variant and reports its findings in
	// generated coordinates, relative to the composition root.
	Analyzer interface {
		Analyze(ctx context.Context, composition *Composition) ([]analysis.RawFinding, error)
	}
)
