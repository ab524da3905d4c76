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

package sample

import (
	"context"
	"errors"
	"fmt"

	"github.com/EngFlow/variant_analysis/internal/featuremodel"
)

type (
	// Sampler selects the configurations analyzed in one iteration.
	Sampler interface {
		Sample(ctx context.Context, iteration int) ([]map[string]bool, error)
	}

	// Fixed returns the same user-specified configurations in every
	// iteration. Each configuration lists its enabled features; all other
	// features of the model are disabled.
	Fixed struct {
		model   *featuremodel.FeatureModel
		enabled [][]string
	}
)

var ErrEmptySample = errors.New("sample contains no configurations")

var _ Sampler = (*Fixed)(nil)

func NewFixed(model *featuremodel.FeatureModel, enabled [][]string) (*Fixed, error) {
	if len(enabled) == 0 {
		return nil, ErrEmptySample
	}
	return &Fixed{model: model, enabled: enabled}, nil
}

func (f *Fixed) Sample(ctx context.Context, _ int) ([]map[string]bool, error) {
	result := make([]map[string]bool, 0, len(f.enabled))
	for i, features := range f.enabled {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		assignment, err := f.model.Complete(features)
		if err != nil {
			return nil, fmt.Errorf("configuration %d: %w", i, err)
		}
		result = append(result, assignment)
	}
	return result, nil
}
