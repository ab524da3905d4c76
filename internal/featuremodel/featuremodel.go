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

// Package featuremodel describes the configuration space of a product line:
// its features and the constraints every valid configuration satisfies.
package featuremodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/EngFlow/variant_analysis/internal/collections"
	"github.com/EngFlow/variant_analysis/internal/formula"
	"github.com/EngFlow/variant_analysis/internal/jsonfile"
)

type (
	Feature struct {
		Name string `json:"name"`
		// Abstract features only structure the model and never appear in
		// source code.
		Abstract bool `json:"abstract,omitempty"`
	}

	FeatureModel struct {
		Name        string         `json:"name"`
		Features    []Feature      `json:"features"`
		Constraints []formula.Text `json:"constraints,omitempty"`
	}
)

var (
	ErrUnknownFeature      = errors.New("feature does not exist in the feature model")
	ErrConstraintViolation = errors.New("configuration violates a constraint")
)

// FeatureNames returns the names of all features, sorted.
func (fm *FeatureModel) FeatureNames() []string {
	names := collections.MapSlice(fm.Features, func(f Feature) string { return f.Name })
	slices.Sort(names)
	return names
}

// Has reports whether the model declares the named feature.
func (fm *FeatureModel) Has(name string) bool {
	return slices.ContainsFunc(fm.Features, func(f Feature) bool { return f.Name == name })
}

// Complete builds a full assignment from the enabled feature names: every
// other feature is disabled. The result must satisfy all constraints.
func (fm *FeatureModel) Complete(enabled []string) (map[string]bool, error) {
	assignment := make(map[string]bool, len(fm.Features))
	for _, feature := range fm.Features {
		assignment[feature.Name] = false
	}
	for _, name := range enabled {
		if _, ok := assignment[name]; !ok {
			return nil, fmt.Errorf("%q: %w", name, ErrUnknownFeature)
		}
		assignment[name] = true
	}
	if err := fm.Validate(assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// Validate checks that assignment only names known features and satisfies
// every constraint.
func (fm *FeatureModel) Validate(assignment map[string]bool) error {
	for _, name := range collections.SortedKeys(assignment) {
		if !fm.Has(name) {
			return fmt.Errorf("%q: %w", name, ErrUnknownFeature)
		}
	}
	for _, constraint := range fm.Constraints {
		if constraint.Node != nil && !formula.Eval(constraint.Node, assignment) {
			return fmt.Errorf("%v: %w", constraint.Node, ErrConstraintViolation)
		}
	}
	return nil
}

// Encode writes the model as xz-compressed JSON.
func (fm *FeatureModel) Encode(w io.Writer) error {
	xzw, err := xz.NewWriter(w)
	if err != nil {
		return err
	}
	if err := jsonfile.Encode(xzw, fm, ""); err != nil {
		xzw.Close()
		return err
	}
	return xzw.Close()
}

// Decode reads a model written by Encode.
func Decode(r io.Reader) (*FeatureModel, error) {
	xzr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	var fm FeatureModel
	if err := json.NewDecoder(xzr).Decode(&fm); err != nil {
		return nil, err
	}
	return &fm, nil
}

// ReadFile loads a model from a plain JSON file or, if the name ends in
// ".xz", from a file written by Encode.
func ReadFile(path string) (*FeatureModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".xz") {
		return Decode(f)
	}
	var fm FeatureModel
	if err := json.NewDecoder(f).Decode(&fm); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &fm, nil
}
