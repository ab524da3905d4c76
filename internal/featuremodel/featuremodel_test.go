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

package featuremodel

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EngFlow/variant_analysis/internal/formula"
)

func testModel() *FeatureModel {
	return &FeatureModel{
		Name:     "kernel",
		Features: []Feature{{Name: "Root", Abstract: true}, {Name: "NET"}, {Name: "WIFI"}, {Name: "USB"}},
		Constraints: []formula.Text{
			{Node: formula.NewOr(formula.NewNot(formula.Var("WIFI")), formula.Var("NET"))},
		},
	}
}

func TestComplete(t *testing.T) {
	fm := testModel()
	assignment, err := fm.Complete([]string{"NET", "WIFI"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Root": false, "NET": true, "WIFI": true, "USB": false}, assignment)

	_, err = fm.Complete([]string{"WIFI"})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	_, err = fm.Complete([]string{"BLUETOOTH"})
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestValidate(t *testing.T) {
	fm := testModel()
	assert.NoError(t, fm.Validate(map[string]bool{"USB": true}))
	assert.ErrorIs(t, fm.Validate(map[string]bool{"usb": true}), ErrUnknownFeature)
	assert.ErrorIs(t, fm.Validate(map[string]bool{"WIFI": true}), ErrConstraintViolation)
}

func TestFeatureNames(t *testing.T) {
	assert.Equal(t, []string{"NET", "Root", "USB", "WIFI"}, testModel().FeatureNames())
	assert.True(t, testModel().Has("USB"))
	assert.False(t, testModel().Has("usb"))
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, testModel().Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, testModel().FeatureNames(), decoded.FeatureNames())
	require.Len(t, decoded.Constraints, 1)
	assert.True(t, formula.Equal(testModel().Constraints[0].Node, decoded.Constraints[0].Node))

	_, err = Decode(bytes.NewReader([]byte("not xz")))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(plain, []byte(`{"name": "m", "features": [{"name": "A"}], "constraints": ["A"]}`), 0o644))

	fm, err := ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, "m", fm.Name)
	assert.ErrorIs(t, fm.Validate(map[string]bool{"A": false}), ErrConstraintViolation)

	compressed := filepath.Join(dir, "model.json.xz")
	f, err := os.Create(compressed)
	require.NoError(t, err)
	require.NoError(t, fm.Encode(f))
	require.NoError(t, f.Close())

	fromXZ, err := ReadFile(compressed)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, fromXZ.FeatureNames())
}
