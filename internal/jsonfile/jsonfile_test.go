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

package jsonfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalKeepsOperators(t *testing.T) {
	data, err := Marshal(map[string]string{"condition": "&(a <b>)"})
	require.NoError(t, err)
	assert.Equal(t, `{"condition":"&(a <b>)"}`, string(data))
}

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	require.NoError(t, Write(path, map[string]int{"a": 1}))
	require.NoError(t, Write(path, map[string]int{"b": 2}))

	var got map[string]int
	require.NoError(t, Read(path, &got))
	assert.Equal(t, map[string]int{"b": 2}, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	var v any
	assert.ErrorIs(t, Read(filepath.Join(dir, "missing.json"), &v), os.ErrNotExist)

	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	assert.ErrorContains(t, Read(path, &v), "decoding")
}
