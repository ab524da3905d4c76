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

package formula

import "encoding"

// Text adapts a Node to encoding.TextMarshaler so formulas can be embedded in
// JSON and YAML documents as grammar strings. A nil Node is encoded as the
// empty string and decoded back to nil.
type Text struct {
	Node Node
}

var (
	_ encoding.TextMarshaler   = Text{}
	_ encoding.TextUnmarshaler = (*Text)(nil)
)

func (t Text) MarshalText() ([]byte, error) {
	if t.Node == nil {
		return []byte{}, nil
	}
	return []byte(t.Node.String()), nil
}

func (t *Text) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		t.Node = nil
		return nil
	}
	node, err := Parse(string(data))
	if err != nil {
		return err
	}
	t.Node = node
	return nil
}
