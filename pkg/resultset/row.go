// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resultset

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one column/value pair of a rendered row.
type Field struct {
	Name  string
	Value string
}

// Row is a rendered row object. Fields keep column order, which a plain
// map would lose when encoded.
type Row []Field

// Get returns the value stored under name.
func (r Row) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Names returns the field names in order.
func (r Row) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Values returns the field values in order.
func (r Row) Values() []string {
	values := make([]string, len(r))
	for i, f := range r {
		values[i] = f.Value
	}
	return values
}

// MarshalJSON encodes the row as a JSON object with keys in field order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object whose values are all strings,
// keeping key order. Non-string values and duplicate keys are errors.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("row: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row: expected object, got %v", tok)
	}

	row := Row{}
	seen := make(map[string]struct{})
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("row: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("row: expected key, got %v", keyTok)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("row: duplicate key %q", key)
		}
		seen[key] = struct{}{}

		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("row: %w", err)
		}
		val, ok := valTok.(string)
		if !ok {
			return fmt.Errorf("row: value of %q must be a string", key)
		}
		row = append(row, Field{Name: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("row: %w", err)
	}
	*r = row
	return nil
}
