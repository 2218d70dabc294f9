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
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDateTime
	KindDynamic
)

var kindNames = map[Kind]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindDateTime: "datetime",
	KindDynamic:  "dynamic",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value is a single cell of a ResultSet. The zero Value is null.
//
// Engine-native types collapse onto these variants. Anything the engine
// reports as structured (property bags, arrays) is carried as dynamic JSON.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
	raw  json.RawMessage
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// DateTime returns a datetime Value. The instant is kept in UTC.
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t.UTC()} }

// Dynamic returns an opaque structured Value from its JSON encoding.
// Empty input or the JSON literal null yields the null Value.
func Dynamic(raw []byte) Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Null()
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		// Not valid JSON: keep the engine's text as a JSON string.
		quoted, _ := json.Marshal(string(trimmed))
		return Value{kind: KindDynamic, raw: quoted}
	}
	return Value{kind: KindDynamic, raw: buf.Bytes()}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// String renders v in its canonical textual form. Text and JSON rendering
// both go through this method, so a cell always reads the same in either.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindDateTime:
		return v.t.Format(time.RFC3339Nano)
	case KindDynamic:
		return string(v.raw)
	default:
		return ""
	}
}

// Equal reports whether two Values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindDateTime:
		return v.t.Equal(o.t)
	case KindFloat:
		return v.f == o.f
	default:
		return v.String() == o.String()
	}
}
