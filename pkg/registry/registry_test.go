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

package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func args(fields map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"input": fields}
}

func TestNew_Names(t *testing.T) {
	r := New()
	assert.Equal(t, []string{OpRunQuery, OpCreateTable, OpIngestInline}, r.Names())

	tools := r.Tools()
	require.Len(t, tools, 3)
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, SpecVersion, tool.Meta["version"])
		require.NotNil(t, tool.Annotations)
	}
	assert.True(t, *tools[0].Annotations.ReadOnlyHint)
	assert.False(t, *tools[1].Annotations.IdempotentHint)
	assert.False(t, *tools[2].Annotations.IdempotentHint)
}

func TestDecode_Valid(t *testing.T) {
	r := New()

	tests := []struct {
		name string
		op   string
		args map[string]interface{}
		want Operation
	}{
		{
			name: "run query",
			op:   OpRunQuery,
			args: args(map[string]interface{}{"kql": "AppLogs | where Level == 'ERROR'"}),
			want: RunQuery{Query: "AppLogs | where Level == 'ERROR'"},
		},
		{
			name: "create table",
			op:   OpCreateTable,
			args: args(map[string]interface{}{"table": "Users", "schema_kql": "Id:int, Name:string"}),
			want: CreateTable{Table: "Users", Columns: []Column{{"Id", "int"}, {"Name", "string"}}},
		},
		{
			name: "ingest csv",
			op:   OpIngestInline,
			args: args(map[string]interface{}{"table": "AppLogs", "payload": "a,b\nc,d", "data_format": "csv"}),
			want: IngestInline{Table: "AppLogs", Payload: "a,b\nc,d", Format: FormatCSV},
		},
		{
			name: "ingest json",
			op:   OpIngestInline,
			args: args(map[string]interface{}{"table": "AppLogs", "payload": `{"a":1}`, "data_format": "json"}),
			want: IngestInline{Table: "AppLogs", Payload: `{"a":1}`, Format: FormatJSON},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := r.Decode(tt.op, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, op)
			assert.Equal(t, tt.op, op.OperationName())
		})
	}
}

func TestDecode_MissingFieldIsValidationError(t *testing.T) {
	r := New()

	for _, spec := range r.Specs() {
		for _, field := range spec.Fields {
			t.Run(spec.Name+"/"+field.Name, func(t *testing.T) {
				full := Arguments(sampleOperation(spec.Name))
				input := full["input"].(map[string]interface{})
				delete(input, field.Name)

				_, err := r.Decode(spec.Name, full)
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
				assert.Equal(t, spec.Name, verr.Operation)
				assert.Contains(t, verr.Error(), field.Name)
			})
		}
	}
}

func TestDecode_Invalid(t *testing.T) {
	r := New()

	tests := []struct {
		name string
		op   string
		args map[string]interface{}
	}{
		{"unknown operation", "adx_drop_database", args(map[string]interface{}{})},
		{"no arguments", OpRunQuery, nil},
		{"missing input wrapper", OpRunQuery, map[string]interface{}{"kql": "T"}},
		{"extra field", OpRunQuery, args(map[string]interface{}{"kql": "T", "database": "other"})},
		{"extra top-level member", OpRunQuery, map[string]interface{}{"input": map[string]interface{}{"kql": "T"}, "x": 1}},
		{"wrong type", OpRunQuery, args(map[string]interface{}{"kql": 42})},
		{"empty query", OpRunQuery, args(map[string]interface{}{"kql": ""})},
		{"bad format", OpIngestInline, args(map[string]interface{}{"table": "T", "payload": "x", "data_format": "parquet"})},
		{"table with command injection", OpIngestInline, args(map[string]interface{}{"table": "T <| x", "payload": "x", "data_format": "csv"})},
		{"schema without type", OpCreateTable, args(map[string]interface{}{"table": "T", "schema_kql": "Id, Name:string"})},
		{"schema unknown type", OpCreateTable, args(map[string]interface{}{"table": "T", "schema_kql": "Id:integer"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := r.Decode(tt.op, tt.args)
			assert.Nil(t, op)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
		})
	}
}

func TestArguments_RoundTrip(t *testing.T) {
	r := New()
	for _, name := range r.Names() {
		op := sampleOperation(name)

		// Arguments travel as JSON between orchestrator and server.
		data, err := json.Marshal(Arguments(op))
		require.NoError(t, err)
		var wire map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &wire))

		decoded, err := r.Decode(name, wire)
		require.NoError(t, err)
		assert.Equal(t, op, decoded)
	}
}

func TestSpec_FailureText(t *testing.T) {
	r := New()
	tests := map[string]string{
		OpRunQuery:     "ADX error: boom",
		OpCreateTable:  "Create failed: boom",
		OpIngestInline: "Ingest failed: boom",
	}
	for name, want := range tests {
		spec, ok := r.Lookup(name)
		require.True(t, ok)
		assert.Equal(t, want, spec.FailureText("boom"))
	}
}

func TestParseColumns(t *testing.T) {
	cols, err := ParseColumns(" Timestamp : datetime ,Level:STRING, Props:dynamic ")
	require.NoError(t, err)
	assert.Equal(t, []Column{{"Timestamp", "datetime"}, {"Level", "string"}, {"Props", "dynamic"}}, cols)
	assert.Equal(t, "Timestamp:datetime, Level:string, Props:dynamic", FormatColumns(cols))

	for _, bad := range []string{"", "  ", "Id:int,", "Id:int, Id:long", "1d:int", "Id:"} {
		_, err := ParseColumns(bad)
		assert.Error(t, err, "schema %q", bad)
	}
}

func sampleOperation(name string) Operation {
	switch name {
	case OpRunQuery:
		return RunQuery{Query: "AppLogs | take 5"}
	case OpCreateTable:
		return CreateTable{Table: "Users", Columns: []Column{{"Id", "int"}, {"Name", "string"}}}
	default:
		return IngestInline{Table: "Users", Payload: "1,alice", Format: FormatCSV}
	}
}
