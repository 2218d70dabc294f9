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
	"github.com/MakeNowJust/heredoc"

	"github.com/teradata-labs/kqlbridge/pkg/mcp/protocol"
)

// Failure prefixes of engine errors, per operation.
const (
	QueryFailurePrefix  = "ADX error:"
	CreateFailurePrefix = "Create failed:"
	IngestFailurePrefix = "Ingest failed:"
)

func boolP(b bool) *bool { return &b }

// readOnly marks tools that only read data.
func readOnly(title string) *protocol.ToolAnnotations {
	return &protocol.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    boolP(true),
		DestructiveHint: boolP(false),
		IdempotentHint:  boolP(true),
		OpenWorldHint:   boolP(true),
	}
}

// mutating marks tools that change engine state. Repeating them repeats the effect.
func mutating(title string) *protocol.ToolAnnotations {
	return &protocol.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    boolP(false),
		DestructiveHint: boolP(false),
		IdempotentHint:  boolP(false),
		OpenWorldHint:   boolP(true),
	}
}

func runQuerySpec() Spec {
	return Spec{
		Name:    OpRunQuery,
		Version: SpecVersion,
		Title:   "Run KQL query",
		Description: heredoc.Doc(`
			Run a KQL query against the configured database and return the primary
			result as a compact text table: a header line, then one line per row,
			cells separated by " | ". An empty result is reported as "(no rows)".
		`),
		Fields: []Field{
			{Name: "kql", Type: "string", Description: "KQL query to run against the database", MinLength: 1},
		},
		FailurePrefix: QueryFailurePrefix,
		Annotations:   readOnly("Run KQL query"),
		decode: func(f map[string]string) (Operation, error) {
			return RunQuery{Query: f["kql"]}, nil
		},
	}
}

func createTableSpec() Spec {
	return Spec{
		Name:    OpCreateTable,
		Version: SpecVersion,
		Title:   "Create table",
		Description: heredoc.Doc(`
			Create a table using Kusto column syntax.
			Example: schema_kql='Timestamp:datetime, Level:string, Message:string, Service:string'
		`),
		Fields: []Field{
			{Name: "table", Type: "string", Description: "Table name", Pattern: identifierPattern},
			{Name: "schema_kql", Type: "string", Description: "Columns in Kusto syntax, e.g. 'Timestamp:datetime, Level:string'", MinLength: 1},
		},
		FailurePrefix: CreateFailurePrefix,
		Annotations:   mutating("Create table"),
		decode: func(f map[string]string) (Operation, error) {
			columns, err := ParseColumns(f["schema_kql"])
			if err != nil {
				return nil, err
			}
			return CreateTable{Table: f["table"], Columns: columns}, nil
		},
	}
}

func ingestInlineSpec() Spec {
	return Spec{
		Name:    OpIngestInline,
		Version: SpecVersion,
		Title:   "Ingest inline data",
		Description: heredoc.Doc(`
			Ingest small amounts of data directly into an existing table.
			For csv, provide rows without a header, e.g.:
			'2025-09-04T10:00:00Z,INFO,Hello,AuthService,vm01,user1'
		`),
		Fields: []Field{
			{Name: "table", Type: "string", Description: "Target table", Pattern: identifierPattern},
			{Name: "payload", Type: "string", Description: "Inline data rows", MinLength: 1},
			{Name: "data_format", Type: "string", Description: "Payload format: 'csv' or 'json'", Enum: []string{string(FormatCSV), string(FormatJSON)}},
		},
		FailurePrefix: IngestFailurePrefix,
		Annotations:   mutating("Ingest inline data"),
		decode: func(f map[string]string) (Operation, error) {
			return IngestInline{Table: f["table"], Payload: f["payload"], Format: Format(f["data_format"])}, nil
		},
	}
}
