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
	"fmt"
	"regexp"
	"strings"
)

// Operation names as they appear on the wire.
const (
	OpRunQuery     = "adx_query"
	OpCreateTable  = "adx_create_table"
	OpIngestInline = "adx_ingest_inline"
)

// Operation is a decoded request for one of the registered operations.
// The set of implementations is closed.
type Operation interface {
	OperationName() string
	operation()
}

// RunQuery runs a KQL query. The query text is opaque to the bridge.
type RunQuery struct {
	Query string
}

// CreateTable creates a table with the given columns, in order.
type CreateTable struct {
	Table   string
	Columns []Column
}

// Column is one column of a CreateTable request.
type Column struct {
	Name string
	Type string
}

// Format is the payload format of an inline ingestion.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// IngestInline ingests a literal payload into an existing table.
type IngestInline struct {
	Table   string
	Payload string
	Format  Format
}

func (RunQuery) OperationName() string     { return OpRunQuery }
func (CreateTable) OperationName() string  { return OpCreateTable }
func (IngestInline) OperationName() string { return OpIngestInline }

func (RunQuery) operation()     {}
func (CreateTable) operation()  {}
func (IngestInline) operation() {}

// identifierPattern matches plain Kusto entity names.
const identifierPattern = `^[A-Za-z_][A-Za-z0-9_]*$`

var identifierRE = regexp.MustCompile(identifierPattern)

// scalarTypes are the Kusto column types accepted in a schema, including
// their documented aliases.
var scalarTypes = map[string]struct{}{
	"bool": {}, "boolean": {},
	"int": {}, "long": {},
	"real": {}, "double": {},
	"decimal":  {},
	"string":   {},
	"datetime": {}, "date": {},
	"timespan": {}, "time": {},
	"guid": {}, "uniqueid": {},
	"dynamic": {},
}

// ParseColumns parses a column list in Kusto syntax such as
// "Timestamp:datetime, Level:string".
func ParseColumns(schema string) ([]Column, error) {
	if strings.TrimSpace(schema) == "" {
		return nil, fmt.Errorf("schema is empty")
	}

	var columns []Column
	seen := make(map[string]struct{})
	for i, entry := range strings.Split(schema, ",") {
		name, typ, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		typ = strings.ToLower(strings.TrimSpace(typ))
		if !ok || name == "" || typ == "" {
			return nil, fmt.Errorf("column %d: expected name:type, got %q", i+1, strings.TrimSpace(entry))
		}
		if !identifierRE.MatchString(name) {
			return nil, fmt.Errorf("column %d: invalid column name %q", i+1, name)
		}
		if _, known := scalarTypes[typ]; !known {
			return nil, fmt.Errorf("column %q: unknown type %q", name, typ)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("column %q declared twice", name)
		}
		seen[name] = struct{}{}
		columns = append(columns, Column{Name: name, Type: typ})
	}
	return columns, nil
}

// FormatColumns renders columns back into Kusto column syntax.
func FormatColumns(columns []Column) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c.Name + ":" + c.Type
	}
	return strings.Join(parts, ", ")
}
