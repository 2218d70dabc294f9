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

package orchestrator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/teradata-labs/kqlbridge/pkg/registry"
	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// Reply markers of the plain-text contract.
const (
	MarkerQuery       = "QUERY:"
	MarkerCreateTable = "CREATE_TABLE:"
	MarkerSchema      = "SCHEMA:"
)

// NotAllowedReply is the model's literal refusal under the JSON contract.
const NotAllowedReply = "not allowed"

// InvalidFormat is shown to the user when a reply breaks the contract.
const InvalidFormat = "invalid command format"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Command is the parsed form of a model reply. It is one of Rejected,
// QueryCommand, DDLCommand, StructuredAnswer or NotAllowed.
type Command interface {
	command()
}

// Rejected is a reply that does not follow the contract.
type Rejected struct {
	Err *ContractError
}

// QueryCommand asks for a KQL query to be run.
type QueryCommand struct {
	Query string
}

// DDLCommand asks for a table to be created.
type DDLCommand struct {
	Table   string
	Columns []registry.Column
}

// StructuredAnswer is an accepted JSON-contract reply.
type StructuredAnswer struct {
	Table   []resultset.Row
	Summary string
}

// NotAllowed is the model's refusal of a non-KQL question.
type NotAllowed struct{}

func (Rejected) command()         {}
func (QueryCommand) command()     {}
func (DDLCommand) command()       {}
func (StructuredAnswer) command() {}
func (NotAllowed) command()       {}

// Operation returns the tool operation of a dispatchable command, or nil.
func Operation(c Command) registry.Operation {
	switch cmd := c.(type) {
	case QueryCommand:
		return registry.RunQuery{Query: cmd.Query}
	case DDLCommand:
		return registry.CreateTable{Table: cmd.Table, Columns: cmd.Columns}
	default:
		return nil
	}
}

// ContractError explains why a reply was rejected.
type ContractError struct {
	Reason string
}

func (e *ContractError) Error() string {
	return InvalidFormat + ": " + e.Reason
}

func reject(format string, args ...interface{}) Rejected {
	return Rejected{Err: &ContractError{Reason: fmt.Sprintf(format, args...)}}
}

// ParseMarkerReply parses a plain-text contract reply. The first non-blank
// line must start with QUERY: or CREATE_TABLE:; a CREATE_TABLE: line needs
// a later SCHEMA: line. Anything else is Rejected.
func ParseMarkerReply(reply string) Command {
	lines := strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n")

	first := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			first = i
			break
		}
	}
	if first < 0 {
		return reject("empty reply")
	}
	head := strings.TrimSpace(lines[first])

	switch {
	case strings.HasPrefix(head, MarkerQuery):
		query := strings.TrimSpace(strings.TrimPrefix(head, MarkerQuery))
		if query == "" {
			return reject("%s has no query", MarkerQuery)
		}
		return QueryCommand{Query: query}

	case strings.HasPrefix(head, MarkerCreateTable):
		table := strings.TrimSpace(strings.TrimPrefix(head, MarkerCreateTable))
		if table == "" {
			return reject("%s has no table name", MarkerCreateTable)
		}
		if !tableName.MatchString(table) {
			return reject("invalid table name %q", table)
		}

		schema := ""
		for _, l := range lines[first+1:] {
			if l = strings.TrimSpace(l); strings.HasPrefix(l, MarkerSchema) {
				schema = strings.TrimSpace(strings.TrimPrefix(l, MarkerSchema))
				break
			}
		}
		if schema == "" {
			return reject("%s without %s", MarkerCreateTable, MarkerSchema)
		}
		columns, err := registry.ParseColumns(schema)
		if err != nil {
			return reject("%v", err)
		}
		return DDLCommand{Table: table, Columns: columns}

	default:
		return reject("reply does not start with %s or %s", MarkerQuery, MarkerCreateTable)
	}
}

// ParseJSONReply parses a JSON contract reply: either exactly "not allowed"
// or one object with exactly the keys "table" (array of objects with
// string values) and "summary" (string).
func ParseJSONReply(reply string) Command {
	trimmed := strings.TrimSpace(reply)
	if trimmed == NotAllowedReply {
		return NotAllowed{}
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var members map[string]json.RawMessage
	if err := dec.Decode(&members); err != nil {
		return reject("reply is not a JSON object: %v", err)
	}
	if members == nil {
		return reject("reply is not a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return reject("unexpected data after the JSON object")
	}
	if err := checkKeys(trimmed); err != nil {
		return reject("%v", err)
	}

	rawTable, rawSummary := bytes.TrimSpace(members["table"]), bytes.TrimSpace(members["summary"])
	if len(rawTable) == 0 || rawTable[0] != '[' {
		return reject(`"table" must be an array`)
	}
	if len(rawSummary) == 0 || rawSummary[0] != '"' {
		return reject(`"summary" must be a string`)
	}

	var table []resultset.Row
	if err := json.Unmarshal(rawTable, &table); err != nil {
		return reject(`"table": %v`, err)
	}
	var summary string
	if err := json.Unmarshal(rawSummary, &summary); err != nil {
		return reject(`"summary": %v`, err)
	}
	if table == nil {
		table = []resultset.Row{}
	}
	return StructuredAnswer{Table: table, Summary: summary}
}

// checkKeys requires the top-level keys to be exactly table and summary,
// each once.
func checkKeys(doc string) error {
	dec := json.NewDecoder(strings.NewReader(doc))
	if _, err := dec.Token(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		if key != "table" && key != "summary" {
			return fmt.Errorf("unexpected key %q", key)
		}
		if seen[key] {
			return fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
	}
	if len(seen) != 2 {
		return fmt.Errorf(`reply must have exactly the keys "table" and "summary"`)
	}
	return nil
}
