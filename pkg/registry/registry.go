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

// Package registry declares the operations the bridge exposes as tools:
// their names, input shapes, failure prefixes and behavior hints. It turns
// raw tool arguments into typed Operations and back.
//
// Every operation takes its fields wrapped in an "input" object:
//
//	{"input": {"kql": "AppLogs | take 10"}}
package registry

import (
	"fmt"
	"strings"

	"github.com/teradata-labs/kqlbridge/pkg/mcp/protocol"
)

// SpecVersion is the version of every operation shape declared here.
const SpecVersion = "1"

// inputKey wraps operation fields in tool arguments.
const inputKey = "input"

// Field is one member of an operation's input shape.
type Field struct {
	Name        string
	Type        string // JSON Schema primitive type
	Description string
	Enum        []string
	Pattern     string
	MinLength   int
}

// Spec describes one operation.
type Spec struct {
	Name          string
	Version       string
	Title         string
	Description   string
	Fields        []Field
	FailurePrefix string
	Annotations   *protocol.ToolAnnotations

	decode func(fields map[string]string) (Operation, error)
}

// InputSchema returns the JSON Schema of the operation's arguments. Every
// field is required and unknown members are rejected at both levels.
func (s Spec) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		p := map[string]interface{}{
			"type":        f.Type,
			"description": f.Description,
		}
		if len(f.Enum) > 0 {
			p["enum"] = f.Enum
		}
		if f.Pattern != "" {
			p["pattern"] = f.Pattern
		}
		if f.MinLength > 0 {
			p["minLength"] = f.MinLength
		}
		properties[f.Name] = p
		required = append(required, f.Name)
	}

	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			inputKey: map[string]interface{}{
				"type":                 "object",
				"properties":           properties,
				"required":             required,
				"additionalProperties": false,
			},
		},
		"required":             []string{inputKey},
		"additionalProperties": false,
	}
}

// Tool returns the MCP tool definition of the operation.
func (s Spec) Tool() protocol.Tool {
	return protocol.Tool{
		Name:        s.Name,
		Description: s.Description,
		InputSchema: s.InputSchema(),
		Annotations: s.Annotations,
		Meta:        map[string]interface{}{"version": s.Version},
	}
}

// FailureText formats an engine failure message the way the tool reports it.
func (s Spec) FailureText(message string) string {
	return s.FailurePrefix + " " + message
}

// Registry is an ordered, immutable set of operation specs.
type Registry struct {
	specs  []Spec
	byName map[string]int
}

// New returns the registry of the three engine operations.
func New() *Registry {
	return newRegistry(runQuerySpec(), createTableSpec(), ingestInlineSpec())
}

func newRegistry(specs ...Spec) *Registry {
	r := &Registry{specs: specs, byName: make(map[string]int, len(specs))}
	for i, s := range specs {
		r.byName[s.Name] = i
	}
	return r
}

// Names returns the operation names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.Name
	}
	return names
}

// Specs returns a copy of the registered specs.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Lookup finds a spec by operation name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

// Tools returns the MCP tool definitions in registration order.
func (r *Registry) Tools() []protocol.Tool {
	tools := make([]protocol.Tool, len(r.specs))
	for i, s := range r.specs {
		tools[i] = s.Tool()
	}
	return tools
}

// Decode validates tool arguments against the operation's input shape and
// builds the typed Operation. Any mismatch is a *ValidationError.
func (r *Registry) Decode(name string, args map[string]interface{}) (Operation, error) {
	spec, ok := r.Lookup(name)
	if !ok {
		return nil, &ValidationError{
			Operation: name,
			Problems:  []string{fmt.Sprintf("unknown operation (available: %s)", strings.Join(r.Names(), ", "))},
		}
	}

	violations, err := protocol.SchemaErrors(spec.InputSchema(), args)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Operation: name, Problems: violations}
	}

	// The schema guarantees an object of string members.
	input, _ := args[inputKey].(map[string]interface{})
	fields := make(map[string]string, len(input))
	for k, v := range input {
		fields[k], _ = v.(string)
	}

	op, err := spec.decode(fields)
	if err != nil {
		return nil, &ValidationError{Operation: name, Problems: []string{err.Error()}}
	}
	return op, nil
}

// Arguments encodes an Operation as tool arguments accepted by Decode.
func Arguments(op Operation) map[string]interface{} {
	var fields map[string]interface{}
	switch o := op.(type) {
	case RunQuery:
		fields = map[string]interface{}{"kql": o.Query}
	case CreateTable:
		fields = map[string]interface{}{
			"table":      o.Table,
			"schema_kql": FormatColumns(o.Columns),
		}
	case IngestInline:
		fields = map[string]interface{}{
			"table":       o.Table,
			"payload":     o.Payload,
			"data_format": string(o.Format),
		}
	default:
		fields = map[string]interface{}{}
	}
	return map[string]interface{}{inputKey: fields}
}

// ValidationError reports a request whose arguments do not match the
// operation's declared input shape. Such requests never reach the engine.
type ValidationError struct {
	Operation string
	Problems  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request for %s: %s", e.Operation, strings.Join(e.Problems, "; "))
}
