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

// Package bridge exposes the engine operations as MCP tools.
//
// A call is decoded by the registry, run by the executor and rendered as
// text. Engine failures come back as ordinary tool output carrying the
// operation's failure prefix ("ADX error: ...") so a client always gets a
// readable answer; only malformed requests are flagged with isError.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/pkg/executor"
	"github.com/teradata-labs/kqlbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/kqlbridge/pkg/registry"
	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// Executor runs decoded operations. *executor.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, op registry.Operation) (*resultset.ResultSet, error)
}

// Structured content keys.
const (
	KeyColumns = "columns"
	KeyRows    = "rows"
	KeyMessage = "message"
	KeyError   = "error"
)

// Bridge implements server.ToolProvider. It keeps no state between calls.
type Bridge struct {
	registry *registry.Registry
	executor Executor
	logger   *zap.Logger
	tools    []protocol.Tool
}

// New creates a Bridge over the given registry and executor.
func New(reg *registry.Registry, exec Executor, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		registry: reg,
		executor: exec,
		logger:   logger,
		tools:    reg.Tools(),
	}
}

// ListTools implements server.ToolProvider.
func (b *Bridge) ListTools(_ context.Context) ([]protocol.Tool, error) {
	return b.tools, nil
}

// CallTool implements server.ToolProvider. A returned error means the
// request did not match the operation's input shape.
func (b *Bridge) CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
	op, err := b.registry.Decode(name, args)
	if err != nil {
		b.logger.Info("rejected tool call", zap.String("tool", name), zap.Error(err))
		return nil, err
	}
	spec, _ := b.registry.Lookup(name)

	start := time.Now()
	rs, err := b.executor.Execute(ctx, op)
	if err != nil {
		var be *executor.BridgeError
		if !errors.As(err, &be) {
			be = &executor.BridgeError{Kind: executor.KindQueryFailed, Message: err.Error(), Err: err}
		}
		b.logger.Warn("operation failed",
			zap.String("tool", name),
			zap.String("kind", string(be.Kind)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return failureResult(spec, be), nil
	}

	b.logger.Debug("operation completed",
		zap.String("tool", name),
		zap.Int("rows", len(rs.Rows)),
		zap.Duration("duration", time.Since(start)),
	)
	return successResult(op, rs), nil
}

func successResult(op registry.Operation, rs *resultset.ResultSet) *protocol.CallToolResult {
	structured := map[string]interface{}{
		KeyColumns: rs.Columns,
		KeyRows:    resultset.Rows(rs),
	}
	if msg := acknowledgment(op); msg != "" {
		structured[KeyMessage] = msg
	}
	return &protocol.CallToolResult{
		Content:           protocol.TextContent(resultset.RenderText(rs)),
		StructuredContent: structured,
	}
}

func failureResult(spec registry.Spec, be *executor.BridgeError) *protocol.CallToolResult {
	return &protocol.CallToolResult{
		Content: protocol.TextContent(spec.FailureText(be.Message)),
		StructuredContent: map[string]interface{}{
			KeyError: map[string]interface{}{
				"kind":    string(be.Kind),
				"message": be.Message,
			},
		},
	}
}

// acknowledgment is the human-readable confirmation of a state change.
func acknowledgment(op registry.Operation) string {
	switch o := op.(type) {
	case registry.CreateTable:
		return fmt.Sprintf("Table '%s' created.", o.Table)
	case registry.IngestInline:
		return "Ingest submitted."
	default:
		return ""
	}
}
