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

// Package server implements the serving side of the Model Context Protocol:
// a JSON-RPC dispatcher, the built-in lifecycle methods and the tools
// methods backed by a ToolProvider.
package server

import (
	"context"

	"github.com/teradata-labs/kqlbridge/pkg/mcp/protocol"
)

// ToolProvider supplies the tools served by an MCPServer.
type ToolProvider interface {
	// ListTools returns all available tools.
	ListTools(ctx context.Context) ([]protocol.Tool, error)

	// CallTool invokes a tool by name. An error is reported to the client
	// as an isError result.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error)
}
