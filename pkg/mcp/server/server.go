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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/kqlbridge/pkg/mcp/transport"
)

// MethodHandler processes one JSON-RPC method call. params is the raw
// params member of the request.
type MethodHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// MCPServer dispatches JSON-RPC messages to registered method handlers.
// HandleMessage is safe for concurrent use.
type MCPServer struct {
	info         protocol.Implementation
	capabilities protocol.ServerCapabilities
	instructions string
	handlers     map[string]MethodHandler
	logger       *zap.Logger

	mu         sync.RWMutex
	clientInfo *protocol.Implementation
}

// Option configures an MCPServer.
type Option func(*MCPServer)

// WithToolProvider registers tools/list and tools/call backed by p.
func WithToolProvider(p ToolProvider) Option {
	return func(s *MCPServer) {
		s.capabilities.Tools = &protocol.ToolsCapability{}
		s.RegisterHandler(protocol.MethodToolsList, newToolsListHandler(p))
		s.RegisterHandler(protocol.MethodToolsCall, newToolsCallHandler(p))
	}
}

// WithInstructions sets the usage hint returned from initialize.
func WithInstructions(text string) Option {
	return func(s *MCPServer) {
		s.instructions = text
	}
}

// NewMCPServer creates a server with the given identity.
func NewMCPServer(name, version string, logger *zap.Logger, opts ...Option) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &MCPServer{
		info:     protocol.Implementation{Name: name, Version: version},
		handlers: make(map[string]MethodHandler),
		logger:   logger,
	}

	s.RegisterHandler(protocol.MethodInitialize, s.handleInitialize)
	s.RegisterHandler(protocol.MethodInitialized, s.handleInitialized)
	s.RegisterHandler(protocol.MethodPing, s.handlePing)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHandler registers (or replaces) the handler of a method.
func (s *MCPServer) RegisterHandler(method string, handler MethodHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// HandleMessage processes one JSON-RPC message and returns the encoded
// response, or nil for notifications.
func (s *MCPServer) HandleMessage(ctx context.Context, msg []byte) ([]byte, error) {
	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return marshalResponse(nil, nil, protocol.NewError(protocol.ParseError, "invalid JSON", nil))
	}
	if err := protocol.ValidateRequest(&req); err != nil {
		return marshalResponse(req.ID, nil, protocol.NewError(protocol.InvalidRequest, err.Error(), nil))
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		if req.ID == nil {
			return nil, nil
		}
		return marshalResponse(req.ID, nil, protocol.NewError(protocol.MethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil))
	}

	start := time.Now()
	result, err := handler(ctx, req.Params)
	duration := time.Since(start)

	if err != nil {
		s.logger.Warn("handler error",
			zap.String("method", req.Method),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if req.ID == nil {
			return nil, nil
		}
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) {
			return marshalResponse(req.ID, nil, rpcErr)
		}
		return marshalResponse(req.ID, nil, protocol.NewError(protocol.InternalError, err.Error(), nil))
	}

	s.logger.Debug("request handled",
		zap.String("method", req.Method),
		zap.Stringer("id", req.ID),
		zap.Duration("duration", duration),
	)

	if req.ID == nil {
		return nil, nil
	}
	return marshalResponse(req.ID, result, nil)
}

// Serve reads messages from t and answers them one at a time until the
// context is cancelled or the transport reports an error. io.EOF from the
// transport ends Serve with a nil error.
func (s *MCPServer) Serve(ctx context.Context, t transport.Transport) error {
	s.logger.Info("MCP server starting", zap.String("name", s.info.Name), zap.String("version", s.info.Version))

	for {
		msg, err := t.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("MCP server stopping (context cancelled)")
				return ctx.Err()
			}
			if transport.IsClosed(err) {
				s.logger.Info("MCP server stopping (client disconnected)")
				return nil
			}
			s.logger.Error("receive error", zap.Error(err))
			return fmt.Errorf("receive error: %w", err)
		}

		resp, err := s.HandleMessage(ctx, msg)
		if err != nil {
			s.logger.Error("handle error", zap.Error(err))
			continue
		}
		if resp == nil {
			continue
		}
		if err := t.Send(ctx, resp); err != nil {
			s.logger.Error("send error", zap.Error(err))
			return fmt.Errorf("send error: %w", err)
		}
	}
}

// ClientInfo returns the identity sent by the last initialize, if any.
func (s *MCPServer) ClientInfo() *protocol.Implementation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}

func (s *MCPServer) handleInitialize(_ context.Context, params json.RawMessage) (interface{}, error) {
	var init protocol.InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &init); err != nil {
			return nil, protocol.NewError(protocol.InvalidParams, fmt.Sprintf("invalid initialize params: %v", err), nil)
		}
	}

	if init.ProtocolVersion != "" && init.ProtocolVersion != protocol.ProtocolVersion {
		s.logger.Warn("client protocol version mismatch",
			zap.String("client_version", init.ProtocolVersion),
			zap.String("server_version", protocol.ProtocolVersion),
		)
	}

	if init.ClientInfo.Name != "" {
		s.mu.Lock()
		info := init.ClientInfo
		s.clientInfo = &info
		s.mu.Unlock()

		s.logger.Info("client connected",
			zap.String("client_name", init.ClientInfo.Name),
			zap.String("client_version", init.ClientInfo.Version),
		)
	}

	return protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    s.capabilities,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

func (s *MCPServer) handleInitialized(_ context.Context, _ json.RawMessage) (interface{}, error) {
	s.logger.Debug("client initialized")
	return nil, nil
}

func (s *MCPServer) handlePing(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return struct{}{}, nil
}

func marshalResponse(id *protocol.RequestID, result interface{}, rpcErr *protocol.Error) ([]byte, error) {
	resp := protocol.Response{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      id,
		Error:   rpcErr,
	}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		resp.Result = data
	}
	return json.Marshal(resp)
}
