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

// Package client is an MCP client for a single tool server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/kqlbridge/pkg/mcp/transport"
)

// Config configures a Client.
type Config struct {
	Transport transport.Transport
	Logger    *zap.Logger

	// Name and Version identify the client in initialize.
	Name    string
	Version string

	// RequestTimeout bounds each request that has no earlier deadline.
	// Default: 60s.
	RequestTimeout time.Duration
}

// Client sends requests over a transport and matches responses by id.
// Methods are safe for concurrent use.
type Client struct {
	transport transport.Transport
	logger    *zap.Logger
	info      protocol.Implementation
	timeout   time.Duration

	nextID  int64
	pending map[string]chan *protocol.Response
	pendMu  sync.Mutex

	mu        sync.RWMutex
	server    *protocol.InitializeResult
	closed    bool
	recvErr   error
	recvDone  chan struct{}
	stopRecv  context.CancelFunc
	closeOnce sync.Once
}

// NewClient starts the receive loop on config.Transport.
func NewClient(config Config) (*Client, error) {
	if config.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}
	if config.Name == "" {
		config.Name = "kqlbridge-client"
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport: config.Transport,
		logger:    config.Logger,
		info:      protocol.Implementation{Name: config.Name, Version: config.Version},
		timeout:   config.RequestTimeout,
		pending:   make(map[string]chan *protocol.Response),
		recvDone:  make(chan struct{}),
		stopRecv:  cancel,
	}
	go c.receiveLoop(ctx)
	return c, nil
}

// Initialize performs the initialize handshake and sends
// notifications/initialized.
func (c *Client) Initialize(ctx context.Context) (*protocol.InitializeResult, error) {
	resp, err := c.call(ctx, protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    protocol.ClientCapabilities{},
		ClientInfo:      c.info,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize failed: %w", err)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse initialize result: %w", err)
	}
	if result.ProtocolVersion != protocol.ProtocolVersion {
		c.logger.Warn("server protocol version differs",
			zap.String("client", protocol.ProtocolVersion),
			zap.String("server", result.ProtocolVersion),
		)
	}

	if err := c.notify(ctx, protocol.MethodInitialized); err != nil {
		return nil, fmt.Errorf("failed to send initialized notification: %w", err)
	}

	c.mu.Lock()
	c.server = &result
	c.mu.Unlock()

	c.logger.Info("connected to tool server",
		zap.String("server", result.ServerInfo.Name),
		zap.String("version", result.ServerInfo.Version),
	)
	return &result, nil
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, protocol.MethodPing, nil)
	return err
}

// ServerInfo returns the server identity, or nil before Initialize.
func (c *Client) ServerInfo() *protocol.Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.server == nil {
		return nil
	}
	info := c.server.ServerInfo
	return &info
}

// Close stops the receive loop and closes the transport.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.stopRecv()
		err = c.transport.Close()
		<-c.recvDone
	})
	return err
}

// call sends a request and waits for its response. A JSON-RPC error
// response is returned as *protocol.Error.
func (c *Client) call(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, transport.ErrClosed
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      protocol.NewNumericRequestID(atomic.AddInt64(&c.nextID, 1)),
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = data
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	key := req.ID.String()
	ch := make(chan *protocol.Response, 1)
	c.pendMu.Lock()
	c.pending[key] = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		delete(c.pending, key)
		c.pendMu.Unlock()
	}()

	c.logger.Debug("sending request", zap.String("method", method), zap.String("id", key))
	if err := c.transport.Send(ctx, payload); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.recvDone:
		return nil, c.receiveError()
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	}
}

func (c *Client) notify(ctx context.Context, method string) error {
	payload, err := json.Marshal(&protocol.Request{JSONRPC: protocol.JSONRPCVersion, Method: method})
	if err != nil {
		return err
	}
	return c.transport.Send(ctx, payload)
}

func (c *Client) receiveLoop(ctx context.Context) {
	defer close(c.recvDone)

	for {
		data, err := c.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil && !transport.IsClosed(err) {
				c.logger.Warn("receive failed", zap.Error(err))
			}
			c.mu.Lock()
			c.recvErr = err
			c.mu.Unlock()
			return
		}

		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err != nil || resp.ID == nil {
			c.logger.Debug("ignoring message", zap.ByteString("data", data))
			continue
		}

		key := resp.ID.String()
		c.pendMu.Lock()
		ch, ok := c.pending[key]
		c.pendMu.Unlock()
		if !ok {
			c.logger.Warn("response for unknown request", zap.String("id", key))
			continue
		}
		select {
		case ch <- &resp:
		default:
			c.logger.Warn("duplicate response", zap.String("id", key))
		}
	}
}

func (c *Client) receiveError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.recvErr == nil || c.closed {
		return transport.ErrClosed
	}
	return fmt.Errorf("connection lost: %w", c.recvErr)
}
