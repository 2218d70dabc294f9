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

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSessionExpired means the server no longer knows our session (HTTP 404).
var ErrSessionExpired = errors.New("session expired")

// StreamableHTTPConfig configures StreamableHTTPTransport.
type StreamableHTTPConfig struct {
	Endpoint string
	Headers  map[string]string
	Client   *http.Client // nil means a client with a 120s timeout
	Logger   *zap.Logger
}

// StreamableHTTPTransport is the client end of the streamable HTTP
// transport. Each Send is one POST; its JSON body, if any, is queued for
// the next Receive.
type StreamableHTTPTransport struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
	logger   *zap.Logger

	mu        sync.Mutex
	sessionID string
	closed    bool

	messages chan []byte
	done     chan struct{}
}

// NewStreamableHTTPTransport creates a transport for endpoint.
func NewStreamableHTTPTransport(config StreamableHTTPConfig) (*StreamableHTTPTransport, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 120 * time.Second}
	}
	return &StreamableHTTPTransport{
		endpoint: config.Endpoint,
		headers:  config.Headers,
		client:   config.Client,
		logger:   config.Logger,
		messages: make(chan []byte, 16),
		done:     make(chan struct{}),
	}, nil
}

// Send POSTs message and queues the response body.
func (t *StreamableHTTPTransport) Send(ctx context.Context, message []byte) error {
	t.mu.Lock()
	closed, sessionID := t.closed, t.sessionID
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(message))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", t.endpoint, err)
	}
	defer resp.Body.Close()

	if err := t.checkStatus(resp); err != nil {
		return err
	}

	if id := resp.Header.Get(SessionHeader); id != "" && sessionID == "" {
		if err := validSessionID(id); err != nil {
			t.logger.Warn("ignoring session id from server", zap.Error(err))
		} else {
			t.mu.Lock()
			t.sessionID = id
			t.mu.Unlock()
			t.logger.Debug("session established", zap.String("session_id", id))
		}
	}

	if resp.StatusCode == http.StatusAccepted {
		return nil
	}

	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "application/json" {
		return fmt.Errorf("unexpected Content-Type: %q", resp.Header.Get("Content-Type"))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	select {
	case t.messages <- data:
		return nil
	case <-t.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *StreamableHTTPTransport) checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	case http.StatusNotFound:
		t.mu.Lock()
		had := t.sessionID != ""
		t.sessionID = ""
		t.mu.Unlock()
		if had {
			return ErrSessionExpired
		}
		return fmt.Errorf("endpoint not found: %s", t.endpoint)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
}

// Receive returns the next queued response.
func (t *StreamableHTTPTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, ErrClosed
	case msg := <-t.messages:
		return msg, nil
	}
}

// SessionID returns the session assigned by the server, if any.
func (t *StreamableHTTPTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Close ends the session with a DELETE, best effort, and stops Receive.
func (t *StreamableHTTPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sessionID := t.sessionID
	t.mu.Unlock()

	if sessionID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.terminate(ctx, sessionID); err != nil {
			t.logger.Debug("session termination failed", zap.Error(err))
		}
	}
	close(t.done)
	return nil
}

func (t *StreamableHTTPTransport) terminate(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set(SessionHeader, sessionID)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusMethodNotAllowed:
		return nil
	default:
		return fmt.Errorf("terminate session: HTTP %d", resp.StatusCode)
	}
}
