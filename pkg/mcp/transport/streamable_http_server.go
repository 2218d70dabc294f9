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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxRequestBody = 10 * 1024 * 1024

// MessageHandler answers one JSON-RPC message. It returns nil for
// notifications. *server.MCPServer's HandleMessage has this shape.
type MessageHandler func(ctx context.Context, msg []byte) ([]byte, error)

// StreamableHTTPServerConfig configures StreamableHTTPServer.
type StreamableHTTPServerConfig struct {
	Handler MessageHandler
	Logger  *zap.Logger

	// SessionTTL expires idle sessions. Zero keeps sessions until DELETE.
	SessionTTL time.Duration
}

// StreamableHTTPServer serves MCP on a single endpoint. POST carries a
// JSON-RPC message and gets a JSON response; DELETE ends a session.
//
// There is no authentication. Bind it to a loopback address; see
// WarnIfNotLocalhost.
type StreamableHTTPServer struct {
	handler  MessageHandler
	logger   *zap.Logger
	sessions *sessionStore

	stop     chan struct{}
	stopOnce sync.Once
}

// NewStreamableHTTPServer creates the handler and, when a TTL is set,
// starts the session reaper. Call Close to stop it.
func NewStreamableHTTPServer(config StreamableHTTPServerConfig) (*StreamableHTTPServer, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &StreamableHTTPServer{
		handler:  config.Handler,
		logger:   config.Logger,
		sessions: newSessionStore(config.SessionTTL),
		stop:     make(chan struct{}),
	}
	if config.SessionTTL > 0 {
		go s.reap(config.SessionTTL)
	}
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *StreamableHTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *StreamableHTTPServer) handlePost(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, _ := mime.ParseMediaType(ct); mediaType != "application/json" {
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		s.logger.Warn("failed to read request body", zap.Error(err))
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	switch {
	case len(body) == 0:
		http.Error(w, "empty request body", http.StatusBadRequest)
		return
	case len(body) > maxRequestBody:
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	sessionID := r.Header.Get(SessionHeader)
	if sessionID != "" && !s.sessions.touch(sessionID) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	resp, err := s.handler(r.Context(), body)
	if err != nil {
		s.logger.Error("handler error", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if sessionID == "" && isInitialize(body) {
		sessionID = s.sessions.create()
		w.Header().Set(SessionHeader, sessionID)
		s.logger.Info("session created", zap.String("session_id", sessionID))
	}

	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

func (s *StreamableHTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		http.Error(w, SessionHeader+" header required", http.StatusBadRequest)
		return
	}
	if !s.sessions.remove(sessionID) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	s.logger.Info("session terminated", zap.String("session_id", sessionID))
	w.WriteHeader(http.StatusOK)
}

func isInitialize(body []byte) bool {
	var req struct {
		Method string `json:"method"`
	}
	return json.Unmarshal(body, &req) == nil && req.Method == "initialize"
}

func (s *StreamableHTTPServer) reap(ttl time.Duration) {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for _, id := range s.sessions.expire() {
				s.logger.Info("session expired", zap.String("session_id", id))
			}
		}
	}
}

// SessionCount returns the number of live sessions.
func (s *StreamableHTTPServer) SessionCount() int {
	return s.sessions.count()
}

// Close stops the session reaper. It is safe to call more than once.
func (s *StreamableHTTPServer) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// WarnIfNotLocalhost logs a warning when addr would accept connections from
// other hosts.
func WarnIfNotLocalhost(logger *zap.Logger, addr string) {
	if logger == nil {
		return
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "localhost" {
		return
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return
	}
	logger.Warn("MCP HTTP endpoint is reachable from other hosts and has no authentication",
		zap.String("addr", addr),
		zap.String("recommendation", "bind to 127.0.0.1 or ::1"),
	)
}
