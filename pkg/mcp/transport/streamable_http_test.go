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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const (
	initRequest  = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	notification = `{"jsonrpc":"2.0","method":"notifications/initialized"}`
)

// echoHandler answers requests with their own body and ignores notifications.
func echoHandler(_ context.Context, msg []byte) ([]byte, error) {
	if strings.Contains(string(msg), `"notifications/`) {
		return nil, nil
	}
	return msg, nil
}

func newTestServer(t *testing.T, ttl time.Duration) (*StreamableHTTPServer, *httptest.Server) {
	t.Helper()
	s, err := NewStreamableHTTPServer(StreamableHTTPServerConfig{
		Handler:    echoHandler,
		Logger:     zaptest.NewLogger(t),
		SessionTTL: ttl,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func post(t *testing.T, url, body, sessionID string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNewStreamableHTTPServer_RequiresHandler(t *testing.T) {
	_, err := NewStreamableHTTPServer(StreamableHTTPServerConfig{})
	assert.ErrorContains(t, err, "handler is required")
}

func TestStreamableHTTPServer_SessionLifecycle(t *testing.T) {
	s, ts := newTestServer(t, 0)

	resp := post(t, ts.URL, initRequest, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	sessionID := resp.Header.Get(SessionHeader)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, 1, s.SessionCount())

	resp = post(t, ts.URL, notification, sessionID)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = post(t, ts.URL, `{"jsonrpc":"2.0","id":2,"method":"ping"}`, "unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, sessionID)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusOK, del.StatusCode)
	assert.Equal(t, 0, s.SessionCount())

	resp = post(t, ts.URL, `{"jsonrpc":"2.0","id":3,"method":"ping"}`, sessionID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamableHTTPServer_RejectsBadRequests(t *testing.T) {
	_, ts := newTestServer(t, 0)

	resp := post(t, ts.URL, "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(initRequest))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	bad, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, bad.StatusCode)

	get, err := http.Get(ts.URL)
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
	assert.Equal(t, "POST, DELETE", get.Header.Get("Allow"))

	req, err = http.NewRequest(http.MethodDelete, ts.URL, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusBadRequest, del.StatusCode)
}

func TestSessionStore_Expire(t *testing.T) {
	store := newSessionStore(time.Minute)
	now := time.Date(2025, 9, 4, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	stale := store.create()
	now = now.Add(50 * time.Second)
	fresh := store.create()

	now = now.Add(20 * time.Second)
	assert.Equal(t, []string{stale}, store.expire())
	assert.False(t, store.touch(stale))
	assert.True(t, store.touch(fresh))
	assert.Equal(t, 1, store.count())

	assert.Nil(t, newSessionStore(0).expire())
}

func TestValidSessionID(t *testing.T) {
	assert.NoError(t, validSessionID("0b7f3c1e-2f57-4a3e-9f3b-8f1f9f6d2c11"))
	assert.Error(t, validSessionID(""))
	assert.Error(t, validSessionID("has space"))
	assert.Error(t, validSessionID("tab\t"))
}

func TestStreamableHTTPTransport_RoundTrip(t *testing.T) {
	s, ts := newTestServer(t, DefaultSessionTTL)

	tr, err := NewStreamableHTTPTransport(StreamableHTTPConfig{
		Endpoint: ts.URL,
		Headers:  map[string]string{"User-Agent": "kqlbridge-test"},
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, tr.Send(ctx, []byte(initRequest)))
	msg, err := tr.Receive(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, initRequest, string(msg))
	assert.NotEmpty(t, tr.SessionID())

	// notifications produce no message
	require.NoError(t, tr.Send(ctx, []byte(notification)))

	ping := `{"jsonrpc":"2.0","id":2,"method":"ping"}`
	require.NoError(t, tr.Send(ctx, []byte(ping)))
	msg, err = tr.Receive(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, ping, string(msg))

	require.NoError(t, tr.Close())
	assert.Equal(t, 0, s.SessionCount())
	assert.ErrorIs(t, tr.Send(ctx, []byte(ping)), ErrClosed)
	_, err = tr.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStreamableHTTPTransport_SessionExpired(t *testing.T) {
	s, ts := newTestServer(t, 0)

	tr, err := NewStreamableHTTPTransport(StreamableHTTPConfig{Endpoint: ts.URL})
	require.NoError(t, err)
	defer tr.Close()

	ctx := context.Background()
	require.NoError(t, tr.Send(ctx, []byte(initRequest)))
	_, err = tr.Receive(ctx)
	require.NoError(t, err)

	require.True(t, s.sessions.remove(tr.SessionID()))

	err = tr.Send(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"ping"}`))
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Empty(t, tr.SessionID())
}

func TestStreamableHTTPTransport_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	tr, err := NewStreamableHTTPTransport(StreamableHTTPConfig{Endpoint: ts.URL})
	require.NoError(t, err)
	defer tr.Close()

	err = tr.Send(context.Background(), []byte(initRequest))
	assert.ErrorContains(t, err, "HTTP 500: boom")
}

func TestNewStreamableHTTPTransport_RequiresEndpoint(t *testing.T) {
	_, err := NewStreamableHTTPTransport(StreamableHTTPConfig{})
	assert.ErrorContains(t, err, "endpoint is required")
}

func TestWarnIfNotLocalhost(t *testing.T) {
	tests := []struct {
		addr string
		warn bool
	}{
		{"127.0.0.1:8000", false},
		{"[::1]:8000", false},
		{"localhost:8000", false},
		{"0.0.0.0:8000", true},
		{":8000", true},
		{"10.1.2.3:8000", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			WarnIfNotLocalhost(zap.New(core), tt.addr)
			assert.Equal(t, tt.warn, logs.Len() == 1)
		})
	}

	WarnIfNotLocalhost(nil, "0.0.0.0:8000")
}
