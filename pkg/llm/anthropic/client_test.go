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

package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/kqlbridge/pkg/llm"
)

const messageReply = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [{"type": "text", "text": "QUERY: AppLogs"}, {"type": "text", "text": " | take 5"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 42, "output_tokens": 7}
}`

type capturedRequest struct {
	Path        string
	APIKey      string
	Model       string  `json:"model"`
	MaxTokens   int64   `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	System      []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func newFakeAPI(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, captured))
		captured.Path = r.URL.Path
		captured.APIKey = r.Header.Get("X-Api-Key")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, captured
}

func TestComplete(t *testing.T) {
	ts, captured := newFakeAPI(t, http.StatusOK, messageReply)

	c, err := NewClient(context.Background(), Config{
		APIKey:      "test-key",
		BaseURL:     ts.URL + "/",
		Temperature: 0.1,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())

	resp, err := c.Complete(context.Background(), llm.Request{
		System: "Reply with one command.",
		Prompt: "Show recent logs",
	})
	require.NoError(t, err)

	assert.Equal(t, "QUERY: AppLogs | take 5", resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int64(42), resp.InputTokens)
	assert.Equal(t, int64(7), resp.OutputTokens)

	assert.True(t, strings.HasSuffix(captured.Path, "/v1/messages"))
	assert.Equal(t, "test-key", captured.APIKey)
	assert.Equal(t, DefaultModel, captured.Model)
	assert.Equal(t, int64(DefaultMaxTokens), captured.MaxTokens)
	assert.InDelta(t, 0.1, captured.Temperature, 1e-9)
	require.Len(t, captured.System, 1)
	assert.Equal(t, "Reply with one command.", captured.System[0].Text)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "Show recent logs", captured.Messages[0].Content[0].Text)
}

func TestComplete_RequestOverrides(t *testing.T) {
	ts, captured := newFakeAPI(t, http.StatusOK, messageReply)

	c, err := NewClient(context.Background(), Config{APIKey: "k", BaseURL: ts.URL + "/", Model: "claude-test"})
	require.NoError(t, err)

	zero := 0.0
	_, err = c.Complete(context.Background(), llm.Request{Prompt: "x", MaxTokens: 1000, Temperature: &zero})
	require.NoError(t, err)
	assert.Equal(t, "claude-test", captured.Model)
	assert.Equal(t, int64(1000), captured.MaxTokens)
	assert.Zero(t, captured.Temperature)
	assert.Empty(t, captured.System)
}

func TestComplete_APIError(t *testing.T) {
	ts, _ := newFakeAPI(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: too large"}}`)

	c, err := NewClient(context.Background(), Config{APIKey: "k", BaseURL: ts.URL + "/"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), llm.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic completion failed")
}

func TestComplete_EmptyPrompt(t *testing.T) {
	c, err := NewClient(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), llm.Request{Prompt: "  "})
	assert.ErrorContains(t, err, "prompt is required")
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.ErrorContains(t, err, "API key is required")

	_, err = NewClient(context.Background(), Config{Provider: "openai", APIKey: "k"})
	assert.ErrorContains(t, err, "unknown LLM provider")

	_, err = NewClient(context.Background(), Config{APIKey: "k", Temperature: 1.5})
	assert.ErrorContains(t, err, "temperature")
}

func TestNewClient_Bedrock(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	c, err := NewClient(context.Background(), Config{
		Provider: llm.ProviderBedrock,
		Model:    "anthropic.claude-sonnet-4-20250514-v1:0",
		Region:   "us-east-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-sonnet-4-20250514-v1:0", c.Model())
}

func TestParseProvider(t *testing.T) {
	p, err := llm.ParseProvider(" Bedrock ")
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderBedrock, p)
}
