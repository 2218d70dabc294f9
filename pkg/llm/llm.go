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

// Package llm defines the single-turn completion interface used by the
// orchestrator.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// ParseProvider normalizes a provider name.
func ParseProvider(s string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(s)); p {
	case ProviderAnthropic, ProviderBedrock:
		return p, nil
	default:
		return "", fmt.Errorf("unknown LLM provider %q (want %s or %s)", s, ProviderAnthropic, ProviderBedrock)
	}
}

// Request is one prompt with an optional system prompt. Zero MaxTokens or
// Temperature means the completer's configured default.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature *float64
}

// Response is the model's text reply.
type Response struct {
	Text         string
	Model        string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Completer produces a single reply for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
