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

// Package anthropic implements llm.Completer with the Anthropic SDK, talking
// either to the Anthropic API or to Claude on AWS Bedrock.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/pkg/llm"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-20250514"
	// DefaultMaxTokens caps the reply length.
	DefaultMaxTokens = 300
	// DefaultTemperature keeps replies close to deterministic.
	DefaultTemperature = 0.1
	// DefaultTimeout bounds one completion.
	DefaultTimeout = 60 * time.Second
	// DefaultBedrockRegion is used for bedrock when no region is set.
	DefaultBedrockRegion = "us-west-2"
)

// Config configures a Client.
type Config struct {
	Provider    string // llm.ProviderAnthropic (default) or llm.ProviderBedrock
	APIKey      string // anthropic only
	BaseURL     string // anthropic only; overrides the API endpoint
	Model       string
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
	Region      string // bedrock only
	Logger      *zap.Logger
}

// Client sends single-turn prompts to Claude.
type Client struct {
	client      anthropic.Client
	provider    string
	model       string
	maxTokens   int64
	temperature float64
	logger      *zap.Logger
}

// NewClient builds a client. For bedrock, AWS credentials come from the
// default chain (environment, shared config, instance role).
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Provider == "" {
		cfg.Provider = llm.ProviderAnthropic
	}
	provider, err := llm.ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1, got %g", cfg.Temperature)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	}

	switch provider {
	case llm.ProviderBedrock:
		region := cfg.Region
		if region == "" {
			region = DefaultBedrockRegion
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		opts = append(opts, bedrock.WithConfig(awsCfg))
	default:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	return &Client{
		client:      anthropic.NewClient(opts...),
		provider:    provider,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}, nil
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

// Complete implements llm.Completer. The reply is the concatenation of the
// text blocks of the response.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", c.provider, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	c.logger.Debug("completion received",
		zap.String("provider", c.provider),
		zap.String("model", string(message.Model)),
		zap.Int64("input_tokens", message.Usage.InputTokens),
		zap.Int64("output_tokens", message.Usage.OutputTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return &llm.Response{
		Text:         text.String(),
		Model:        string(message.Model),
		StopReason:   string(message.StopReason),
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}, nil
}
