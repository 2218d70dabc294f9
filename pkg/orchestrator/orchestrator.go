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

// Package orchestrator turns a question into at most one language model
// call and at most one tool dispatch, under one of two output contracts.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/pkg/llm"
	"github.com/teradata-labs/kqlbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/kqlbridge/pkg/registry"
	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// Contract selects how the model's reply is constrained.
type Contract string

const (
	// ContractMarker expects QUERY: / CREATE_TABLE: marker lines.
	ContractMarker Contract = "marker"
	// ContractJSON treats the question as KQL and expects a table+summary
	// JSON object.
	ContractJSON Contract = "json"
)

// ParseContract validates a contract name.
func ParseContract(s string) (Contract, error) {
	switch c := Contract(strings.ToLower(strings.TrimSpace(s))); c {
	case ContractMarker, ContractJSON:
		return c, nil
	default:
		return "", fmt.Errorf("unknown contract %q (want marker or json)", s)
	}
}

// ToolCaller dispatches tool calls. *client.Client and *bridge.Bridge
// implement it.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error)
}

// ToolCallerFunc adapts a function to ToolCaller.
type ToolCallerFunc func(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error)

// CallTool implements ToolCaller.
func (f ToolCallerFunc) CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
	return f(ctx, name, args)
}

// Outcome is the terminal state of a question.
type Outcome string

const (
	OutcomeAnswered   Outcome = "answered"
	OutcomeRejected   Outcome = "rejected"
	OutcomeNotAllowed Outcome = "not_allowed"
	OutcomeFailed     Outcome = "failed"
	OutcomeTruncated  Outcome = "truncated"
)

// TruncatedReply is shown when the model stopped at its token limit.
const TruncatedReply = "reply truncated: the model reached its token limit"

// StopMaxTokens is the stop reason of a reply cut off at the token limit.
const StopMaxTokens = "max_tokens"

// JSON contract replies echo the result rows, so their token budget grows
// with the rows. Roughly three bytes of JSON per output token.
const (
	MinJSONReplyTokens = 1024
	MaxJSONReplyTokens = 16384
)

// JSONReplyTokens returns the reply budget for a JSON contract prompt
// carrying rowsJSON.
func JSONReplyTokens(rowsJSON string) int64 {
	n := int64(MinJSONReplyTokens + len(rowsJSON)/3)
	if n > MaxJSONReplyTokens {
		n = MaxJSONReplyTokens
	}
	return n
}

// Answer is the result of one question.
type Answer struct {
	Outcome Outcome
	Command Command

	// Text is what the user sees: the tool's rendered result, the
	// failure text, or the JSON answer.
	Text string

	// Message is the tool's acknowledgment for DDL, if any.
	Message string

	Columns []string
	Table   []resultset.Row
	Summary string
}

// Config configures an Orchestrator.
type Config struct {
	LLM      llm.Completer
	Tools    ToolCaller
	Contract Contract
	Tables   []string
	Logger   *zap.Logger
}

// Orchestrator answers questions. It holds no per-question state.
type Orchestrator struct {
	llm      llm.Completer
	tools    ToolCaller
	contract Contract
	tables   []string
	logger   *zap.Logger
	prefixes []string
}

// New validates cfg and creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool caller is required")
	}
	if cfg.Contract == "" {
		cfg.Contract = ContractMarker
	}
	contract, err := ParseContract(string(cfg.Contract))
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	var prefixes []string
	for _, spec := range registry.New().Specs() {
		prefixes = append(prefixes, spec.FailurePrefix)
	}

	return &Orchestrator{
		llm:      cfg.LLM,
		tools:    cfg.Tools,
		contract: contract,
		tables:   cfg.Tables,
		logger:   cfg.Logger,
		prefixes: prefixes,
	}, nil
}

// Contract returns the configured contract.
func (o *Orchestrator) Contract() Contract { return o.contract }

// Ask answers one question. Rejections and failed dispatches are normal
// answers; the error return is for an empty question or a failed model
// call.
func (o *Orchestrator) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}
	if o.contract == ContractJSON {
		return o.askJSON(ctx, question)
	}
	return o.askMarker(ctx, question)
}

func (o *Orchestrator) askMarker(ctx context.Context, question string) (*Answer, error) {
	resp, err := o.llm.Complete(ctx, llm.Request{
		System: MarkerSystemPrompt(o.tables),
		Prompt: question,
	})
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}
	o.logger.Debug("model reply", zap.String("reply", resp.Text))
	if truncated := o.truncated(resp); truncated != nil {
		return truncated, nil
	}

	cmd := ParseMarkerReply(resp.Text)
	if r, ok := cmd.(Rejected); ok {
		o.logger.Info("reply rejected", zap.Error(r.Err))
		return &Answer{Outcome: OutcomeRejected, Command: cmd, Text: InvalidFormat}, nil
	}

	op := Operation(cmd)
	out := o.dispatch(ctx, op)
	answer := &Answer{Command: cmd, Columns: out.columns, Table: out.rows, Message: out.message}
	if out.failed {
		answer.Outcome = OutcomeFailed
		answer.Text = "operation failed: " + out.failure
		return answer, nil
	}
	answer.Outcome = OutcomeAnswered
	answer.Text = out.text
	return answer, nil
}

// askJSON runs the question as KQL, then makes the single model call with
// either the rows or the engine's error. The model judges the input: for
// non-KQL input the engine fails and the model replies "not allowed".
func (o *Orchestrator) askJSON(ctx context.Context, query string) (*Answer, error) {
	op := registry.RunQuery{Query: query}
	out := o.dispatch(ctx, op)

	var req llm.Request
	if out.failed {
		req = llm.Request{
			System: JSONSystemPrompt(o.tables),
			Prompt: JSONFailurePrompt(query, out.failure),
		}
	} else {
		rowsJSON := out.text
		if out.rows != nil {
			data, err := json.Marshal(out.rows)
			if err != nil {
				return nil, fmt.Errorf("encode rows: %w", err)
			}
			rowsJSON = string(data)
		}
		req = llm.Request{
			System:    JSONSystemPrompt(o.tables),
			Prompt:    JSONUserPrompt(query, rowsJSON),
			MaxTokens: JSONReplyTokens(rowsJSON),
		}
	}

	resp, err := o.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}
	if truncated := o.truncated(resp); truncated != nil {
		return truncated, nil
	}

	cmd := ParseJSONReply(resp.Text)
	if _, ok := cmd.(NotAllowed); ok {
		return &Answer{Outcome: OutcomeNotAllowed, Command: cmd, Text: NotAllowedReply}, nil
	}
	if out.failed {
		return &Answer{
			Outcome: OutcomeFailed,
			Command: QueryCommand{Query: query},
			Text:    "operation failed: " + out.failure,
		}, nil
	}

	switch c := cmd.(type) {
	case Rejected:
		o.logger.Info("reply rejected", zap.Error(c.Err))
		return &Answer{Outcome: OutcomeRejected, Command: cmd, Text: InvalidFormat}, nil
	case StructuredAnswer:
		table := out.rows
		if table == nil {
			table = c.Table
		} else if !sameRows(table, c.Table) {
			o.logger.Warn("model table differs from tool result; keeping tool rows",
				zap.Int("tool_rows", len(table)),
				zap.Int("model_rows", len(c.Table)),
			)
		}
		text, err := json.Marshal(struct {
			Table   []resultset.Row `json:"table"`
			Summary string          `json:"summary"`
		}{table, c.Summary})
		if err != nil {
			return nil, fmt.Errorf("encode answer: %w", err)
		}
		return &Answer{
			Outcome: OutcomeAnswered,
			Command: cmd,
			Text:    string(text),
			Columns: out.columns,
			Table:   table,
			Summary: c.Summary,
		}, nil
	default:
		return nil, fmt.Errorf("unexpected reply %T", cmd)
	}
}

// truncated returns the answer for a reply cut off at the token limit, or
// nil. A cut-off reply is never parsed or dispatched.
func (o *Orchestrator) truncated(resp *llm.Response) *Answer {
	if resp.StopReason != StopMaxTokens {
		return nil
	}
	o.logger.Warn("model reply truncated",
		zap.Int64("output_tokens", resp.OutputTokens),
		zap.Int("reply_bytes", len(resp.Text)),
	)
	return &Answer{Outcome: OutcomeTruncated, Text: TruncatedReply}
}

// dispatched is what one tool call produced.
type dispatched struct {
	text    string
	columns []string
	rows    []resultset.Row
	message string

	failed  bool
	failure string
}

// structured mirrors the structuredContent of a bridge result.
type structured struct {
	Columns []string        `json:"columns"`
	Rows    []resultset.Row `json:"rows"`
	Message string          `json:"message"`
	Error   *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func (o *Orchestrator) dispatch(ctx context.Context, op registry.Operation) dispatched {
	name := op.OperationName()
	o.logger.Debug("dispatching", zap.String("tool", name))

	result, err := o.tools.CallTool(ctx, name, registry.Arguments(op))
	if err != nil {
		return dispatched{failed: true, failure: err.Error()}
	}
	text := result.Text()
	if result.IsError {
		return dispatched{failed: true, failure: text}
	}

	out := dispatched{text: text}
	if len(result.StructuredContent) > 0 {
		var sc structured
		data, err := json.Marshal(result.StructuredContent)
		if err == nil {
			err = json.Unmarshal(data, &sc)
		}
		if err != nil {
			o.logger.Debug("ignoring structured content", zap.Error(err))
		} else {
			if sc.Error != nil {
				return dispatched{failed: true, failure: sc.Error.Message}
			}
			out.columns = sc.Columns
			out.rows = sc.Rows
			if out.rows == nil && sc.Columns != nil {
				out.rows = []resultset.Row{}
			}
			out.message = sc.Message
			return out
		}
	}

	// Without structured content only the text prefix tells a failure apart.
	for _, prefix := range o.prefixes {
		if strings.HasPrefix(text, prefix+" ") {
			return dispatched{failed: true, failure: strings.TrimPrefix(text, prefix+" ")}
		}
	}
	return out
}

func sameRows(a, b []resultset.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
