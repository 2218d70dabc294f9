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

package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/kqlbridge/pkg/bridge"
	"github.com/teradata-labs/kqlbridge/pkg/executor"
	"github.com/teradata-labs/kqlbridge/pkg/kusto"
	"github.com/teradata-labs/kqlbridge/pkg/kusto/kustotest"
	"github.com/teradata-labs/kqlbridge/pkg/llm"
	"github.com/teradata-labs/kqlbridge/pkg/mcp/protocol"
	"github.com/teradata-labs/kqlbridge/pkg/registry"
	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// scriptedLLM replies with fixed text and records requests.
type scriptedLLM struct {
	reply      string
	stopReason string
	err        error
	requests   []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Text: s.reply, StopReason: s.stopReason}, nil
}

// countingTools wraps a ToolCaller and counts dispatches.
type countingTools struct {
	next  ToolCaller
	calls []string
}

func (c *countingTools) CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
	c.calls = append(c.calls, name)
	return c.next.CallTool(ctx, name, args)
}

func levelCounts() *resultset.ResultSet {
	return &resultset.ResultSet{
		Columns: []string{"Level", "Count"},
		Rows: [][]resultset.Value{
			{resultset.String("ERROR"), resultset.Int(3)},
			{resultset.String("INFO"), resultset.Int(9)},
		},
	}
}

func newHarness(t *testing.T, model *scriptedLLM, fake *kustotest.Fake, contract Contract) (*Orchestrator, *countingTools) {
	t.Helper()
	exec, err := executor.New(executor.Config{Client: fake, Database: "Logs"})
	require.NoError(t, err)
	tools := &countingTools{next: bridge.New(registry.New(), exec, zaptest.NewLogger(t))}

	o, err := New(Config{LLM: model, Tools: tools, Contract: contract, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return o, tools
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Tools: &countingTools{}})
	assert.ErrorContains(t, err, "LLM is required")

	_, err = New(Config{LLM: &scriptedLLM{}})
	assert.ErrorContains(t, err, "tool caller is required")

	_, err = New(Config{LLM: &scriptedLLM{}, Tools: &countingTools{}, Contract: "xml"})
	assert.ErrorContains(t, err, "unknown contract")

	o, err := New(Config{LLM: &scriptedLLM{}, Tools: &countingTools{}})
	require.NoError(t, err)
	assert.Equal(t, ContractMarker, o.Contract())
}

func TestAsk_MarkerQuery(t *testing.T) {
	model := &scriptedLLM{reply: "QUERY: AppLogs | summarize Count = count() by Level"}
	fake := &kustotest.Fake{Result: levelCounts()}
	o, tools := newHarness(t, model, fake, ContractMarker)

	answer, err := o.Ask(context.Background(), "How many logs per level?")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, answer.Outcome)
	assert.Equal(t, "Level | Count\nERROR | 3\nINFO | 9", answer.Text)
	assert.Equal(t, []string{"Level", "Count"}, answer.Columns)
	require.Len(t, answer.Table, 2)
	assert.Equal(t, []string{"ERROR", "3"}, answer.Table[0].Values())

	require.Len(t, model.requests, 1)
	assert.Equal(t, "How many logs per level?", model.requests[0].Prompt)
	assert.Contains(t, model.requests[0].System, MarkerQuery)
	assert.Contains(t, model.requests[0].System, "AppLogs (Timestamp, Level")

	assert.Equal(t, []string{registry.OpRunQuery}, tools.calls)
	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, "AppLogs | summarize Count = count() by Level", fake.Calls()[0].Text)
}

func TestAsk_MarkerCreateTable(t *testing.T) {
	model := &scriptedLLM{reply: "CREATE_TABLE: Users\nSCHEMA: Id:int, Name:string"}
	fake := &kustotest.Fake{}
	o, _ := newHarness(t, model, fake, ContractMarker)

	answer, err := o.Ask(context.Background(), "Create a users table with id and name")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnswered, answer.Outcome)
	assert.Equal(t, "(no rows)", answer.Text)
	assert.Equal(t, "Table 'Users' created.", answer.Message)
	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, ".create table Users (Id:int, Name:string)", fake.Calls()[0].Text)
}

func TestAsk_MarkerRejectedDoesNotDispatch(t *testing.T) {
	model := &scriptedLLM{reply: "I think you want to look at the AppLogs table."}
	fake := &kustotest.Fake{}
	o, tools := newHarness(t, model, fake, ContractMarker)

	answer, err := o.Ask(context.Background(), "Show me errors")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, answer.Outcome)
	assert.Equal(t, InvalidFormat, answer.Text)
	assert.IsType(t, Rejected{}, answer.Command)
	assert.Empty(t, tools.calls)
	assert.Equal(t, 0, fake.CallCount())
}

func TestAsk_EngineFailureIsNormalAnswer(t *testing.T) {
	model := &scriptedLLM{reply: "QUERY: Nope"}
	fake := &kustotest.Fake{QueryFunc: func(ctx context.Context, database, query string) (*resultset.ResultSet, error) {
		return nil, &kusto.ServiceError{Op: "query", Err: errors.New("'Nope' could not be resolved")}
	}}
	o, _ := newHarness(t, model, fake, ContractMarker)

	answer, err := o.Ask(context.Background(), "Show me the Nope table")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, answer.Outcome)
	assert.Equal(t, "operation failed: 'Nope' could not be resolved", answer.Text)
}

func TestAsk_TransportFailureIsNormalAnswer(t *testing.T) {
	model := &scriptedLLM{reply: "QUERY: AppLogs"}
	tools := ToolCallerFunc(func(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
		return nil, errors.New("connection refused")
	})
	o, err := New(Config{LLM: model, Tools: tools})
	require.NoError(t, err)

	answer, err := o.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, answer.Outcome)
	assert.Equal(t, "operation failed: connection refused", answer.Text)
}

func TestAsk_TextOnlyResults(t *testing.T) {
	tests := []struct {
		name    string
		result  *protocol.CallToolResult
		outcome Outcome
		text    string
	}{
		{"rendered", &protocol.CallToolResult{Content: protocol.TextContent("A\n1")}, OutcomeAnswered, "A\n1"},
		{"prefixed failure", &protocol.CallToolResult{Content: protocol.TextContent("ADX error: bad query")}, OutcomeFailed, "operation failed: bad query"},
		{"isError", &protocol.CallToolResult{Content: protocol.TextContent("invalid request"), IsError: true}, OutcomeFailed, "operation failed: invalid request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools := ToolCallerFunc(func(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
				return tt.result, nil
			})
			o, err := New(Config{LLM: &scriptedLLM{reply: "QUERY: T"}, Tools: tools})
			require.NoError(t, err)

			answer, err := o.Ask(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, answer.Outcome)
			assert.Equal(t, tt.text, answer.Text)
		})
	}
}

func TestAsk_JSONContract(t *testing.T) {
	model := &scriptedLLM{reply: `{"table": [{"Level": "ERROR", "Count": "3"}, {"Level": "INFO", "Count": "9"}], "summary": "Two levels; INFO dominates."}`}
	fake := &kustotest.Fake{Result: levelCounts()}
	o, tools := newHarness(t, model, fake, ContractJSON)

	query := "AppLogs | summarize Count = count() by Level"
	answer, err := o.Ask(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, answer.Outcome)
	assert.Equal(t, "Two levels; INFO dominates.", answer.Summary)
	require.Len(t, answer.Table, 2)
	assert.Equal(t, []string{"INFO", "9"}, answer.Table[1].Values())
	assert.JSONEq(t, `{"table":[{"Level":"ERROR","Count":"3"},{"Level":"INFO","Count":"9"}],"summary":"Two levels; INFO dominates."}`, answer.Text)

	// the tool runs before the single model call, which sees its rows
	assert.Equal(t, []string{registry.OpRunQuery}, tools.calls)
	assert.Equal(t, query, fake.Calls()[0].Text)
	require.Len(t, model.requests, 1)
	assert.Contains(t, model.requests[0].Prompt, `{"Level":"ERROR","Count":"3"}`)
	assert.Contains(t, model.requests[0].System, NotAllowedReply)
	assert.Equal(t, JSONReplyTokens(`[{"Level":"ERROR","Count":"3"},{"Level":"INFO","Count":"9"}]`), model.requests[0].MaxTokens)
}

func TestJSONReplyTokens(t *testing.T) {
	assert.Equal(t, int64(MinJSONReplyTokens), JSONReplyTokens(""))
	assert.Equal(t, int64(MinJSONReplyTokens+100), JSONReplyTokens(strings.Repeat("x", 300)))
	assert.Equal(t, int64(MaxJSONReplyTokens), JSONReplyTokens(strings.Repeat("x", 1<<20)))
}

func TestAsk_JSONContractBudgetGrowsWithRows(t *testing.T) {
	rs := &resultset.ResultSet{Columns: []string{"Timestamp", "Level", "Message"}}
	for i := 0; i < 50; i++ {
		rs.Rows = append(rs.Rows, []resultset.Value{
			resultset.String("2026-10-18T09:00:00Z"),
			resultset.String("ERROR"),
			resultset.String("connection reset by peer while reading response body"),
		})
	}
	model := &scriptedLLM{reply: `{"table": [], "summary": "s"}`}
	o, _ := newHarness(t, model, &kustotest.Fake{Result: rs}, ContractJSON)

	_, err := o.Ask(context.Background(), "AppLogs | take 50")
	require.NoError(t, err)
	require.Len(t, model.requests, 1)
	assert.Greater(t, model.requests[0].MaxTokens, int64(MinJSONReplyTokens+1000))
}

func TestAsk_TruncatedReply(t *testing.T) {
	tests := []struct {
		name     string
		contract Contract
		reply    string
	}{
		{"json", ContractJSON, `{"table": [{"Level": "ERROR", "Cou`},
		{"marker", ContractMarker, "QUERY: AppLogs | where Level =="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedLLM{reply: tt.reply, stopReason: StopMaxTokens}
			fake := &kustotest.Fake{Result: levelCounts()}
			o, _ := newHarness(t, model, fake, tt.contract)

			answer, err := o.Ask(context.Background(), "AppLogs | summarize Count = count() by Level")
			require.NoError(t, err)
			assert.Equal(t, OutcomeTruncated, answer.Outcome)
			assert.Equal(t, TruncatedReply, answer.Text)
			assert.Empty(t, answer.Table)
		})
	}

	// the marker contract never dispatches a cut-off command
	fake := &kustotest.Fake{Result: levelCounts()}
	o, tools := newHarness(t, &scriptedLLM{reply: "QUERY: AppLogs | where", stopReason: StopMaxTokens}, fake, ContractMarker)
	_, err := o.Ask(context.Background(), "errors")
	require.NoError(t, err)
	assert.Empty(t, tools.calls)
	assert.Zero(t, fake.CallCount())
}

func TestAsk_JSONContractKeepsToolRows(t *testing.T) {
	model := &scriptedLLM{reply: `{"table": [{"Level": "ERROR", "Count": "300"}], "summary": "s"}`}
	o, _ := newHarness(t, model, &kustotest.Fake{Result: levelCounts()}, ContractJSON)

	answer, err := o.Ask(context.Background(), "AppLogs | summarize Count = count() by Level")
	require.NoError(t, err)
	require.Len(t, answer.Table, 2)
	assert.Equal(t, []string{"ERROR", "3"}, answer.Table[0].Values())
}

func TestAsk_JSONContractEmptyResult(t *testing.T) {
	model := &scriptedLLM{reply: `{"table": [], "summary": "No rows matched."}`}
	o, _ := newHarness(t, model, &kustotest.Fake{Result: &resultset.ResultSet{Columns: []string{"Level"}}}, ContractJSON)

	answer, err := o.Ask(context.Background(), "AppLogs | where false")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnswered, answer.Outcome)
	assert.Empty(t, answer.Table)
	assert.JSONEq(t, `{"table":[],"summary":"No rows matched."}`, answer.Text)
}

func TestAsk_JSONContractRejections(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		outcome Outcome
		text    string
	}{
		{"not allowed", "not allowed", OutcomeNotAllowed, NotAllowedReply},
		{"prose", "Here is your table.", OutcomeRejected, InvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newHarness(t, &scriptedLLM{reply: tt.reply}, &kustotest.Fake{Result: levelCounts()}, ContractJSON)
			answer, err := o.Ask(context.Background(), "AppLogs | take 1")
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, answer.Outcome)
			assert.Equal(t, tt.text, answer.Text)
		})
	}
}

func TestAsk_JSONContractNonKQLQuestion(t *testing.T) {
	syntaxError := func(ctx context.Context, database, query string) (*resultset.ResultSet, error) {
		return nil, &kusto.ServiceError{Op: "query", Err: errors.New("Syntax error")}
	}
	question := "what were the top errors yesterday?"

	t.Run("model refuses", func(t *testing.T) {
		model := &scriptedLLM{reply: "not allowed"}
		o, _ := newHarness(t, model, &kustotest.Fake{QueryFunc: syntaxError}, ContractJSON)

		answer, err := o.Ask(context.Background(), question)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNotAllowed, answer.Outcome)
		assert.Equal(t, NotAllowedReply, answer.Text)

		require.Len(t, model.requests, 1)
		assert.Contains(t, model.requests[0].Prompt, question)
		assert.Contains(t, model.requests[0].Prompt, "Syntax error")
	})

	t.Run("model explains", func(t *testing.T) {
		model := &scriptedLLM{reply: `{"table": [], "summary": "The query has a syntax error."}`}
		o, _ := newHarness(t, model, &kustotest.Fake{QueryFunc: syntaxError}, ContractJSON)

		answer, err := o.Ask(context.Background(), "AppLogs | wher Level == 'ERROR'")
		require.NoError(t, err)
		assert.Equal(t, OutcomeFailed, answer.Outcome)
		assert.Equal(t, "operation failed: Syntax error", answer.Text)
		assert.Len(t, model.requests, 1)
	})
}

func TestAsk_Errors(t *testing.T) {
	o, tools := newHarness(t, &scriptedLLM{err: errors.New("overloaded")}, &kustotest.Fake{}, ContractMarker)

	_, err := o.Ask(context.Background(), "   ")
	assert.ErrorContains(t, err, "question is empty")

	_, err = o.Ask(context.Background(), "Show me errors")
	assert.ErrorContains(t, err, "overloaded")
	assert.Empty(t, tools.calls)
}

func TestPrompts(t *testing.T) {
	system := MarkerSystemPrompt([]string{"Sales (Region, Amount)"})
	assert.Contains(t, system, "Available tables: Sales (Region, Amount)")
	assert.Contains(t, system, MarkerCreateTable)
	assert.Contains(t, system, MarkerSchema)
	assert.False(t, strings.HasPrefix(system, " "))

	assert.Contains(t, JSONSystemPrompt(nil), FormatInstructions)
	assert.Contains(t, JSONUserPrompt("T", "[]"), "T\n")
}

func TestParseContract(t *testing.T) {
	c, err := ParseContract(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, ContractJSON, c)
}
