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

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/kqlbridge/pkg/kusto/kustotest"
	"github.com/teradata-labs/kqlbridge/pkg/llm"
	"github.com/teradata-labs/kqlbridge/pkg/orchestrator"
	"github.com/teradata-labs/kqlbridge/pkg/registry"
	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// scripted replies with the given texts in order and records prompts.
type scripted struct {
	mu      sync.Mutex
	replies []string
	prompts []string
}

func (s *scripted) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req.Prompt)
	if len(s.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	text := s.replies[0]
	s.replies = s.replies[1:]
	return &llm.Response{Text: text}, nil
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func inProcessTools(t *testing.T, a *app) orchestrator.ToolCaller {
	t.Helper()
	tools, closeTools, err := a.toolCaller(context.Background(), true)
	require.NoError(t, err)
	t.Cleanup(closeTools)
	return tools
}

func TestAsk_SingleQuestion(t *testing.T) {
	fake := &kustotest.Fake{Result: sampleResult()}
	a := testApp(t, fake)
	model := &scripted{replies: []string{"QUERY: AppLogs | summarize Count=count() by Level"}}

	var out bytes.Buffer
	err := a.ask(context.Background(), model, inProcessTools(t, a), nil, &out, "errors by level?", "")
	require.NoError(t, err)

	assert.Equal(t, "Level | Count\nERROR | 12\nWARN | 3\n", out.String())
	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, "AppLogs | summarize Count=count() by Level", fake.Calls()[0].Text)
	assert.Equal(t, []string{"errors by level?"}, model.prompts)
}

func TestAsk_CreateTablePrintsAcknowledgment(t *testing.T) {
	fake := &kustotest.Fake{}
	a := testApp(t, fake)
	model := &scripted{replies: []string{"CREATE_TABLE: Users\nSCHEMA: Id:int, Name:string"}}

	var out bytes.Buffer
	require.NoError(t, a.ask(context.Background(), model, inProcessTools(t, a), nil, &out, "make a users table", ""))

	assert.Equal(t, "(no rows)\nTable 'Users' created.\n", out.String())
	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, ".create table Users (Id:int, Name:string)", fake.Calls()[0].Text)
}

func TestAsk_RejectedReplyNeverDispatches(t *testing.T) {
	fake := &kustotest.Fake{}
	a := testApp(t, fake)
	model := &scripted{replies: []string{"Sure! Here is a query you could run."}}

	var out bytes.Buffer
	require.NoError(t, a.ask(context.Background(), model, inProcessTools(t, a), nil, &out, "anything", ""))

	assert.Equal(t, "invalid command format\n", out.String())
	assert.Equal(t, 0, fake.CallCount())
}

func TestAsk_JSONContractExport(t *testing.T) {
	fake := &kustotest.Fake{Result: sampleResult()}
	a := testApp(t, fake)
	a.cfg.Orchestrator.Contract = "json"
	model := &scripted{replies: []string{`{"table": [{"Level":"ERROR","Count":"12"},{"Level":"WARN","Count":"3"}], "summary": "Mostly errors."}`}}

	path := filepath.Join(t.TempDir(), "answer.csv")
	var out bytes.Buffer
	require.NoError(t, a.ask(context.Background(), model, inProcessTools(t, a), nil, &out,
		"AppLogs | summarize Count=count() by Level", path))

	assert.JSONEq(t, `{"table":[{"Level":"ERROR","Count":"12"},{"Level":"WARN","Count":"3"}],"summary":"Mostly errors."}`,
		strings.TrimSpace(out.String()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Level,Count\nERROR,12\nWARN,3\n", string(data))
}

func TestAsk_FailedAnswerIsNotExported(t *testing.T) {
	fake := &kustotest.Fake{QueryFunc: func(context.Context, string, string) (*resultset.ResultSet, error) {
		return nil, errors.New("Semantic error: 'Nope' is not a table")
	}}
	a := testApp(t, fake)
	model := &scripted{replies: []string{"QUERY: Nope | take 1"}}

	path := filepath.Join(t.TempDir(), "answer.json")
	var out bytes.Buffer
	require.NoError(t, a.ask(context.Background(), model, inProcessTools(t, a), nil, &out, "q", path))

	assert.Contains(t, out.String(), "operation failed: Semantic error")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAsk_Interactive(t *testing.T) {
	fake := &kustotest.Fake{Result: sampleResult()}
	a := testApp(t, fake)
	model := &scripted{replies: []string{
		"QUERY: AppLogs | take 2",
		"not a command",
	}}

	in := strings.NewReader("first question\n\n  second question  \nQUIT\nnever asked\n")
	var out bytes.Buffer
	require.NoError(t, a.ask(context.Background(), model, inProcessTools(t, a), in, &out, "", ""))

	assert.Equal(t, []string{"first question", "second question"}, model.prompts)
	assert.Equal(t, 1, fake.CallCount())
	text := out.String()
	assert.Contains(t, text, "(marker contract)")
	assert.Contains(t, text, "Level | Count\nERROR | 12")
	assert.Contains(t, text, "invalid command format")
}

func TestAsk_InteractiveKeepsGoingAfterModelError(t *testing.T) {
	a := testApp(t, &kustotest.Fake{Result: sampleResult()})
	model := &scripted{}

	in := strings.NewReader("one\ntwo\n")
	var out bytes.Buffer
	require.NoError(t, a.ask(context.Background(), model, inProcessTools(t, a), in, &out, "", ""))

	assert.Equal(t, 2, model.calls())
	assert.Equal(t, 2, strings.Count(out.String(), "error: language model"))
}

func TestToolCaller_OverHTTP(t *testing.T) {
	fake := &kustotest.Fake{Result: sampleResult()}
	a := testApp(t, fake)
	a.cfg.Orchestrator.ServerURL = startHTTP(t, a)

	tools, closeTools, err := a.toolCaller(context.Background(), false)
	require.NoError(t, err)
	defer closeTools()

	result, err := tools.CallTool(context.Background(), registry.OpRunQuery,
		registry.Arguments(registry.RunQuery{Query: "AppLogs | take 2"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Level | Count\nERROR | 12\nWARN | 3", result.Text())

	model := &scripted{replies: []string{"QUERY: AppLogs | take 2"}}
	var out bytes.Buffer
	require.NoError(t, a.ask(context.Background(), model, tools, nil, &out, "two rows", ""))
	assert.Equal(t, "Level | Count\nERROR | 12\nWARN | 3\n", out.String())
}

func TestToolCaller_InProcessRequiresEngine(t *testing.T) {
	a := testApp(t, &kustotest.Fake{})
	a.cfg.Engine.Database = ""

	_, _, err := a.toolCaller(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.database is required")
}

func TestIsQuit(t *testing.T) {
	for _, w := range []string{"quit", "exit", "q", "Q", "EXIT"} {
		assert.True(t, isQuit(w), w)
	}
	for _, w := range []string{"", "quit now", "qq"} {
		assert.False(t, isQuit(w), w)
	}
}
