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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/internal/version"
	"github.com/teradata-labs/kqlbridge/pkg/export"
	"github.com/teradata-labs/kqlbridge/pkg/llm"
	"github.com/teradata-labs/kqlbridge/pkg/llm/anthropic"
	"github.com/teradata-labs/kqlbridge/pkg/mcp/client"
	"github.com/teradata-labs/kqlbridge/pkg/mcp/transport"
	"github.com/teradata-labs/kqlbridge/pkg/orchestrator"
)

type askOptions struct {
	inProcess bool
	output    string
}

func newAskCmd(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question with one tool call",
		Long: `Ask a question about the database. Claude turns it into one tool
call (marker contract) or summarizes the result of running it as KQL
(json contract). Without a question, ask reads questions from stdin
until quit, exit or q.

By default the tool server runs as a child process over stdio. Use
--server-url to reach a running HTTP server, or --in-process to skip MCP.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := ""
			if len(args) == 1 {
				question = args[0]
			}
			return a.runAsk(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), question, opts)
		},
	}

	f := cmd.Flags()
	f.String("contract", string(orchestrator.ContractMarker), "Reply contract (marker, json)")
	f.String("server-url", "", "URL of a running HTTP tool server")
	f.String("model", anthropic.DefaultModel, "Claude model")
	f.BoolVar(&opts.inProcess, "in-process", false, "Run the tools in this process instead of over MCP")
	f.StringVarP(&opts.output, "output", "o", "", "Export the answer table (.xlsx, .csv or .json)")
	_ = a.v.BindPFlag("orchestrator.contract", f.Lookup("contract"))
	_ = a.v.BindPFlag("orchestrator.server_url", f.Lookup("server-url"))
	_ = a.v.BindPFlag("llm.model", f.Lookup("model"))
	return cmd
}

func (a *app) runAsk(ctx context.Context, in io.Reader, out io.Writer, question string, opts askOptions) error {
	if err := a.cfg.ValidateLLM(); err != nil {
		return err
	}
	if err := a.cfg.ValidateOrchestrator(); err != nil {
		return err
	}
	if opts.output != "" {
		if question == "" {
			return fmt.Errorf("--output needs a question argument")
		}
		if _, err := export.FormatForPath(opts.output); err != nil {
			return err
		}
	}

	llmCfg := a.cfg.AnthropicConfig()
	llmCfg.Logger = a.logger
	model, err := anthropic.NewClient(ctx, llmCfg)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	tools, closeTools, err := a.toolCaller(ctx, opts.inProcess)
	if err != nil {
		return err
	}
	defer closeTools()

	return a.ask(ctx, model, tools, in, out, question, opts.output)
}

// ask answers question, or runs the interactive loop when it is empty.
func (a *app) ask(ctx context.Context, model llm.Completer, tools orchestrator.ToolCaller, in io.Reader, out io.Writer, question, output string) error {
	contract, err := orchestrator.ParseContract(a.cfg.Orchestrator.Contract)
	if err != nil {
		return err
	}
	orch, err := orchestrator.New(orchestrator.Config{
		LLM:      model,
		Tools:    tools,
		Contract: contract,
		Tables:   a.cfg.Orchestrator.Tables,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}

	styled := isTerminal(out)
	if question == "" {
		return interactive(ctx, orch, in, out, styled)
	}

	ans, err := orch.Ask(ctx, question)
	if err != nil {
		return err
	}
	printAnswer(out, ans, styled)

	if output != "" && ans.Outcome == orchestrator.OutcomeAnswered {
		if err := export.WriteFile(output, export.NewTable(ans.Columns, ans.Table, ans.Summary)); err != nil {
			return err
		}
		a.logger.Info("answer exported", zap.String("path", output))
	}
	return nil
}

func isQuit(line string) bool {
	switch strings.ToLower(line) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

// interactive reads one question per line until EOF or a quit word. A
// failed question is reported and the loop goes on.
func interactive(ctx context.Context, orch *orchestrator.Orchestrator, in io.Reader, out io.Writer, styled bool) error {
	fmt.Fprintf(out, "Ask about your data (%s contract). Type quit to exit.\n", orch.Contract())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isQuit(line) {
			return nil
		}

		ans, err := orch.Ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, "error:", err)
			continue
		}
		printAnswer(out, ans, styled)
	}
}

// toolCaller connects the orchestrator to the tools. The returned func
// releases the connection.
func (a *app) toolCaller(ctx context.Context, inProcess bool) (orchestrator.ToolCaller, func(), error) {
	if inProcess {
		if err := a.cfg.ValidateEngine(); err != nil {
			return nil, nil, err
		}
		b, exec, err := a.newBridge()
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = exec.Close() }, nil
	}

	var (
		t   transport.Transport
		err error
	)
	if url := a.cfg.Orchestrator.ServerURL; url != "" {
		t, err = transport.NewStreamableHTTPTransport(transport.StreamableHTTPConfig{
			Endpoint: url,
			Logger:   a.logger,
		})
	} else {
		t, err = a.spawnServer()
	}
	if err != nil {
		return nil, nil, err
	}

	c, err := connect(ctx, t, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

// spawnServer runs "kqlbridge serve" over stdio with this invocation's
// config file and logging settings.
func (a *app) spawnServer() (transport.Transport, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	args := []string{"serve", "--transport", "stdio", "--log-level", a.cfg.Logging.Level}
	if a.cfgFile != "" {
		args = append(args, "--config", a.cfgFile)
	}
	if a.cfg.Logging.File != "" {
		args = append(args, "--log-file", a.cfg.Logging.File)
	}
	return transport.NewStdioTransport(transport.StdioConfig{
		Command: exe,
		Args:    args,
		Logger:  a.logger,
	})
}

// connect opens an MCP session over t. On failure t is closed.
func connect(ctx context.Context, t transport.Transport, logger *zap.Logger) (*client.Client, error) {
	c, err := client.NewClient(client.Config{
		Transport: t,
		Logger:    logger,
		Name:      "kqlbridge-ask",
		Version:   version.Get(),
	})
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	info, err := c.Initialize(ctx)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize MCP session: %w", err)
	}
	logger.Debug("connected to tool server",
		zap.String("server", info.ServerInfo.Name),
		zap.String("version", info.ServerInfo.Version),
	)
	return c, nil
}
