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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/klauspost/compress/gzhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/internal/version"
	"github.com/teradata-labs/kqlbridge/pkg/bridge"
	"github.com/teradata-labs/kqlbridge/pkg/config"
	"github.com/teradata-labs/kqlbridge/pkg/executor"
	"github.com/teradata-labs/kqlbridge/pkg/kusto"
	"github.com/teradata-labs/kqlbridge/pkg/mcp/server"
	"github.com/teradata-labs/kqlbridge/pkg/mcp/transport"
	"github.com/teradata-labs/kqlbridge/pkg/registry"
)

const serverName = "kqlbridge"

var serverInstructions = heredoc.Doc(`
	Tools for one Azure Data Explorer database.
	Use adx_query to read data with KQL, adx_create_table to create a table
	and adx_ingest_inline to append a few rows of csv or json.
	Every tool takes its fields wrapped in an "input" object.
`)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server",
		Long: heredoc.Doc(`
			Run the MCP tool server over stdio (default) or streamable HTTP.

			The HTTP endpoint has no authentication and should stay on a
			loopback address.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("transport", config.TransportStdio, "Transport (stdio, http)")
	f.String("host", "127.0.0.1", "HTTP listen host")
	f.Int("port", 8000, "HTTP listen port")
	f.String("path", "/mcp", "HTTP endpoint path")
	_ = a.v.BindPFlag("server.transport", f.Lookup("transport"))
	_ = a.v.BindPFlag("server.host", f.Lookup("host"))
	_ = a.v.BindPFlag("server.port", f.Lookup("port"))
	_ = a.v.BindPFlag("server.path", f.Lookup("path"))
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	if err := a.cfg.ValidateEngine(); err != nil {
		return err
	}
	if err := a.cfg.ValidateServer(); err != nil {
		return err
	}

	b, exec, err := a.newBridge()
	if err != nil {
		return err
	}
	defer func() { _ = exec.Close() }()

	mcpServer := newMCPServer(b, a.logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Server.Transport == config.TransportHTTP {
		return a.serveHTTP(ctx, mcpServer)
	}

	a.logger.Info("MCP server ready on stdio",
		zap.String("cluster", a.cfg.Engine.ClusterURI),
		zap.String("database", a.cfg.Engine.Database),
	)
	err = mcpServer.Serve(ctx, transport.NewStdioServerTransport(os.Stdin, os.Stdout))
	if err != nil && ctx.Err() != nil {
		a.logger.Info("server stopped gracefully")
		return nil
	}
	return err
}

// newBridge connects to the cluster and builds the tool provider. The
// executor owns the engine client; close it when done.
func (a *app) newBridge() (*bridge.Bridge, *executor.Executor, error) {
	kc, err := a.cfg.KustoConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := a.newEngine(kc, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", kc.ClusterURI, err)
	}
	if a.cfg.Engine.Serialize {
		client = kusto.Serialize(client)
	}
	client = kusto.WithLogging(client, a.logger)

	exec, err := executor.New(executor.Config{
		Client:   client,
		Database: a.cfg.Engine.Database,
		Logger:   a.logger,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return bridge.New(registry.New(), exec, a.logger), exec, nil
}

func newMCPServer(provider server.ToolProvider, logger *zap.Logger) *server.MCPServer {
	return server.NewMCPServer(serverName, version.Get(), logger,
		server.WithToolProvider(provider),
		server.WithInstructions(serverInstructions),
	)
}

// newHTTPHandler mounts the MCP endpoint. The returned func stops the
// session reaper.
func newHTTPHandler(cfg config.ServerConfig, mcpServer *server.MCPServer, logger *zap.Logger) (http.Handler, func(), error) {
	endpoint, err := transport.NewStreamableHTTPServer(transport.StreamableHTTPServerConfig{
		Handler:    mcpServer.HandleMessage,
		Logger:     logger,
		SessionTTL: cfg.SessionTTL,
	})
	if err != nil {
		return nil, nil, err
	}

	var h http.Handler = endpoint
	if cfg.Compress {
		h = gzhttp.GzipHandler(h)
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, h)
	return mux, endpoint.Close, nil
}

func (a *app) serveHTTP(ctx context.Context, mcpServer *server.MCPServer) error {
	handler, closeEndpoint, err := newHTTPHandler(a.cfg.Server, mcpServer, a.logger)
	if err != nil {
		return err
	}
	defer closeEndpoint()

	addr := a.cfg.Addr()
	transport.WarnIfNotLocalhost(a.logger, addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	a.logger.Info("MCP server listening",
		zap.String("url", "http://"+addr+a.cfg.Server.Path),
		zap.Bool("compress", a.cfg.Server.Compress),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		a.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
