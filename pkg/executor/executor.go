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

// Package executor turns typed operations into engine calls.
//
// RunQuery is idempotent. CreateTable and IngestInline are not: submitting
// the same ingestion twice ingests the payload twice, and the executor does
// not deduplicate.
package executor

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/pkg/kusto"
	"github.com/teradata-labs/kqlbridge/pkg/registry"
	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// Config configures an Executor.
type Config struct {
	Client   kusto.Client // required
	Database string       // required
	Logger   *zap.Logger
}

// Executor owns the engine client for the lifetime of the process.
type Executor struct {
	client   kusto.Client
	database string
	logger   *zap.Logger
	handlers map[string]handler
}

type handler func(ctx context.Context, op registry.Operation) (*resultset.ResultSet, error)

// New creates an Executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &Executor{
		client:   cfg.Client,
		database: cfg.Database,
		logger:   cfg.Logger,
	}
	e.handlers = map[string]handler{
		registry.OpRunQuery:     e.runQuery,
		registry.OpCreateTable:  e.createTable,
		registry.OpIngestInline: e.ingestInline,
	}
	return e, nil
}

// Operations lists the operation names the executor can run, sorted.
func (e *Executor) Operations() []string {
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs op against the engine. A non-nil error is always a
// *BridgeError. CreateTable and IngestInline return an empty ResultSet on
// success.
func (e *Executor) Execute(ctx context.Context, op registry.Operation) (*resultset.ResultSet, error) {
	if op == nil {
		return nil, &BridgeError{Kind: KindUnsupported, Message: "no operation"}
	}
	h, ok := e.handlers[op.OperationName()]
	if !ok {
		return nil, &BridgeError{Kind: KindUnsupported, Message: fmt.Sprintf("unsupported operation %q", op.OperationName())}
	}
	return h(ctx, op)
}

// Close releases the engine client.
func (e *Executor) Close() error {
	return e.client.Close()
}

func (e *Executor) runQuery(ctx context.Context, op registry.Operation) (*resultset.ResultSet, error) {
	q := op.(registry.RunQuery)

	rs, err := e.client.Query(ctx, e.database, q.Query)
	if err != nil {
		return nil, newBridgeError(KindQueryFailed, err)
	}
	if rs == nil {
		rs = resultset.Empty()
	}
	if err := rs.Validate(); err != nil {
		return nil, newBridgeError(KindQueryFailed, fmt.Errorf("malformed result: %w", err))
	}

	e.logger.Debug("query executed", zap.Int("rows", len(rs.Rows)))
	return rs, nil
}

func (e *Executor) createTable(ctx context.Context, op registry.Operation) (*resultset.ResultSet, error) {
	ct := op.(registry.CreateTable)

	if err := e.client.Mgmt(ctx, e.database, CreateTableCommand(ct)); err != nil {
		return nil, newBridgeError(KindTableCreateFailed, err)
	}

	e.logger.Info("table created", zap.String("table", ct.Table), zap.Int("columns", len(ct.Columns)))
	return resultset.Empty(), nil
}

func (e *Executor) ingestInline(ctx context.Context, op registry.Operation) (*resultset.ResultSet, error) {
	in := op.(registry.IngestInline)

	if err := e.client.Mgmt(ctx, e.database, IngestCommand(in)); err != nil {
		return nil, newBridgeError(KindIngestFailed, err)
	}

	e.logger.Info("inline ingestion submitted",
		zap.String("table", in.Table),
		zap.String("format", string(in.Format)),
		zap.Int("payload_bytes", len(in.Payload)),
	)
	return resultset.Empty(), nil
}
