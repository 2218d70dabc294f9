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

package kusto

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// Serialize returns a Client that lets one call at a time reach next.
// Concurrent tool-server sessions share a single connection through it.
func Serialize(next Client) Client {
	return &serializedClient{next: next}
}

type serializedClient struct {
	mu   sync.Mutex
	next Client
}

func (s *serializedClient) Query(ctx context.Context, database, query string) (*resultset.ResultSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Query(ctx, database, query)
}

func (s *serializedClient) Mgmt(ctx context.Context, database, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Mgmt(ctx, database, command)
}

func (s *serializedClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Close()
}

// WithLogging returns a Client that logs every call with its duration.
// Query and command text is only logged at debug level.
func WithLogging(next Client, logger *zap.Logger) Client {
	if logger == nil {
		return next
	}
	return &loggingClient{next: next, logger: logger}
}

type loggingClient struct {
	next   Client
	logger *zap.Logger
}

func (l *loggingClient) Query(ctx context.Context, database, query string) (*resultset.ResultSet, error) {
	start := time.Now()
	l.logger.Debug("kusto query", zap.String("database", database), zap.String("kql", query))

	rs, err := l.next.Query(ctx, database, query)
	if err != nil {
		l.logger.Warn("kusto query failed",
			zap.String("database", database),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	var columns, rows int
	if rs != nil {
		columns, rows = len(rs.Columns), len(rs.Rows)
	}
	l.logger.Info("kusto query completed",
		zap.String("database", database),
		zap.Int("columns", columns),
		zap.Int("rows", rows),
		zap.Duration("duration", time.Since(start)),
	)
	return rs, nil
}

func (l *loggingClient) Mgmt(ctx context.Context, database, command string) error {
	start := time.Now()
	l.logger.Debug("kusto command", zap.String("database", database), zap.String("command", command))

	if err := l.next.Mgmt(ctx, database, command); err != nil {
		l.logger.Warn("kusto command failed",
			zap.String("database", database),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	l.logger.Info("kusto command completed",
		zap.String("database", database),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (l *loggingClient) Close() error {
	return l.next.Close()
}
