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
	"errors"
	"fmt"
	"strings"

	azkusto "github.com/Azure/azure-kusto-go/kusto"
	kustoerrors "github.com/Azure/azure-kusto-go/kusto/data/errors"
	"github.com/Azure/azure-kusto-go/kusto/data/table"
	"github.com/Azure/azure-kusto-go/kusto/data/value"
	"github.com/Azure/azure-kusto-go/kusto/kql"
	"go.uber.org/zap"

	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// AzureClient implements Client with azure-kusto-go.
type AzureClient struct {
	client *azkusto.Client
	logger *zap.Logger
}

// NewClient connects to the cluster described by cfg. Authentication
// happens lazily on the first request.
func NewClient(cfg Config, logger *zap.Logger) (*AzureClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kusto config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	kcsb := azkusto.NewConnectionStringBuilder(cfg.ClusterURI)
	switch cfg.AuthMode {
	case AuthAppKey:
		kcsb = kcsb.WithAadAppKey(cfg.ClientID, cfg.ClientSecret, cfg.TenantID)
	case AuthAzCLI:
		kcsb = kcsb.WithAzCli()
		if cfg.TenantID != "" {
			kcsb.AuthorityId = cfg.TenantID
		}
	}

	client, err := azkusto.New(kcsb)
	if err != nil {
		return nil, fmt.Errorf("create kusto client: %w", err)
	}

	logger.Info("kusto client created",
		zap.String("cluster", cfg.ClusterURI),
		zap.String("auth_mode", string(cfg.AuthMode)),
	)
	return &AzureClient{client: client, logger: logger}, nil
}

// Query implements Client.
func (c *AzureClient) Query(ctx context.Context, database, query string) (*resultset.ResultSet, error) {
	iter, err := c.client.Query(ctx, database, kql.New("").AddUnsafe(query))
	if err != nil {
		return nil, &ServiceError{Op: "query", Err: err}
	}
	defer iter.Stop()

	rs := &resultset.ResultSet{Columns: []string{}, Rows: [][]resultset.Value{}}
	var inline []string
	err = iter.DoOnRowOrError(func(row *table.Row, inlineErr *kustoerrors.Error) error {
		if inlineErr != nil {
			inline = append(inline, inlineErr.Error())
			return nil
		}
		if len(rs.Columns) == 0 {
			rs.Columns = row.ColumnNames()
		}
		values := make([]resultset.Value, len(row.Values))
		for i, v := range row.Values {
			values[i] = convertValue(v)
		}
		rs.Rows = append(rs.Rows, values)
		return nil
	})
	if err != nil {
		return nil, &ServiceError{Op: "query", Err: err}
	}
	if len(inline) > 0 {
		return nil, &ServiceError{Op: "query", Err: errors.New(strings.Join(inline, "; "))}
	}
	return rs, nil
}

// Mgmt implements Client. The command's own result table is drained and
// discarded.
func (c *AzureClient) Mgmt(ctx context.Context, database, command string) error {
	iter, err := c.client.Mgmt(ctx, database, kql.New("").AddUnsafe(command))
	if err != nil {
		return &ServiceError{Op: "mgmt", Err: err}
	}
	defer iter.Stop()

	var inline []string
	err = iter.DoOnRowOrError(func(_ *table.Row, inlineErr *kustoerrors.Error) error {
		if inlineErr != nil {
			inline = append(inline, inlineErr.Error())
		}
		return nil
	})
	if err != nil {
		return &ServiceError{Op: "mgmt", Err: err}
	}
	if len(inline) > 0 {
		return &ServiceError{Op: "mgmt", Err: errors.New(strings.Join(inline, "; "))}
	}
	return nil
}

// Close implements Client.
func (c *AzureClient) Close() error {
	return c.client.Close()
}

// convertValue maps a Kusto cell onto the resultset value union. Types
// without a variant of their own (decimal, guid, timespan) keep the
// engine's textual form.
func convertValue(v value.Kusto) resultset.Value {
	switch tv := v.(type) {
	case value.Bool:
		if !tv.Valid {
			return resultset.Null()
		}
		return resultset.Bool(tv.Value)
	case value.Int:
		if !tv.Valid {
			return resultset.Null()
		}
		return resultset.Int(int64(tv.Value))
	case value.Long:
		if !tv.Valid {
			return resultset.Null()
		}
		return resultset.Int(tv.Value)
	case value.Real:
		if !tv.Valid {
			return resultset.Null()
		}
		return resultset.Float(tv.Value)
	case value.String:
		if !tv.Valid {
			return resultset.Null()
		}
		return resultset.String(tv.Value)
	case value.DateTime:
		if !tv.Valid {
			return resultset.Null()
		}
		return resultset.DateTime(tv.Value)
	case value.Dynamic:
		if !tv.Valid {
			return resultset.Null()
		}
		return resultset.Dynamic(tv.Value)
	case value.Decimal:
		if !tv.Valid {
			return resultset.Null()
		}
		return resultset.String(tv.String())
	case value.GUID:
		if !tv.Valid {
			return resultset.Null()
		}
		return resultset.String(tv.String())
	case value.Timespan:
		if !tv.Valid {
			return resultset.Null()
		}
		return resultset.String(tv.String())
	case nil:
		return resultset.Null()
	default:
		return resultset.String(v.String())
	}
}
