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

// Package kusto connects the bridge to an Azure Data Explorer cluster.
//
// Client is the only surface the executor sees. NewClient builds the real
// implementation on azure-kusto-go; Serialize and WithLogging decorate any
// Client.
package kusto

import (
	"context"
	"fmt"
	"strings"

	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// Client runs queries and control commands against one cluster.
type Client interface {
	// Query runs a KQL query and returns its primary result.
	Query(ctx context.Context, database, query string) (*resultset.ResultSet, error)

	// Mgmt runs a control command (".create", ".ingest", ...).
	Mgmt(ctx context.Context, database, command string) error

	// Close releases the connection.
	Close() error
}

// AuthMode selects how the client authenticates to the cluster.
type AuthMode string

const (
	// AuthAppKey uses an Entra ID application id and secret.
	AuthAppKey AuthMode = "app_key"
	// AuthAzCLI reuses the token of a logged-in Azure CLI.
	AuthAzCLI AuthMode = "az_cli"
)

// ParseAuthMode converts a configuration value into an AuthMode.
func ParseAuthMode(s string) (AuthMode, error) {
	switch mode := AuthMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case AuthAppKey, AuthAzCLI:
		return mode, nil
	case "":
		return "", fmt.Errorf("auth mode is required (app_key or az_cli)")
	default:
		return "", fmt.Errorf("unknown auth mode %q (must be app_key or az_cli)", s)
	}
}

// Config holds the connection settings of a cluster.
type Config struct {
	ClusterURI   string
	AuthMode     AuthMode
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Validate checks that the settings required by the auth mode are present.
func (c Config) Validate() error {
	if c.ClusterURI == "" {
		return fmt.Errorf("cluster URI is required")
	}
	if !strings.HasPrefix(c.ClusterURI, "https://") {
		return fmt.Errorf("cluster URI must start with https://, got %q", c.ClusterURI)
	}
	switch c.AuthMode {
	case AuthAppKey:
		if c.ClientID == "" {
			return fmt.Errorf("client ID is required for app_key auth")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("client secret is required for app_key auth")
		}
		if c.TenantID == "" {
			return fmt.Errorf("tenant ID is required for app_key auth")
		}
	case AuthAzCLI:
		// Tenant is optional.
	default:
		_, err := ParseAuthMode(string(c.AuthMode))
		return err
	}
	return nil
}

// ServiceError is a failure reported by the cluster or by the connection to
// it. Its message is the engine's own text.
type ServiceError struct {
	Op  string // "query" or "mgmt"
	Err error
}

func (e *ServiceError) Error() string {
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
