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

// Package kustotest provides an in-memory kusto.Client for tests.
package kustotest

import (
	"context"
	"sync"

	"github.com/teradata-labs/kqlbridge/pkg/resultset"
)

// Call records one request received by a Fake.
type Call struct {
	Kind     string // "query" or "mgmt"
	Database string
	Text     string
}

// Fake is a scripted kusto.Client. QueryFunc and MgmtFunc are optional;
// without them queries return Result (or an empty result) and commands
// succeed.
type Fake struct {
	Result    *resultset.ResultSet
	QueryFunc func(ctx context.Context, database, query string) (*resultset.ResultSet, error)
	MgmtFunc  func(ctx context.Context, database, command string) error

	mu     sync.Mutex
	calls  []Call
	closed bool
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// Query implements kusto.Client.
func (f *Fake) Query(ctx context.Context, database, query string) (*resultset.ResultSet, error) {
	f.record(Call{Kind: "query", Database: database, Text: query})
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, database, query)
	}
	if f.Result != nil {
		return f.Result, nil
	}
	return resultset.Empty(), nil
}

// Mgmt implements kusto.Client.
func (f *Fake) Mgmt(ctx context.Context, database, command string) error {
	f.record(Call{Kind: "mgmt", Database: database, Text: command})
	if f.MgmtFunc != nil {
		return f.MgmtFunc(ctx, database, command)
	}
	return nil
}

// Close implements kusto.Client.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many requests reached the fake.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
