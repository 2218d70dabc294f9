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

// Package transport moves newline-free JSON-RPC messages between an MCP
// client and server. Server side: stdio and streamable HTTP. Client side:
// a subprocess over stdio and streamable HTTP.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("transport closed")

// Transport carries one JSON-RPC message per Send/Receive.
type Transport interface {
	// Send writes one message.
	Send(ctx context.Context, message []byte) error

	// Receive blocks until the next message arrives.
	Receive(ctx context.Context) ([]byte, error)

	Close() error
}

// IsClosed reports whether err means the peer or the transport has gone
// away, as opposed to a failure worth reporting.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrClosed)
}

// trimLine strips the line terminator from a message read off a stream.
// A blank or whitespace-only line yields nil.
func trimLine(line []byte) []byte {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
