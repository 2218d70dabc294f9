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

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

const maxLineSize = 16 * 1024 * 1024

type line struct {
	data []byte
	err  error
}

// StdioServerTransport is the server end of the stdio transport: requests
// arrive one per line on r, responses are written one per line to w.
//
// A single reader goroutine feeds Receive so that a cancelled Receive never
// loses a line or leaks a blocked read.
type StdioServerTransport struct {
	in  *bufio.Reader
	out io.Writer

	mu     sync.Mutex
	closed bool

	lines chan line
	start sync.Once
}

// NewStdioServerTransport wraps r and w, typically os.Stdin and os.Stdout.
func NewStdioServerTransport(r io.Reader, w io.Writer) *StdioServerTransport {
	return &StdioServerTransport{
		in:    bufio.NewReaderSize(r, 64*1024),
		out:   w,
		lines: make(chan line, 1),
	}
}

func (t *StdioServerTransport) readLoop() {
	defer close(t.lines)
	for {
		data, err := t.in.ReadBytes('\n')
		if len(data) > maxLineSize {
			t.lines <- line{err: fmt.Errorf("message exceeds %d bytes", maxLineSize)}
			return
		}
		if msg := trimLine(data); len(msg) > 0 {
			t.lines <- line{data: msg}
		}
		if err != nil {
			t.lines <- line{err: err}
			return
		}
	}
}

// Send writes message and a trailing newline.
func (t *StdioServerTransport) Send(_ context.Context, message []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	buf := make([]byte, 0, len(message)+1)
	buf = append(buf, message...)
	buf = append(buf, '\n')
	if _, err := t.out.Write(buf); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Receive returns the next non-blank line. It returns io.EOF once the
// input is exhausted.
func (t *StdioServerTransport) Receive(ctx context.Context) ([]byte, error) {
	t.start.Do(func() { go t.readLoop() })

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case l, ok := <-t.lines:
		if !ok {
			return nil, io.EOF
		}
		if l.err == io.EOF {
			return nil, io.EOF
		}
		if l.err != nil {
			return nil, fmt.Errorf("read message: %w", l.err)
		}
		return l.data, nil
	}
}

// Close stops Send and Receive. The wrapped streams are left open.
func (t *StdioServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
