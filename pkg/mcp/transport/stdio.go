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
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StdioConfig describes the tool server process to launch.
type StdioConfig struct {
	Command string
	Args    []string
	Env     map[string]string // added to the current environment
	Dir     string
	Logger  *zap.Logger

	// ShutdownTimeout bounds the wait for the process after stdin is
	// closed. Zero means five seconds.
	ShutdownTimeout time.Duration
}

// StdioTransport is the client end of the stdio transport. It owns the
// server process for its lifetime.
type StdioTransport struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool

	lines chan line
}

// NewStdioTransport starts the configured process.
func NewStdioTransport(config StdioConfig) (*StdioTransport, error) {
	if config.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}

	// #nosec G204 -- the command comes from local configuration
	cmd := exec.Command(config.Command, config.Args...)
	cmd.Dir = config.Dir
	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", config.Command, err)
	}

	t := &StdioTransport{
		cmd:     cmd,
		stdin:   stdin,
		logger:  config.Logger,
		timeout: config.ShutdownTimeout,
		lines:   make(chan line, 16),
	}
	go t.readStdout(stdout)
	go t.forwardStderr(stderr)

	config.Logger.Info("tool server started",
		zap.String("command", config.Command),
		zap.Strings("args", config.Args),
		zap.Int("pid", cmd.Process.Pid),
	)
	return t, nil
}

func (t *StdioTransport) readStdout(r io.Reader) {
	defer close(t.lines)
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		data, err := br.ReadBytes('\n')
		if msg := trimLine(data); len(msg) > 0 {
			t.lines <- line{data: msg}
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, os.ErrClosed) {
				t.lines <- line{err: err}
			}
			return
		}
	}
}

// forwardStderr relays the server's log lines at debug level.
func (t *StdioTransport) forwardStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		t.logger.Debug("tool server", zap.String("stderr", scanner.Text()))
	}
}

// Send writes one message to the server's stdin.
func (t *StdioTransport) Send(ctx context.Context, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	buf := append(append(make([]byte, 0, len(message)+1), message...), '\n')
	if _, err := t.stdin.Write(buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Receive returns the next line the server wrote, or io.EOF after the
// server exits.
func (t *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case l, ok := <-t.lines:
		if !ok {
			return nil, io.EOF
		}
		if l.err != nil {
			return nil, fmt.Errorf("read message: %w", l.err)
		}
		return l.data, nil
	}
}

// Close closes the server's stdin and waits for it to exit, killing it
// after the shutdown timeout.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	_ = t.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.logger.Warn("tool server exited with error", zap.Error(err))
		}
	case <-time.After(t.timeout):
		t.logger.Warn("tool server did not exit, killing it", zap.Int("pid", t.cmd.Process.Pid))
		_ = t.cmd.Process.Kill()
		<-done
	}
	return nil
}
