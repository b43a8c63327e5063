package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

// stdioTransport launches a local tool server process and exchanges
// newline-delimited JSON-RPC messages over its pipes.
type stdioTransport struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	scanner *bufio.Scanner
	encoder *json.Encoder
	mu      sync.Mutex
	closed  atomic.Bool
}

func newStdioTransport(cfg *chattype.McpServer) (*stdioTransport, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}

	t := &stdioTransport{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		scanner: bufio.NewScanner(stdout),
		encoder: json.NewEncoder(stdin),
	}
	t.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	go drainStderr(cfg.Name, stderr)

	return t, nil
}

// drainStderr logs server diagnostics; local servers are chatty on stderr.
func drainStderr(server string, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		slog.Debug("mcp server stderr", "server", server, "line", scanner.Text())
	}
}

// Send writes one newline-delimited message.
func (t *stdioTransport) Send(ctx context.Context, message *Message) error {
	if t.closed.Load() {
		return fmt.Errorf("transport is closed")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	message.Jsonrpc = "2.0"
	if err := t.encoder.Encode(message); err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return nil
}

// Receive reads the next message, honoring context cancellation.
func (t *stdioTransport) Receive(ctx context.Context) (*Message, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("transport is closed")
	}

	type result struct {
		msg *Message
		err error
	}
	ch := make(chan result, 1)

	go func() {
		if !t.scanner.Scan() {
			if err := t.scanner.Err(); err != nil {
				ch <- result{nil, fmt.Errorf("scanner error: %w", err)}
			} else {
				ch <- result{nil, io.EOF}
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(t.scanner.Bytes(), &msg); err != nil {
			ch <- result{nil, fmt.Errorf("failed to unmarshal message: %w", err)}
			return
		}
		ch <- result{&msg, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.msg, r.err
	}
}

// Close shuts the process down, forcefully if it ignores stdin closing.
func (t *stdioTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		t.cmd.Process.Signal(os.Interrupt)
		done := make(chan error, 1)
		go func() { done <- t.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.cmd.Process.Kill()
			<-done
		}
	}
	if t.stdout != nil {
		t.stdout.Close()
	}
	return nil
}
