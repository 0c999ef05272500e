// Package mcp drives a long-lived MCP tool server over newline-delimited
// JSON-RPC on the subprocess's standard streams.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"mcpagent/pkg/queue"
)

const (
	defaultAwaitTimeout  = time.Hour
	defaultShutdownGrace = 5 * time.Second

	// pollInterval is the queue receive granularity. Only the overall
	// timeout bound matters, not the exactness of the interval.
	pollInterval = 100 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	Command       []string      // server command and arguments
	AwaitTimeout  time.Duration // per-call response timeout (default one hour)
	ShutdownGrace time.Duration // wait after SIGTERM before SIGKILL
}

// Client owns one MCP server subprocess: the exclusive writer to its stdin,
// one reader goroutine per output stream, and the correlation id space.
//
// The client enforces no pipelining itself; callers keep a single request
// in flight at a time, so responses with non-matching ids are dropped.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *queue.Queue[string]
	stderr *queue.Queue[string]

	writeMu sync.Mutex
	closed  bool

	nextID atomic.Int64

	awaitTimeout  time.Duration
	shutdownGrace time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// Start launches the MCP server subprocess and begins reading both of its
// output streams. The caller must arrange for Shutdown to run on every
// exit path.
func Start(opts Options) (*Client, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("mcp: no server command configured")
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcp: could not start server command %q: %w", opts.Command[0], err)
	}

	c := newClient(stdin, stdout, stderr, opts)
	c.cmd = cmd
	slog.Info("[MCP] server started", "command", opts.Command, "pid", cmd.Process.Pid)
	return c, nil
}

// newClient wires a client over explicit streams. Start is the normal
// entry point; tests construct clients over in-memory pipes.
func newClient(stdin io.WriteCloser, stdout, stderr io.Reader, opts Options) *Client {
	c := &Client{
		stdin:         stdin,
		stdout:        queue.New[string](),
		stderr:        queue.New[string](),
		awaitTimeout:  opts.AwaitTimeout,
		shutdownGrace: opts.ShutdownGrace,
		done:          make(chan struct{}),
	}
	if c.awaitTimeout <= 0 {
		c.awaitTimeout = defaultAwaitTimeout
	}
	if c.shutdownGrace <= 0 {
		c.shutdownGrace = defaultShutdownGrace
	}

	go queue.ReadLines(stdout, c.stdout)
	go queue.ReadLines(stderr, c.stderr)
	go c.drainStderr()

	return c
}

// drainStderr logs the diagnostic stream continuously so the server never
// blocks on a full pipe. It only logs; it never touches the main flow.
func (c *Client) drainStderr() {
	for {
		line, ok := c.stderr.Get(pollInterval)
		if ok {
			if line != "" {
				slog.Info("[MCP stderr] " + line)
			}
			continue
		}
		select {
		case <-c.done:
			return
		default:
		}
	}
}

// send serializes payload as one JSON line and writes it to the server's
// stdin. A write after shutdown is a no-op, not an error, to tolerate
// shutdown races.
func (c *Client) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mcp: marshal: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	if _, err := c.stdin.Write(data); err != nil {
		return fmt.Errorf("mcp: write: %w", err)
	}
	return nil
}

// awaitResponse polls the stdout queue until a message with the given id
// arrives or the await timeout elapses. Unparsable lines are protocol
// noise: logged and skipped. A response carrying an error member, or a
// timeout, yields the empty marker rather than an error.
func (c *Client) awaitResponse(ctx context.Context, id int64) json.RawMessage {
	deadline := time.Now().Add(c.awaitTimeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			slog.Warn("[MCP] await cancelled", "id", id)
			return emptyResult()
		}

		line, ok := c.stdout.Get(pollInterval)
		if !ok {
			continue
		}

		var msg envelope
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			slog.Debug("[MCP] skipping unparsable line", "error", err)
			continue
		}
		if msg.ID == nil || *msg.ID != id {
			// Single-flight discipline: nothing else is awaited,
			// so mismatched ids are dropped, not requeued.
			continue
		}

		if len(msg.Error) > 0 {
			slog.Error("[MCP] tool call error", "id", id, "error", string(msg.Error))
			return emptyResult()
		}
		if len(msg.Result) == 0 {
			return emptyResult()
		}
		return msg.Result
	}

	slog.Warn("[MCP] timeout waiting for response", "id", id)
	return emptyResult()
}

// CallTool issues a tools/call request and blocks for its response. It
// never fails hard: transport errors, server errors, and timeouts all
// come back as the empty marker so the caller can record the failure and
// keep going.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) json.RawMessage {
	id := c.nextID.Add(1)
	req := request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "tools/call",
		Params: map[string]any{
			"name":      name,
			"arguments": arguments,
		},
	}
	if err := c.send(req); err != nil {
		slog.Error("[MCP] failed to send tools/call", "tool", name, "error", err)
		return emptyResult()
	}
	return c.awaitResponse(ctx, id)
}

// Shutdown requests graceful termination of the subprocess, waits the
// grace period, then forces termination. Safe to call more than once.
func (c *Client) Shutdown() {
	c.writeMu.Lock()
	c.closed = true
	c.writeMu.Unlock()

	c.stopOnce.Do(func() {
		close(c.done)
		if c.stdin != nil {
			_ = c.stdin.Close()
		}

		if c.cmd == nil || c.cmd.Process == nil {
			return
		}

		slog.Info("[MCP] shutting down server", "pid", c.cmd.Process.Pid)
		_ = c.cmd.Process.Signal(syscall.SIGTERM)

		waited := make(chan error, 1)
		go func() { waited <- c.cmd.Wait() }()
		select {
		case <-waited:
		case <-time.After(c.shutdownGrace):
			slog.Warn("[MCP] server did not exit in time, killing", "pid", c.cmd.Process.Pid)
			_ = c.cmd.Process.Kill()
			<-waited
		}
	})
}
