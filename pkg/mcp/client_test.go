package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPipes wires a client to an in-memory fake server.
type testPipes struct {
	client *Client
	// requests is what the client wrote to the server's stdin.
	requests *bufio.Scanner
	// serverOut writes lines the client will read as server stdout.
	serverOut *io.PipeWriter
	serverErr *io.PipeWriter
}

func newTestPipes(t *testing.T, opts Options) *testPipes {
	t.Helper()

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	c := newClient(stdinW, stdoutR, stderrR, opts)
	t.Cleanup(func() {
		c.Shutdown()
		stdoutW.Close()
		stderrW.Close()
	})

	return &testPipes{
		client:    c,
		requests:  bufio.NewScanner(stdinR),
		serverOut: stdoutW,
		serverErr: stderrW,
	}
}

func (p *testPipes) readRequest(t *testing.T) envelope {
	t.Helper()
	require.True(t, p.requests.Scan(), "expected a request line from the client")
	var msg envelope
	require.NoError(t, json.Unmarshal(p.requests.Bytes(), &msg))
	return msg
}

func (p *testPipes) writeLine(t *testing.T, line string) {
	t.Helper()
	_, err := p.serverOut.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func TestCallToolRoundTrip(t *testing.T) {
	p := newTestPipes(t, Options{AwaitTimeout: 5 * time.Second})

	done := make(chan json.RawMessage, 1)
	go func() {
		done <- p.client.CallTool(context.Background(), "messages", map[string]any{
			"method": "get_unread_messages",
			"params": map[string]any{},
		})
	}()

	req := p.readRequest(t)
	require.NotNil(t, req.ID)
	assert.Equal(t, int64(1), *req.ID)
	assert.Equal(t, "tools/call", req.Method)

	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	require.NoError(t, json.Unmarshal(req.Params, &params))
	assert.Equal(t, "messages", params.Name)

	// Interleave protocol noise before the real response: a malformed
	// line, a notification, and a response for an unrelated id.
	p.writeLine(t, "this is not json")
	p.writeLine(t, `{"jsonrpc":"2.0","method":"log","params":{"msg":"hi"}}`)
	p.writeLine(t, `{"jsonrpc":"2.0","id":99,"result":{"stale":true}}`)
	p.writeLine(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"messages":[]}}`, *req.ID))

	select {
	case result := <-done:
		assert.JSONEq(t, `{"messages":[]}`, string(result))
	case <-time.After(5 * time.Second):
		t.Fatal("CallTool did not return")
	}
}

func TestCallToolServerErrorYieldsEmptyMarker(t *testing.T) {
	p := newTestPipes(t, Options{AwaitTimeout: 5 * time.Second})

	done := make(chan json.RawMessage, 1)
	go func() {
		done <- p.client.CallTool(context.Background(), "messages", nil)
	}()

	req := p.readRequest(t)
	p.writeLine(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":-32000,"message":"boom"}}`, *req.ID))

	select {
	case result := <-done:
		assert.JSONEq(t, `{}`, string(result))
	case <-time.After(5 * time.Second):
		t.Fatal("CallTool did not return")
	}
}

func TestCallToolTimeoutYieldsEmptyMarker(t *testing.T) {
	p := newTestPipes(t, Options{AwaitTimeout: 200 * time.Millisecond})

	// Drain the request so the write does not block; never respond.
	go p.readRequest(t)

	result := p.client.CallTool(context.Background(), "messages", nil)
	assert.JSONEq(t, `{}`, string(result))
}

func TestCorrelationIDsAreMonotonic(t *testing.T) {
	p := newTestPipes(t, Options{AwaitTimeout: 5 * time.Second})

	for want := int64(1); want <= 3; want++ {
		done := make(chan json.RawMessage, 1)
		go func() {
			done <- p.client.CallTool(context.Background(), "messages", nil)
		}()

		req := p.readRequest(t)
		require.NotNil(t, req.ID)
		assert.Equal(t, want, *req.ID)
		p.writeLine(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{}}`, *req.ID))
		<-done
	}
}

func TestSendAfterShutdownIsNoop(t *testing.T) {
	p := newTestPipes(t, Options{AwaitTimeout: time.Second})

	p.client.Shutdown()

	// The pipe has been closed; a real write would error. The guarded
	// write must silently drop the message instead.
	err := p.client.send(notification{JSONRPC: "2.0", Method: "notifications/initialized"})
	assert.NoError(t, err)
}

func TestStartRejectsEmptyCommand(t *testing.T) {
	_, err := Start(Options{})
	require.Error(t, err)
}
