package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrHandshakeTimeout reports that the server did not become ready within
// the handshake window. The subprocess has already been shut down when
// this error is returned.
var ErrHandshakeTimeout = errors.New("mcp: handshake timed out")

const defaultHandshakeTimeout = time.Hour

// Handshake drives the initialize exchange: it sends the initialize
// request, waits until both the initialize response and the tools_ready
// notification have been seen (in either order), then acknowledges with a
// notifications/initialized notification.
//
// It returns the tool names the server advertised. The list is fixed for
// the client lifetime; tools are discovered exactly once.
func (c *Client) Handshake(timeout time.Duration) ([]string, error) {
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	slog.Info("[MCP] performing handshake")

	initID := c.nextID.Add(1)
	init := request{
		JSONRPC: "2.0",
		ID:      initID,
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{},
			"clientInfo": map[string]any{
				"name":    "mcpagent",
				"version": "1.0.0",
			},
		},
	}
	if err := c.send(init); err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("mcp: send initialize: %w", err)
	}

	var (
		gotInit  bool
		gotTools bool
		tools    []string
	)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		line, ok := c.stdout.Get(pollInterval)
		if !ok {
			continue
		}

		var msg envelope
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			slog.Debug("[MCP] skipping unparsable handshake line", "error", err)
			continue
		}

		switch {
		case msg.ID != nil && *msg.ID == initID:
			gotInit = true
			slog.Info("[MCP] initialize acknowledged")
		case msg.Method == "tools_ready":
			var params struct {
				Tools []string `json:"tools"`
			}
			if len(msg.Params) > 0 {
				if err := json.Unmarshal(msg.Params, &params); err != nil {
					slog.Warn("[MCP] malformed tools_ready params", "error", err)
				}
			}
			tools = params.Tools
			gotTools = true
			slog.Info("[MCP] server reports tools ready", "tools", tools)
		}

		if gotInit && gotTools {
			if err := c.send(notification{JSONRPC: "2.0", Method: "notifications/initialized"}); err != nil {
				slog.Warn("[MCP] failed to send initialized notification", "error", err)
			}
			slog.Info("[MCP] handshake complete", "toolCount", len(tools))
			return tools, nil
		}
	}

	c.Shutdown()
	return nil, ErrHandshakeTimeout
}
