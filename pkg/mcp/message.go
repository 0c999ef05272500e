package mcp

import "encoding/json"

// ProtocolVersion is the MCP protocol revision sent during initialize.
const ProtocolVersion = "2024-11-05"

// request is an outbound JSON-RPC request. Correlation ids are positive
// integers, unique for the client lifetime, assigned at send time.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// notification is an outbound JSON-RPC notification; it carries no id and
// never receives a response.
type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// envelope is the inbound message shape. It covers all three JSON-RPC
// message kinds: a response carries ID plus Result or Error, a server
// notification carries Method plus Params.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// emptyResult is the marker returned for failed, errored, or timed-out
// calls. Callers treat it as "tool call failed, proceed regardless".
func emptyResult() json.RawMessage {
	return json.RawMessage("{}")
}
