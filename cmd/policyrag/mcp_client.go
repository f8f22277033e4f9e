package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/viant/jsonrpc"
	streamingclient "github.com/viant/jsonrpc/transport/client/http/streamable"
	mcpschema "github.com/viant/mcp-protocol/schema"
	mcpclient "github.com/viant/mcp/client"

	pmcp "policyrag/mcp"
)

// silentHandler satisfies the client handler contract for a CLI that never
// accepts server-initiated requests.
type silentHandler struct{}

func (silentHandler) Implements(string) bool                                  { return false }
func (silentHandler) Init(context.Context, *mcpschema.ClientCapabilities)     {}
func (silentHandler) OnNotification(context.Context, *jsonrpc.Notification)   {}
func (silentHandler) Notify(context.Context, *jsonrpc.Notification) error     { return nil }
func (silentHandler) NextRequestID() jsonrpc.RequestId                        { return jsonrpc.RequestId(1) }
func (silentHandler) LastRequestID() jsonrpc.RequestId                        { return jsonrpc.RequestId(1) }

func (silentHandler) ListRoots(context.Context, *jsonrpc.TypedRequest[*mcpschema.ListRootsRequest]) (*mcpschema.ListRootsResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("not implemented", nil)
}

func (silentHandler) CreateMessage(context.Context, *jsonrpc.TypedRequest[*mcpschema.CreateMessageRequest]) (*mcpschema.CreateMessageResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("not implemented", nil)
}

func (silentHandler) Elicit(context.Context, *jsonrpc.TypedRequest[*mcpschema.ElicitRequest]) (*mcpschema.ElicitResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("not implemented", nil)
}

func mcpSearch(ctx context.Context, addr string, input *pmcp.SearchInput) (*pmcp.SearchOutput, error) {
	cli, cleanup, err := dialMCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return callToolWithRetry[pmcp.SearchOutput](ctx, cli, "policy_search", input)
}

func mcpAsk(ctx context.Context, addr string, input *pmcp.AskInput) (*pmcp.AskOutput, error) {
	cli, cleanup, err := dialMCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	// Ask drives an LLM completion; replaying it on a flaky link would bill twice.
	return callTool[pmcp.AskOutput](ctx, cli, "policy_ask", input)
}

func mcpStatus(ctx context.Context, addr string) (*pmcp.StatusOutput, error) {
	cli, cleanup, err := dialMCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return callToolWithRetry[pmcp.StatusOutput](ctx, cli, "policy_status", &pmcp.StatusInput{})
}

func dialMCP(ctx context.Context, addr string) (*mcpclient.Client, func(), error) {
	endpoint := mcpEndpoint(addr)
	handler := mcpclient.NewHandler(silentHandler{})
	transport, err := streamingclient.New(ctx, endpoint, streamingclient.WithHandler(handler))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %v: %w", endpoint, err)
	}
	cli := mcpclient.New("policyrag-cli", version, transport)
	if _, err := cli.Initialize(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize mcp session: %w", err)
	}
	return cli, func() { cli.Close() }, nil
}

// mcpEndpoint turns a bare host:port into the server's streamable HTTP URL.
func mcpEndpoint(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/") + "/mcp"
}

func callTool[T any](ctx context.Context, cli *mcpclient.Client, name string, input any) (*T, error) {
	params, err := mcpschema.NewCallToolRequestParams(name, input)
	if err != nil {
		return nil, err
	}
	res, err := cli.CallTool(ctx, params)
	if err != nil {
		return nil, err
	}
	var out T
	if err := unmarshalToolResult(res, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// retrySchedule backs off between attempts of idempotent tool calls.
var retrySchedule = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond}

func callToolWithRetry[T any](ctx context.Context, cli *mcpclient.Client, name string, input any) (*T, error) {
	out, err := callTool[T](ctx, cli, name, input)
	for attempt := 0; err != nil && attempt < len(retrySchedule); attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !transientMCPError(err) {
			return nil, err
		}
		time.Sleep(retrySchedule[attempt])
		out, err = callTool[T](ctx, cli, name, input)
	}
	return out, err
}

func transientMCPError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "temporarily unavailable", "connection reset", "connection refused", "broken pipe"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// unmarshalToolResult surfaces tool-reported errors and decodes the payload,
// preferring structured content over the text fallback.
func unmarshalToolResult(res *mcpschema.CallToolResult, out any) error {
	if res == nil {
		return fmt.Errorf("mcp: empty response")
	}
	if res.IsError != nil && *res.IsError {
		return fmt.Errorf("mcp: %s", contentText(res.Content))
	}
	if res.StructuredContent != nil {
		if v, ok := res.StructuredContent["result"]; ok {
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			return json.Unmarshal(raw, out)
		}
	}
	text := strings.TrimSpace(contentText(res.Content))
	if text == "" {
		return fmt.Errorf("mcp: empty result")
	}
	return json.Unmarshal([]byte(text), out)
}

// contentText extracts the first text element; unknown content shapes are
// probed through a JSON round trip rather than reflection.
func contentText(content []mcpschema.CallToolResultContentElem) string {
	for _, elem := range content {
		switch v := any(elem).(type) {
		case mcpschema.TextContent:
			if v.Text != "" {
				return v.Text
			}
		case *mcpschema.TextContent:
			if v != nil && v.Text != "" {
				return v.Text
			}
		default:
			raw, err := json.Marshal(elem)
			if err != nil {
				continue
			}
			var probe struct {
				Text string `json:"text"`
			}
			if json.Unmarshal(raw, &probe) == nil && probe.Text != "" {
				return probe.Text
			}
		}
	}
	return ""
}
