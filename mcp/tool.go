package mcp

import (
	"context"
	_ "embed"
	"encoding/json"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"
)

//go:embed tools/policy_search.md
var descSearch string

//go:embed tools/policy_ask.md
var descAsk string

//go:embed tools/policy_status.md
var descStatus string

func registerTools(registry *protoserver.Registry, h *Handler) error {
	if err := registerTool(registry, "policy_search", descSearch, h.search); err != nil {
		return err
	}
	if err := registerTool(registry, "policy_ask", descAsk, h.ask); err != nil {
		return err
	}
	return registerTool(registry, "policy_status", descStatus, h.status)
}

// registerTool adapts a typed handler method to the protocol result shape.
func registerTool[I, O any](registry *protoserver.Registry, name, description string, invoke func(context.Context, I) (O, error)) error {
	return protoserver.RegisterTool[I, O](registry, name, description, func(ctx context.Context, in I) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := invoke(ctx, in)
		if err != nil {
			return nil, jsonrpc.NewError(jsonrpc.InvalidParams, err.Error(), nil)
		}
		return toolResult(out)
	})
}

// toolResult publishes the payload both ways: structured content for clients
// that understand it and a JSON text element for those that do not.
func toolResult(payload any) (*schema.CallToolResult, *jsonrpc.Error) {
	b, _ := json.Marshal(payload)
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{
			schema.TextContent{Type: "text", Text: string(b)},
		},
		StructuredContent: map[string]any{"result": payload},
	}, nil
}
