// Package mcp exposes the policy corpus over the Model Context Protocol:
// tools for similarity search, grounded question answering and corpus
// status.
package mcp

import (
	"context"

	"github.com/viant/jsonrpc/transport"
	protoclient "github.com/viant/mcp-protocol/client"
	"github.com/viant/mcp-protocol/logger"
	protoserver "github.com/viant/mcp-protocol/server"

	"policyrag/service"
)

// Handler serves the policy tools on top of a configured service.
type Handler struct {
	*protoserver.DefaultHandler
	service *service.Service
}

// NewHandler returns a handler factory for the MCP server.
func NewHandler(svc *service.Service) protoserver.NewHandler {
	return func(_ context.Context, notifier transport.Notifier, logger logger.Logger, clientOperation protoclient.Operations) (protoserver.Handler, error) {
		base := protoserver.NewDefaultHandler(notifier, logger, clientOperation)
		h := &Handler{
			DefaultHandler: base,
			service:        svc,
		}
		if err := registerTools(base.Registry, h); err != nil {
			return nil, err
		}
		return h, nil
	}
}
