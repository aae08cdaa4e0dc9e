package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"aruna://industries",
			"Industry Modules",
			mcplib.WithResourceDescription("Industry modules with their KPIs and dashboard visuals"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleIndustriesResource,
	)
}

func (s *Server) handleIndustriesResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Modules == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"industry modules not configured"}`,
			},
		}, nil
	}
	data, err := json.Marshal(s.deps.Modules.All())
	if err != nil {
		return nil, fmt.Errorf("marshal industries: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
