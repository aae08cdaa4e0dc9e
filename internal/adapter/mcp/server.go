// Package mcp exposes the read-only business data tools over the Model
// Context Protocol so external assistants can query the same KPIs as the
// in-app agent.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/aruna-bi/aruna/internal/domain/industry"
	"github.com/aruna-bi/aruna/internal/service"
)

// ServerConfig holds MCP server identity and transport settings.
type ServerConfig struct {
	Name    string
	Version string
	Path    string // HTTP endpoint path, e.g. "/mcp"
	APIKey  string // empty disables auth
}

// ServerDeps are the data sources backing the MCP tools and resources.
// Nil dependencies produce error results instead of panics.
type ServerDeps struct {
	Tools   service.DataTools
	Modules *industry.Registry
}

// Server wraps an mcp-go server and its streamable HTTP transport.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	http      *mcpserver.StreamableHTTPServer
}

// NewServer creates an MCP server with all tools and resources registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	if cfg.Path == "" {
		cfg.Path = "/mcp"
	}
	if cfg.APIKey == "" {
		slog.Warn("mcp endpoint has no API key, business data is readable without authentication", "path", cfg.Path)
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	s.http = mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(cfg.Path),
		mcpserver.WithStateLess(true),
	)
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcpServer }

// Handler returns the authenticated HTTP handler for mounting on a router.
func (s *Server) Handler() http.Handler {
	return AuthMiddleware(s.cfg.APIKey, s.http)
}

// Shutdown stops the HTTP transport.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}
