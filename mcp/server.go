package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendini/mashup/api"
	"github.com/rendini/mashup/api/backend"
	"github.com/rendini/mashup/api/model"
)

// Gateway is the part of the gateway the tools call
type Gateway interface {
	Backends() []backend.Backend
	ListTargets(ctx context.Context) ([]model.ListingEntry, error)
	Render(ctx context.Context, req model.RenderRequest) ([]model.RenderResult, error)
	RenderSitemap(ctx context.Context, filter model.SitemapFilter) (model.SitemapDocument, error)
	RenderIndex(ctx context.Context, namespace string) ([]model.ListingEntry, error)
}

var _ Gateway = (*api.Gateway)(nil)

// Server represents the MCP server for rendini
type Server struct {
	server *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(gw Gateway) *Server {
	s := server.NewMCPServer("rendini", api.Version)
	s.AddTools(InitTools(gw)...)

	return &Server{
		server: s,
	}
}

// Run serves on stdin/stdout until the client disconnects
func (s *Server) Run() error {
	return server.ServeStdio(s.server)
}

func newServerTool(tool mcp.Tool, handler server.ToolHandlerFunc) server.ServerTool {
	return server.ServerTool{
		Tool:    tool,
		Handler: handler,
	}
}
