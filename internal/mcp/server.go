// ABOUTME: MCP server exposing forma to agents over stdio.
// ABOUTME: Tools act as the signed-in user of the wrapped App.
package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/forma/internal/app"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Server wraps the MCP server with application access.
type Server struct {
	mcpServer *mcp.Server
	app       *app.App
	now       func() time.Time
}

// NewServer creates a new MCP server over a booted App.
func NewServer(a *app.App) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "forma",
			Version: Version,
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		app:       a,
		now:       time.Now,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
