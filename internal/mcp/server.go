// Package mcp exposes the stay queries as Model Context Protocol tools.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"staytrack/internal/service"
)

// Name is the implementation name announced during initialization.
const Name = "staytrack"

// Server is an MCP server backed by a query service.
type Server struct {
	svc *service.Service
	srv *sdk.Server
}

// NewServer builds a server with every tool registered.
func NewServer(svc *service.Service, version string) *Server {
	s := &Server{
		svc: svc,
		srv: sdk.NewServer(&sdk.Implementation{Name: Name, Version: version}, nil),
	}
	s.registerTools()
	return s
}

// Run serves over stdin/stdout until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Str("name", Name).Msg("MCP server listening on stdio")
	return s.srv.Run(ctx, &sdk.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t sdk.Transport) (*sdk.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}
