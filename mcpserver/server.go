// Package mcpserver exposes the control orchestrator as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/siherrmann/controlrag/model"
)

// Version is the MCP server version.
const Version = "0.1.0"

// ErrMissingService is returned by NewServer without a service.
var ErrMissingService = errors.New("query service is required")

// Service answers queries and reports its health.
type Service interface {
	Query(ctx context.Context, req model.QueryRequest) (*model.QueryResponse, error)
	CheckHealth(ctx context.Context) error
}

// Server is the MCP server of controlrag.
type Server struct {
	service Service
	server  *mcp.Server
	log     *slog.Logger
}

// NewServer creates the server and registers its tools.
func NewServer(service Service, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("creating server: %w", ErrMissingService)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		service: service,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "controlrag",
			Version: Version,
		}, nil),
		log: logger,
	}
	s.registerTools()

	return s, nil
}

// MCP returns the underlying server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves over stdio until ctx is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
