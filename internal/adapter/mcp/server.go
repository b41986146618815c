// Package mcp exposes the single interactive_feedback tool over the Model
// Context Protocol's streamable HTTP transport, so an AI agent can call it
// the same way it calls any other MCP tool.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/quietloop/ai-intervention-agent/internal/service"
)

// ServerConfig names the bind address and the server identity advertised
// during the MCP initialize handshake.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// ServerDeps wires the server's single tool to the feedback service that
// actually enqueues tasks and blocks for a result.
type ServerDeps struct {
	Feedback *service.FeedbackService
}

// Server owns the mcp-go MCPServer instance and the streamable HTTP
// transport that exposes it on the network.
type Server struct {
	cfg  ServerConfig
	deps ServerDeps

	mcpServer *mcpserver.MCPServer
	http      *mcpserver.StreamableHTTPServer
	log       *slog.Logger
}

// NewServer builds the MCP server and registers its tools. It does not bind
// a listener; call Start for that.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	m := mcpserver.NewMCPServer(cfg.Name, cfg.Version)
	s := &Server{cfg: cfg, deps: deps, mcpServer: m, log: slog.Default()}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying mcp-go server, mainly so tests can drive
// registered tools directly without going over the network.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start binds the streamable HTTP transport and serves it on a background
// goroutine; it returns as soon as the transport is constructed, without
// waiting for the listener to accept its first connection.
func (s *Server) Start() error {
	s.http = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	addr := s.cfg.Addr
	go func() {
		if err := s.http.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("mcp server exited", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP transport within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
