// Package mcp exposes Taskgrid operations as Model Context Protocol tools,
// so AI agents can plan and track tasks over stdio.
package mcp

import (
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/taskgrid/taskgrid/internal/service"
)

// Server wraps an MCP server with the task and planner services.
type Server struct {
	mcpServer *mcpserver.MCPServer
	tasks     *service.TaskService
	planner   *service.PlannerService
}

// NewServer creates the MCP server and registers all tools.
func NewServer(tasks *service.TaskService, planner *service.PlannerService) *Server {
	s := &Server{
		mcpServer: mcpserver.NewMCPServer(
			"taskgrid",
			"0.1.0",
			mcpserver.WithToolCapabilities(true),
		),
		tasks:   tasks,
		planner: planner,
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server over stdin/stdout until the stream closes.
func (s *Server) ServeStdio() error {
	slog.Info("mcp server starting on stdio")
	return mcpserver.ServeStdio(s.mcpServer)
}

func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
