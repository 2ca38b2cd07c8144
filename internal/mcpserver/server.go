// Package mcpserver implements an MCP (Model Context Protocol) server that
// exposes the migration runner as typed tools over stdio JSON-RPC, so a host
// application can drive the legacy database migration without shelling out.
//
// Folders are validated server-side: a folder must be non-empty and resolve
// inside the files or databases directory.
package mcpserver

import (
	"context"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/joestump/dbsuffix/internal/config"
	"github.com/joestump/dbsuffix/internal/migrate"
)

// Server holds the MCP server state and configuration.
type Server struct {
	runner *migrate.Runner
	dryRun bool
}

// NewServer creates an MCP server backed by runner. With dryRun set the
// mutating tools report their plan instead of acting.
func NewServer(runner *migrate.Runner, dryRun bool) *Server {
	return &Server{runner: runner, dryRun: dryRun}
}

// Tools returns the tool set served by s.
func (s *Server) Tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: resolveFolderTool(), Handler: s.handleResolveFolder},
		{Tool: addSuffixTool(), Handler: s.handleAddSuffix},
		{Tool: deleteOldTool(), Handler: s.handleDeleteOld},
		{Tool: listDatabasesTool(), Handler: s.handleListDatabases},
	}
}

// Run starts the MCP stdio server. It blocks until ctx is cancelled or stdin
// is closed.
func (s *Server) Run(ctx context.Context) error {
	mcpServer := server.NewMCPServer(
		"dbsuffix",
		config.Version,
		server.WithToolCapabilities(true),
	)
	mcpServer.AddTools(s.Tools()...)

	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(log.New(os.Stderr, "[mcp] ", log.LstdFlags))

	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
