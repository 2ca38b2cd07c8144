package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joestump/dbsuffix/internal/migrate"
)

// --- Tool Definitions ---

const folderSchema = `{
	"type": "object",
	"properties": {
		"folder": {
			"type": "string",
			"minLength": 1,
			"description": "Logical folder: \"default\", \"files/<sub>\" or \"databases/<sub>\". Must be non-empty and stay inside the files or databases directory."
		}
	},
	"required": ["folder"]
}`

func resolveFolderTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"resolve_folder",
		"Resolve a logical folder to an absolute directory in the application's private storage.",
		json.RawMessage(folderSchema),
	)
}

func addSuffixTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"add_sqlite_suffix",
		"Copy every legacy .db file in the folder into the databases directory under its SQLite.db name. Stops at the first failure without rolling back.",
		json.RawMessage(folderSchema),
	)
}

func deleteOldTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"delete_old_databases",
		"Delete every legacy .db file in the folder that does not carry the SQLite.db suffix. Stops at the first failure without rolling back.",
		json.RawMessage(folderSchema),
	)
}

func listDatabasesTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"list_databases",
		"List the migrated SQLite.db databases in the databases directory.",
		json.RawMessage(`{"type": "object", "properties": {}}`),
	)
}

// --- Tool Handlers ---

// folderArgs mirrors folderSchema.
type folderArgs struct {
	Folder string `json:"folder"`
}

// resolveResult is the success response for resolve_folder.
type resolveResult struct {
	Folder    string `json:"folder"`
	Directory string `json:"directory"`
}

// migrateResult is the success response for the mutating tools.
type migrateResult struct {
	Folder  string           `json:"folder"`
	Actions []migrate.Action `json:"actions"`
	DryRun  bool             `json:"dry_run,omitempty"`
}

// errorResult carries the error kind so callers can branch on it.
type errorResult struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) handleResolveFolder(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := bindFolder(req)
	if bad != nil {
		return bad, nil
	}

	dir, err := s.runner.Roots.ResolveWithin(args.Folder)
	if err != nil {
		return toolError(err), nil
	}
	return resultJSON(resolveResult{Folder: args.Folder, Directory: dir})
}

func (s *Server) handleAddSuffix(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runMigration(req, migrate.OpAddSuffix, s.runner.AddSuffix)
}

func (s *Server) handleDeleteOld(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runMigration(req, migrate.OpDeleteOld, s.runner.DeleteOld)
}

// runMigration plans operation on the requested folder and, unless in dry
// run, executes it. The plan is returned as the list of actions taken.
func (s *Server) runMigration(req mcp.CallToolRequest, operation string, run func(string) error) (*mcp.CallToolResult, error) {
	args, bad := bindFolder(req)
	if bad != nil {
		return bad, nil
	}

	if _, err := s.runner.Roots.ResolveWithin(args.Folder); err != nil {
		return toolError(err), nil
	}

	actions, err := s.runner.Plan(operation, args.Folder)
	if err != nil {
		return toolError(err), nil
	}

	if s.dryRun {
		log.Printf("[MCP] Dry run: %s on %s would touch %d files", operation, args.Folder, len(actions))
		return resultJSON(migrateResult{Folder: args.Folder, Actions: actions, DryRun: true})
	}

	if err := run(args.Folder); err != nil {
		return toolError(err), nil
	}

	log.Printf("[MCP] %s on %s: %d files", operation, args.Folder, len(actions))
	return resultJSON(migrateResult{Folder: args.Folder, Actions: actions})
}

func (s *Server) handleListDatabases(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.runner.ListDatabases()
	if err != nil {
		return toolError(err), nil
	}
	if names == nil {
		names = []string{}
	}
	return resultJSON(names)
}

func bindFolder(req mcp.CallToolRequest) (folderArgs, *mcp.CallToolResult) {
	var args folderArgs
	if err := req.BindArguments(&args); err != nil {
		return args, mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if args.Folder == "" {
		return args, mcp.NewToolResultError("folder is required")
	}
	return args, nil
}

// toolError turns err into a tool error result. Migration errors are
// reported as JSON with their kind.
func toolError(err error) *mcp.CallToolResult {
	var merr *migrate.Error
	if !errors.As(err, &merr) {
		return mcp.NewToolResultError(err.Error())
	}
	data, mErr := json.Marshal(errorResult{Kind: merr.Kind.String(), Message: merr.Message})
	if mErr != nil {
		return mcp.NewToolResultError(merr.Message)
	}
	return mcp.NewToolResultError(string(data))
}

// resultJSON marshals v to JSON and returns it as a tool result.
func resultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
