// Package tools exposes the body graph over the Model Context Protocol.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jward/cxxref"
)

// Server wraps the MCP server with the indexing engine.
type Server struct {
	mcp    *mcp.Server
	engine *cxxref.Engine
	logger *slog.Logger

	// indexMu serializes index_path calls.
	indexMu sync.Mutex
}

// NewServer creates a new MCP server backed by e.
func NewServer(e *cxxref.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "cxxref",
			Version: cxxref.Version,
		}, nil),
		engine: e,
		logger: logger,
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server for transport binding.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves on stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_path",
		Description: "Index a C/C++ source tree (or re-index changed files) into the body graph. Unchanged files are skipped by content hash.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "Directory to index"
				}
			},
			"required": ["path"]
		}`),
	}, s.handleIndexPath)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_symbol",
		Description: "Find declarations by simple or qualified name (e.g. 'run' or 'Widget::resize'). Returns id, kind, scope, definition flag and location.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {
					"type": "string",
					"description": "Simple or qualified name"
				}
			},
			"required": ["name"]
		}`),
	}, s.handleFindSymbol)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_relations",
		Description: "List the relations recorded in a body (outbound) or targeting a declaration (inbound). Kinds: call, construct, allocate, access_field, reference_global, reference_enum, declare_local.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {
					"type": "integer",
					"description": "Node id (takes precedence over name)"
				},
				"name": {
					"type": "string",
					"description": "Simple or qualified name; the defined match is preferred"
				},
				"direction": {
					"type": "string",
					"enum": ["outbound", "inbound"],
					"description": "outbound (default) or inbound"
				},
				"kinds": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Restrict to these relation kinds"
				}
			}
		}`),
	}, s.handleGetRelations)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "trace_calls",
		Description: "Breadth-first transitive callers or callees of a function, up to a depth limit (default 3, max 100).",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {
					"type": "integer",
					"description": "Node id (takes precedence over name)"
				},
				"name": {
					"type": "string",
					"description": "Function name"
				},
				"direction": {
					"type": "string",
					"enum": ["callees", "callers"],
					"description": "callees (default) or callers"
				},
				"depth": {
					"type": "integer",
					"description": "Maximum depth (default 3)"
				}
			}
		}`),
	}, s.handleTraceCalls)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "symbol_at",
		Description: "Return the innermost declaration defined at a 1-based file position.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file": {"type": "string", "description": "Indexed file path"},
				"line": {"type": "integer", "description": "1-based line"},
				"col": {"type": "integer", "description": "1-based column"}
			},
			"required": ["file", "line", "col"]
		}`),
	}, s.handleSymbolAt)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "graph_summary",
		Description: "Count indexed files, nodes and edges, with per-kind breakdowns and the most referenced declarations.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"top": {
					"type": "integer",
					"description": "Number of hotspots to include (default 10)"
				}
			}
		}`),
	}, s.handleGraphSummary)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	f, ok := args[key].(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

func getStringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// resolveNode finds the node named by the id or name argument. For names
// the defined declaration wins over placeholders.
func (s *Server) resolveNode(args map[string]any) (*cxxref.Node, error) {
	q := s.engine.Query()
	if id := getIntArg(args, "id", 0); id > 0 {
		n, err := q.Node(int64(id))
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, fmt.Errorf("node not found: %d", id)
		}
		return n, nil
	}
	name := getStringArg(args, "name")
	if name == "" {
		return nil, fmt.Errorf("id or name is required")
	}
	nodes, err := q.Symbols(name)
	if err != nil {
		return nil, err
	}
	var found *cxxref.Node
	for _, n := range nodes {
		if found == nil || (n.Defined && !found.Defined) {
			found = n
		}
	}
	if found == nil {
		return nil, fmt.Errorf("node not found: %s", name)
	}
	return found, nil
}
