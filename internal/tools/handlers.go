package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jward/cxxref"
)

func (s *Server) handleIndexPath(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	path := getStringArg(args, "path")
	if path == "" {
		return errResult("path is required"), nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	report, err := s.engine.IndexDirectory(ctx, absPath)
	if err != nil && report == nil {
		return errResult(fmt.Sprintf("indexing failed: %v", err)), nil
	}
	result := map[string]any{
		"path":          absPath,
		"files":         report.Files,
		"skipped":       report.Skipped,
		"failed":        report.Failed,
		"nodes":         report.Nodes,
		"edges":         report.Edges,
		"unresolved":    report.Unresolved,
		"edges_by_kind": report.EdgesByKind,
		"duration_ms":   report.Duration.Milliseconds(),
	}
	if err != nil {
		result["error"] = err.Error()
	}
	s.logger.Info("mcp.index", "path", absPath, "files", report.Files)
	return jsonResult(result), nil
}

func (s *Server) handleFindSymbol(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	name := getStringArg(args, "name")
	if name == "" {
		return errResult("name is required"), nil
	}
	q := s.engine.Query()
	nodes, err := q.Symbols(name)
	if err != nil {
		return errResult(err.Error()), nil
	}
	results := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		m, err := s.nodeJSON(n)
		if err != nil {
			return errResult(err.Error()), nil
		}
		results = append(results, m)
	}
	return jsonResult(map[string]any{
		"name":    name,
		"results": results,
		"total":   len(results),
	}), nil
}

func (s *Server) handleGetRelations(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	n, err := s.resolveNode(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	kinds := getStringSliceArg(args, "kinds")
	direction := getStringArg(args, "direction")

	q := s.engine.Query()
	var rels []cxxref.Relation
	switch direction {
	case "", "outbound":
		direction = "outbound"
		rels, err = q.Outgoing(n.ID, kinds...)
	case "inbound":
		rels, err = q.Incoming(n.ID, kinds...)
	default:
		return errResult(fmt.Sprintf("invalid direction %q: must be outbound or inbound", direction)), nil
	}
	if err != nil {
		return errResult(err.Error()), nil
	}

	results := make([]map[string]any, 0, len(rels))
	for _, r := range rels {
		results = append(results, map[string]any{
			"kind":   r.Edge.Kind,
			"id":     r.Node.ID,
			"name":   displayName(r.Node),
			"node":   r.Node.Kind,
			"file":   r.File,
			"line":   r.Edge.Line,
			"column": r.Edge.Col,
		})
	}
	return jsonResult(map[string]any{
		"symbol":    displayName(n),
		"id":        n.ID,
		"direction": direction,
		"relations": results,
		"total":     len(results),
	}), nil
}

func (s *Server) handleTraceCalls(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	n, err := s.resolveNode(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	depth := getIntArg(args, "depth", 3)
	direction := getStringArg(args, "direction")

	q := s.engine.Query()
	var g *cxxref.CallGraph
	switch direction {
	case "", "callees":
		direction = "callees"
		g, err = q.TransitiveCallees(n.ID, depth)
	case "callers":
		g, err = q.TransitiveCallers(n.ID, depth)
	default:
		return errResult(fmt.Sprintf("invalid direction %q: must be callees or callers", direction)), nil
	}
	if err != nil {
		return errResult(err.Error()), nil
	}
	if g == nil {
		return errResult(fmt.Sprintf("node not found: %d", n.ID)), nil
	}

	nodes := make([]map[string]any, 0, len(g.Nodes))
	for _, gn := range g.Nodes {
		nodes = append(nodes, map[string]any{
			"id":    gn.Node.ID,
			"name":  displayName(gn.Node),
			"kind":  gn.Node.Kind,
			"depth": gn.Depth,
		})
	}
	edges := make([]map[string]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, map[string]any{
			"caller": e.CallerID,
			"callee": e.CalleeID,
			"file":   e.File,
			"line":   e.Line,
		})
	}
	return jsonResult(map[string]any{
		"root":      displayName(n),
		"direction": direction,
		"depth":     g.Depth,
		"nodes":     nodes,
		"edges":     edges,
	}), nil
}

func (s *Server) handleSymbolAt(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	file := getStringArg(args, "file")
	line := getIntArg(args, "line", 0)
	col := getIntArg(args, "col", 0)
	if file == "" || line <= 0 || col <= 0 {
		return errResult("file, line and col are required (line and col are 1-based)"), nil
	}
	absFile, err := filepath.Abs(file)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}
	n, err := s.engine.Query().DeclarationAt(absFile, line, col)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if n == nil {
		return errResult(fmt.Sprintf("no declaration at %s:%d:%d", absFile, line, col)), nil
	}
	m, err := s.nodeJSON(n)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(m), nil
}

func (s *Server) handleGraphSummary(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	q := s.engine.Query()
	sum, err := q.Summary()
	if err != nil {
		return errResult(err.Error()), nil
	}
	hot, err := q.Hotspots(max(getIntArg(args, "top", 10), 0))
	if err != nil {
		return errResult(err.Error()), nil
	}
	hotspots := make([]map[string]any, 0, len(hot))
	for _, h := range hot {
		hotspots = append(hotspots, map[string]any{
			"id":       h.Node.ID,
			"name":     displayName(h.Node),
			"kind":     h.Node.Kind,
			"incoming": h.Incoming,
			"callers":  h.Callers,
			"outgoing": h.Outgoing,
		})
	}
	return jsonResult(map[string]any{
		"files":         sum.Files,
		"nodes":         sum.Nodes,
		"edges":         sum.Edges,
		"nodes_by_kind": sum.NodesByKind,
		"edges_by_kind": sum.EdgesByKind,
		"hotspots":      hotspots,
	}), nil
}

// nodeJSON renders a node with its definition location when it has one.
func (s *Server) nodeJSON(n *cxxref.Node) (map[string]any, error) {
	m := map[string]any{
		"id":      n.ID,
		"usr":     n.USR,
		"name":    displayName(n),
		"kind":    n.Kind,
		"scope":   n.Scope,
		"defined": n.Defined,
	}
	loc, err := s.engine.Query().NodeLocation(n)
	if err != nil {
		return nil, err
	}
	if loc != nil {
		m["file"] = loc.File
		m["start_line"] = loc.StartLine
		m["end_line"] = loc.EndLine
	}
	return m, nil
}

func displayName(n *cxxref.Node) string {
	if n.QualifiedName != "" {
		return n.QualifiedName
	}
	return n.Name
}
