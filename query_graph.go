package cxxref

import (
	"fmt"

	"github.com/jward/cxxref/internal/store"
)

// maxGraphDepth caps TransitiveCallers and TransitiveCallees.
const maxGraphDepth = 100

// CallGraph represents a transitive call graph rooted at a node.
// Edges are bulk-loaded then traversed with BFS -- no recursive SQL or N+1
// queries.
type CallGraph struct {
	Root  int64           // starting node ID
	Nodes []CallGraphNode // all nodes reachable within depth
	Edges []CallGraphEdge // all edges in the subgraph
	Depth int             // actual max depth reached (may be < maxDepth if graph is shallow)
}

// CallGraphNode is a node in the call graph with its distance from the root.
type CallGraphNode struct {
	Node  *Node
	Depth int // BFS depth from root (0 = root itself)
}

// CallGraphEdge is a single caller-callee occurrence in the call graph.
type CallGraphEdge struct {
	CallerID int64
	CalleeID int64
	File     string
	Line     int
	Col      int
}

// callGraphData holds the bulk-loaded adjacency maps and file path index.
type callGraphData struct {
	forward  map[int64][]*Edge // caller -> edges
	reverse  map[int64][]*Edge // callee -> edges
	filePath map[int64]string
}

// buildCallGraph bulk-loads all call edges and files into memory.
func (q *QueryBuilder) buildCallGraph() (*callGraphData, error) {
	edges, err := q.store.EdgesByKind(store.EdgeCall)
	if err != nil {
		return nil, fmt.Errorf("build call graph: load edges: %w", err)
	}
	paths, err := q.filePaths()
	if err != nil {
		return nil, fmt.Errorf("build call graph: load files: %w", err)
	}

	data := &callGraphData{
		forward:  make(map[int64][]*Edge),
		reverse:  make(map[int64][]*Edge),
		filePath: paths,
	}
	for _, e := range edges {
		data.forward[e.SourceID] = append(data.forward[e.SourceID], e)
		data.reverse[e.TargetID] = append(data.reverse[e.TargetID], e)
	}
	return data, nil
}

func (d *callGraphData) resolve(e *Edge) CallGraphEdge {
	file := ""
	if e.FileID != nil {
		file = d.filePath[*e.FileID]
	}
	return CallGraphEdge{
		CallerID: e.SourceID,
		CalleeID: e.TargetID,
		File:     file,
		Line:     e.Line,
		Col:      e.Col,
	}
}

// TransitiveCallers returns all transitive callers of a node up to maxDepth.
// maxDepth of 0 returns only the root node (no traversal). Negative returns
// an error. Capped at 100. Returns nil, nil if id does not exist.
func (q *QueryBuilder) TransitiveCallers(id int64, maxDepth int) (*CallGraph, error) {
	g, err := q.transitive(id, maxDepth, true)
	if err != nil {
		return nil, fmt.Errorf("transitive callers: %w", err)
	}
	return g, nil
}

// TransitiveCallees returns all transitive callees of a node up to maxDepth,
// with the same depth rules as TransitiveCallers.
func (q *QueryBuilder) TransitiveCallees(id int64, maxDepth int) (*CallGraph, error) {
	g, err := q.transitive(id, maxDepth, false)
	if err != nil {
		return nil, fmt.Errorf("transitive callees: %w", err)
	}
	return g, nil
}

func (q *QueryBuilder) transitive(id int64, maxDepth int, callers bool) (*CallGraph, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("maxDepth must be non-negative, got %d", maxDepth)
	}
	maxDepth = min(maxDepth, maxGraphDepth)

	root, err := q.store.NodeByID(id)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}

	result := &CallGraph{
		Root:  id,
		Nodes: []CallGraphNode{{Node: root, Depth: 0}},
		Edges: []CallGraphEdge{},
	}
	if maxDepth == 0 {
		return result, nil
	}

	data, err := q.buildCallGraph()
	if err != nil {
		return nil, err
	}
	adjacent, far := data.forward, func(e *Edge) int64 { return e.TargetID }
	if callers {
		adjacent, far = data.reverse, func(e *Edge) int64 { return e.SourceID }
	}

	// BFS over the chosen adjacency map. order keeps discovery order so the
	// output is deterministic.
	visited := map[int64]int{id: 0}
	order := []int64{}
	queue := []int64{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		depth := visited[current]
		if depth >= maxDepth {
			continue
		}
		for _, e := range adjacent[current] {
			next := far(e)
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = depth + 1
			result.Depth = max(result.Depth, depth+1)
			order = append(order, next)
			queue = append(queue, next)
		}
	}

	nodes, err := q.store.NodesByIDs(order)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	for _, nid := range order {
		if n, ok := nodes[nid]; ok {
			result.Nodes = append(result.Nodes, CallGraphNode{Node: n, Depth: visited[nid]})
		}
	}

	// An edge belongs to the subgraph when both of its ends were visited.
	for _, nid := range append([]int64{id}, order...) {
		for _, e := range adjacent[nid] {
			if _, ok := visited[far(e)]; ok {
				result.Edges = append(result.Edges, data.resolve(e))
			}
		}
	}
	return result, nil
}

// HotspotResult is a heavily-referenced node with fan-in and fan-out counts.
type HotspotResult struct {
	Node *Node
	// Incoming counts every edge targeting the node.
	Incoming int
	// Callers counts distinct bodies that call the node.
	Callers int
	// Outgoing counts the edges recorded in the node's own body.
	Outgoing int
}

// Hotspots returns the topN nodes with the most incoming edges, excluding
// locals. topN of 0 returns an empty list. Negative returns an error.
func (q *QueryBuilder) Hotspots(topN int) ([]*HotspotResult, error) {
	if topN < 0 {
		return nil, fmt.Errorf("hotspots: topN must be non-negative, got %d", topN)
	}
	if topN == 0 {
		return []*HotspotResult{}, nil
	}

	rows, err := q.store.DB().Query(
		`SELECT n.id,
			(SELECT COUNT(*) FROM edges e WHERE e.target_id = n.id) AS incoming,
			(SELECT COUNT(DISTINCT e.source_id) FROM edges e WHERE e.target_id = n.id AND e.kind = ?) AS callers,
			(SELECT COUNT(*) FROM edges e WHERE e.source_id = n.id) AS outgoing
		 FROM nodes n
		 WHERE n.scope != 'local'
		   AND EXISTS (SELECT 1 FROM edges e WHERE e.target_id = n.id)
		 ORDER BY incoming DESC, n.id
		 LIMIT ?`, store.EdgeCall, topN)
	if err != nil {
		return nil, fmt.Errorf("hotspots: query: %w", err)
	}
	defer rows.Close()

	var items []*HotspotResult
	var ids []int64
	for rows.Next() {
		hr := &HotspotResult{Node: &Node{}}
		if err := rows.Scan(&hr.Node.ID, &hr.Incoming, &hr.Callers, &hr.Outgoing); err != nil {
			return nil, fmt.Errorf("hotspots: scan: %w", err)
		}
		items = append(items, hr)
		ids = append(ids, hr.Node.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hotspots: rows: %w", err)
	}

	nodes, err := q.store.NodesByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("hotspots: %w", err)
	}
	for _, hr := range items {
		if n, ok := nodes[hr.Node.ID]; ok {
			hr.Node = n
		}
	}
	if items == nil {
		items = []*HotspotResult{}
	}
	return items, nil
}

// Unreferenced returns defined functions, methods and global variables that
// no indexed body refers to. With kinds given, only nodes of those kinds
// are considered.
func (q *QueryBuilder) Unreferenced(kinds ...string) ([]*Node, error) {
	if len(kinds) == 0 {
		kinds = []string{"function", "method", "variable"}
	}
	query := `SELECT ` + prefixNodeCols + ` FROM nodes n
		WHERE n.defined AND n.scope != 'local'
		  AND NOT EXISTS (SELECT 1 FROM edges e WHERE e.target_id = n.id)
		  AND n.kind IN (`
	args := make([]any, 0, len(kinds))
	for i, k := range kinds {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, k)
	}
	query += ") ORDER BY n.file_id, n.start_line, n.id"

	rows, err := q.store.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("unreferenced: query: %w", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		n, err := store.ScanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("unreferenced: scan: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// prefixNodeCols is store.NodeCols qualified with the "n" alias.
const prefixNodeCols = `n.id, n.usr, n.name, n.qualified_name, n.kind, n.scope, n.file_id,
	n.start_line, n.start_col, n.end_line, n.end_col, n.defined`
