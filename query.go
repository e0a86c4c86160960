package cxxref

import (
	"fmt"

	"github.com/jward/cxxref/internal/store"
)

// QueryBuilder provides a read-only query API over the Store.
type QueryBuilder struct {
	store *store.Store
}

// Location represents a source code position range.
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Relation is one edge seen from a node: the edge itself, the node on the
// other end and the file the occurrence was recorded in.
type Relation struct {
	Edge *Edge
	Node *Node
	File string
}

// Symbols returns the nodes whose name or qualified name equals name.
func (q *QueryBuilder) Symbols(name string) ([]*Node, error) {
	nodes, err := q.store.NodesByName(name)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	return nodes, nil
}

// Node returns the node with the given ID, or nil if absent.
func (q *QueryBuilder) Node(id int64) (*Node, error) {
	return q.store.NodeByID(id)
}

// NodeByUSR returns the node with the given USR, or nil if absent.
func (q *QueryBuilder) NodeByUSR(usr string) (*Node, error) {
	return q.store.NodeByUSR(usr)
}

// Files lists every indexed file ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	return q.store.Files()
}

// Summary counts the indexed files, nodes and edges.
func (q *QueryBuilder) Summary() (*Summary, error) {
	return q.store.Summary()
}

// Outgoing returns the relations recorded in the body owned by node id,
// in recording order. With kinds given, only those edge kinds are returned.
func (q *QueryBuilder) Outgoing(id int64, kinds ...string) ([]Relation, error) {
	edges, err := q.store.EdgesFrom(id, kinds...)
	if err != nil {
		return nil, fmt.Errorf("outgoing: %w", err)
	}
	rels, err := q.relations(edges, func(e *Edge) int64 { return e.TargetID })
	if err != nil {
		return nil, fmt.Errorf("outgoing: %w", err)
	}
	return rels, nil
}

// Incoming returns the relations that target node id.
func (q *QueryBuilder) Incoming(id int64, kinds ...string) ([]Relation, error) {
	edges, err := q.store.EdgesTo(id, kinds...)
	if err != nil {
		return nil, fmt.Errorf("incoming: %w", err)
	}
	rels, err := q.relations(edges, func(e *Edge) int64 { return e.SourceID })
	if err != nil {
		return nil, fmt.Errorf("incoming: %w", err)
	}
	return rels, nil
}

// Callers returns call relations where the given node is the callee.
func (q *QueryBuilder) Callers(id int64) ([]Relation, error) {
	return q.Incoming(id, store.EdgeCall)
}

// Callees returns call relations made from the body of the given node.
func (q *QueryBuilder) Callees(id int64) ([]Relation, error) {
	return q.Outgoing(id, store.EdgeCall)
}

// ReferencesTo returns the position of every recorded occurrence targeting
// node id. Edge positions are points, so StartLine/StartCol equal
// EndLine/EndCol.
func (q *QueryBuilder) ReferencesTo(id int64) ([]Location, error) {
	rels, err := q.Incoming(id)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}
	locations := make([]Location, 0, len(rels))
	for _, r := range rels {
		locations = append(locations, Location{
			File:      r.File,
			StartLine: r.Edge.Line,
			StartCol:  r.Edge.Col,
			EndLine:   r.Edge.Line,
			EndCol:    r.Edge.Col,
		})
	}
	return locations, nil
}

// DeclarationAt returns the innermost declaration defined in file whose
// extent contains the 1-based position (line, col), or nil if none does.
func (q *QueryBuilder) DeclarationAt(file string, line, col int) (*Node, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, fmt.Errorf("declaration at: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	nodes, err := q.store.NodesAt(f.ID, line, col)
	if err != nil {
		return nil, fmt.Errorf("declaration at: %w", err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// NodeLocation resolves a node to its definition location, or nil for
// undefined placeholders.
func (q *QueryBuilder) NodeLocation(n *Node) (*Location, error) {
	if n == nil || n.FileID == nil {
		return nil, nil
	}
	f, err := q.store.FileByID(*n.FileID)
	if err != nil {
		return nil, fmt.Errorf("node location: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	return &Location{
		File:      f.Path,
		StartLine: n.StartLine,
		StartCol:  n.StartCol,
		EndLine:   n.EndLine,
		EndCol:    n.EndCol,
	}, nil
}

// relations joins edges with the node on the far end and the recording file.
func (q *QueryBuilder) relations(edges []*Edge, far func(*Edge) int64) ([]Relation, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, e := range edges {
		if id := far(e); !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	nodes, err := q.store.NodesByIDs(ids)
	if err != nil {
		return nil, err
	}
	paths, err := q.filePaths()
	if err != nil {
		return nil, err
	}

	rels := make([]Relation, 0, len(edges))
	for _, e := range edges {
		n, ok := nodes[far(e)]
		if !ok {
			continue
		}
		r := Relation{Edge: e, Node: n}
		if e.FileID != nil {
			r.File = paths[*e.FileID]
		}
		rels = append(rels, r)
	}
	return rels, nil
}

// filePaths returns file ID -> path for every indexed file.
func (q *QueryBuilder) filePaths() (map[int64]string, error) {
	files, err := q.store.Files()
	if err != nil {
		return nil, err
	}
	paths := make(map[int64]string, len(files))
	for _, f := range files {
		paths[f.ID] = f.Path
	}
	return paths, nil
}
