package store

import (
	"database/sql"
	"fmt"
	"slices"
)

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

// upsertNodeSQL creates the node if its USR is new. For an existing node a
// defined row replaces the location of an undefined one; a defined node is
// never downgraded by a later placeholder.
const upsertNodeSQL = `
INSERT INTO nodes (usr, name, qualified_name, kind, scope, file_id,
	start_line, start_col, end_line, end_col, defined)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(usr) DO UPDATE SET
	file_id    = CASE WHEN excluded.defined AND NOT nodes.defined THEN excluded.file_id ELSE nodes.file_id END,
	start_line = CASE WHEN excluded.defined AND NOT nodes.defined THEN excluded.start_line ELSE nodes.start_line END,
	start_col  = CASE WHEN excluded.defined AND NOT nodes.defined THEN excluded.start_col ELSE nodes.start_col END,
	end_line   = CASE WHEN excluded.defined AND NOT nodes.defined THEN excluded.end_line ELSE nodes.end_line END,
	end_col    = CASE WHEN excluded.defined AND NOT nodes.defined THEN excluded.end_col ELSE nodes.end_col END,
	defined    = nodes.defined OR excluded.defined
RETURNING id`

func upsertNode(q queryRower, n *Node) (int64, error) {
	var id int64
	err := q.QueryRow(upsertNodeSQL,
		n.USR, n.Name, n.QualifiedName, n.Kind, n.Scope, n.FileID,
		n.StartLine, n.StartCol, n.EndLine, n.EndCol, n.Defined,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) UpsertNode(n *Node) (int64, error) {
	id, err := upsertNode(s.db, n)
	if err != nil {
		return 0, fmt.Errorf("upsert node %q: %w", n.USR, err)
	}
	n.ID = id
	return id, nil
}

// NodeCols is the column list for node queries.
const NodeCols = `id, usr, name, qualified_name, kind, scope, file_id,
	start_line, start_col, end_line, end_col, defined`

// ScanNodeRow scans a single row selected with NodeCols.
func ScanNodeRow(scanner interface{ Scan(...any) error }) (*Node, error) {
	n := &Node{}
	var qualified, scope sql.NullString
	err := scanner.Scan(
		&n.ID, &n.USR, &n.Name, &qualified, &n.Kind, &scope, &n.FileID,
		&n.StartLine, &n.StartCol, &n.EndLine, &n.EndCol, &n.Defined,
	)
	if err != nil {
		return nil, err
	}
	n.QualifiedName = qualified.String
	n.Scope = scope.String
	return n, nil
}

func (s *Store) queryNodes(query string, args ...any) ([]*Node, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nodes []*Node
	for rows.Next() {
		n, err := ScanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *Store) queryNode(query string, args ...any) (*Node, error) {
	n, err := ScanNodeRow(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// NodeByID returns the node with id, or nil if there is none.
func (s *Store) NodeByID(id int64) (*Node, error) {
	n, err := s.queryNode("SELECT "+NodeCols+" FROM nodes WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("node by id: %w", err)
	}
	return n, nil
}

// NodeByUSR returns the node with usr, or nil if there is none.
func (s *Store) NodeByUSR(usr string) (*Node, error) {
	n, err := s.queryNode("SELECT "+NodeCols+" FROM nodes WHERE usr = ?", usr)
	if err != nil {
		return nil, fmt.Errorf("node by usr: %w", err)
	}
	return n, nil
}

// NodesByName matches either the plain or the qualified name.
func (s *Store) NodesByName(name string) ([]*Node, error) {
	nodes, err := s.queryNodes(
		"SELECT "+NodeCols+" FROM nodes WHERE name = ? OR qualified_name = ? ORDER BY id", name, name)
	if err != nil {
		return nil, fmt.Errorf("nodes by name: %w", err)
	}
	return nodes, nil
}

func (s *Store) NodesByKind(kind string) ([]*Node, error) {
	nodes, err := s.queryNodes("SELECT "+NodeCols+" FROM nodes WHERE kind = ? ORDER BY id", kind)
	if err != nil {
		return nil, fmt.Errorf("nodes by kind: %w", err)
	}
	return nodes, nil
}

// nodeIDBatch bounds the IN list of one NodesByIDs query, well below
// SQLite's host parameter limit.
const nodeIDBatch = 500

// NodesByIDs bulk-loads nodes. Duplicate IDs are allowed; missing IDs are
// absent from the map.
func (s *Store) NodesByIDs(ids []int64) (map[int64]*Node, error) {
	unique := slices.Clone(ids)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	out := make(map[int64]*Node, len(unique))
	for batch := range slices.Chunk(unique, nodeIDBatch) {
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		nodes, err := s.queryNodes("SELECT "+NodeCols+" FROM nodes WHERE id IN ("+placeholderList(len(batch))+")", args...)
		if err != nil {
			return nil, fmt.Errorf("nodes by ids: %w", err)
		}
		for _, n := range nodes {
			out[n.ID] = n
		}
	}
	return out, nil
}

// NodesAt returns the nodes defined in fileID whose span contains the
// 1-based position, narrowest first.
func (s *Store) NodesAt(fileID int64, line, col int) ([]*Node, error) {
	nodes, err := s.queryNodes(
		`SELECT `+NodeCols+` FROM nodes
		 WHERE file_id = ? AND start_line <= ? AND end_line >= ?
		   AND (start_line < ? OR start_col <= ?)
		   AND (end_line > ? OR end_col >= ?)
		 ORDER BY (end_line - start_line), (end_col - start_col), id`,
		fileID, line, line, line, col, line, col)
	if err != nil {
		return nil, fmt.Errorf("nodes at: %w", err)
	}
	return nodes, nil
}

func (s *Store) NodesByFile(fileID int64) ([]*Node, error) {
	nodes, err := s.queryNodes("SELECT "+NodeCols+" FROM nodes WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("nodes by file: %w", err)
	}
	return nodes, nil
}

// --- Edges ---

func insertEdge(q queryRower, e *Edge) (int64, error) {
	var id int64
	err := q.QueryRow(
		`INSERT INTO edges (source_id, target_id, kind, file_id, line, col)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		e.SourceID, e.TargetID, e.Kind, e.FileID, e.Line, e.Col,
	).Scan(&id)
	return id, err
}

func (s *Store) InsertEdge(e *Edge) (int64, error) {
	id, err := insertEdge(s.db, e)
	if err != nil {
		return 0, fmt.Errorf("insert edge: %w", err)
	}
	e.ID = id
	return id, nil
}

const edgeCols = "id, source_id, target_id, kind, file_id, line, col"

func (s *Store) queryEdges(query string, args ...any) ([]*Edge, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []*Edge
	for rows.Next() {
		e := &Edge{}
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Kind, &e.FileID, &e.Line, &e.Col); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// edgesBy selects edges whose column col equals id, optionally restricted to
// the given kinds, in insertion order.
func (s *Store) edgesBy(col string, id int64, kinds []string) ([]*Edge, error) {
	query := "SELECT " + edgeCols + " FROM edges WHERE " + col + " = ?"
	args := []any{id}
	if len(kinds) > 0 {
		query += " AND kind IN (" + placeholderList(len(kinds)) + ")"
		args = append(args, stringsToArgs(kinds)...)
	}
	query += " ORDER BY id"
	return s.queryEdges(query, args...)
}

// EdgesFrom returns edges whose source is id.
func (s *Store) EdgesFrom(id int64, kinds ...string) ([]*Edge, error) {
	edges, err := s.edgesBy("source_id", id, kinds)
	if err != nil {
		return nil, fmt.Errorf("edges from: %w", err)
	}
	return edges, nil
}

// EdgesTo returns edges whose target is id.
func (s *Store) EdgesTo(id int64, kinds ...string) ([]*Edge, error) {
	edges, err := s.edgesBy("target_id", id, kinds)
	if err != nil {
		return nil, fmt.Errorf("edges to: %w", err)
	}
	return edges, nil
}

// EdgesByKind returns every edge of the given kinds, or all edges when none
// are given.
func (s *Store) EdgesByKind(kinds ...string) ([]*Edge, error) {
	query := "SELECT " + edgeCols + " FROM edges"
	var args []any
	if len(kinds) > 0 {
		query += " WHERE kind IN (" + placeholderList(len(kinds)) + ")"
		args = stringsToArgs(kinds)
	}
	edges, err := s.queryEdges(query+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("edges by kind: %w", err)
	}
	return edges, nil
}

// EdgesByFile returns the edges recorded while indexing fileID.
func (s *Store) EdgesByFile(fileID int64) ([]*Edge, error) {
	edges, err := s.edgesBy("file_id", fileID, nil)
	if err != nil {
		return nil, fmt.Errorf("edges by file: %w", err)
	}
	return edges, nil
}

// Summary counts files, nodes and edges.
func (s *Store) Summary() (*Summary, error) {
	sum := &Summary{
		NodesByKind: make(map[string]int),
		EdgesByKind: make(map[string]int),
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&sum.Files); err != nil {
		return nil, fmt.Errorf("summary: count files: %w", err)
	}
	for _, g := range []struct {
		table string
		total *int
		into  map[string]int
	}{
		{"nodes", &sum.Nodes, sum.NodesByKind},
		{"edges", &sum.Edges, sum.EdgesByKind},
	} {
		rows, err := s.db.Query("SELECT kind, COUNT(*) FROM " + g.table + " GROUP BY kind")
		if err != nil {
			return nil, fmt.Errorf("summary: group %s: %w", g.table, err)
		}
		for rows.Next() {
			var kind string
			var n int
			if err := rows.Scan(&kind, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("summary: scan %s: %w", g.table, err)
			}
			g.into[kind] = n
			*g.total += n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("summary: %s: %w", g.table, err)
		}
	}
	return sum, nil
}
