package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/cxxref/internal/store"
)

// Graph host functions. Risor scripts cannot hold Go struct pointers in a
// useful way, so these return Risor maps with primitive values.

// symbols(name) → []node
func makeSymbolsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbols", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("symbols: %v", err)
		}
		nodes, err := s.NodesByName(name)
		if err != nil {
			return object.Errorf("symbols: %v", err)
		}
		return nodesToList(nodes)
	})
}

// node(id) → node or nil
func makeNodeFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("node", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node", 1, len(args))
		}
		id, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("node: %v", err)
		}
		n, err := s.NodeByID(id)
		if err != nil {
			return object.Errorf("node: %v", err)
		}
		if n == nil {
			return object.Nil
		}
		return nodeToMap(n)
	})
}

// makeEdgesFn creates "outgoing" or "incoming".
//
// outgoing(id, kinds...) → []{kind, line, col, file_id, file, node}
//
// node is the far end of each edge.
func makeEdgesFn(name string, s *store.Store, outgoing bool) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("%s: expected at least 1 argument (id), got %d", name, len(args))
		}
		id, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		var kinds []string
		for _, arg := range args[1:] {
			k, err := toString(arg)
			if err != nil {
				return object.Errorf("%s: kind: %v", name, err)
			}
			kinds = append(kinds, k)
		}

		var edges []*store.Edge
		if outgoing {
			edges, err = s.EdgesFrom(id, kinds...)
		} else {
			edges, err = s.EdgesTo(id, kinds...)
		}
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}

		far := func(e *store.Edge) int64 {
			if outgoing {
				return e.TargetID
			}
			return e.SourceID
		}
		ids := make([]int64, 0, len(edges))
		for _, e := range edges {
			ids = append(ids, far(e))
		}
		nodes, err := s.NodesByIDs(ids)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}

		paths := map[int64]string{}
		results := make([]object.Object, 0, len(edges))
		for _, e := range edges {
			m := map[string]object.Object{
				"kind": object.NewString(e.Kind),
				"line": object.NewInt(int64(e.Line)),
				"col":  object.NewInt(int64(e.Col)),
				"node": object.Nil,
			}
			if e.FileID != nil {
				m["file_id"] = object.NewInt(*e.FileID)
				path, ok := paths[*e.FileID]
				if !ok {
					f, err := s.FileByID(*e.FileID)
					if err != nil {
						return object.Errorf("%s: %v", name, err)
					}
					if f != nil {
						path = f.Path
					}
					paths[*e.FileID] = path
				}
				m["file"] = object.NewString(path)
			}
			if n, ok := nodes[far(e)]; ok {
				m["node"] = nodeToMap(n)
			}
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

// files() → []{id, path, language, line_count}
func makeFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		files, err := s.Files()
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		results := make([]object.Object, 0, len(files))
		for _, f := range files {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(f.ID),
				"path":       object.NewString(f.Path),
				"language":   object.NewString(f.Language),
				"line_count": object.NewInt(int64(f.LineCount)),
			}))
		}
		return object.NewList(results)
	})
}

// summary() → {files, nodes, edges, nodes_by_kind, edges_by_kind}
func makeSummaryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("summary", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("summary", 0, len(args))
		}
		sum, err := s.Summary()
		if err != nil {
			return object.Errorf("summary: %v", err)
		}
		return object.NewMap(map[string]object.Object{
			"files":         object.NewInt(int64(sum.Files)),
			"nodes":         object.NewInt(int64(sum.Nodes)),
			"edges":         object.NewInt(int64(sum.Edges)),
			"nodes_by_kind": countsToMap(sum.NodesByKind),
			"edges_by_kind": countsToMap(sum.EdgesByKind),
		})
	})
}

// makeDBQueryFn creates a db_query bridge that executes arbitrary read-only SQL.
// Returns a list of maps (column name → value).
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements. The query also runs in query_only
		// mode, which catches writes chained after a leading SELECT.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		// Convert remaining args to query parameters.
		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		results := []object.Object{}
		err = s.QueryReadOnly(ctx, sqlStr, queryArgs, func(rows *sql.Rows) error {
			cols, err := rows.Columns()
			if err != nil {
				return fmt.Errorf("columns: %w", err)
			}
			for rows.Next() {
				values := make([]any, len(cols))
				ptrs := make([]any, len(cols))
				for i := range values {
					ptrs[i] = &values[i]
				}
				if err := rows.Scan(ptrs...); err != nil {
					return fmt.Errorf("scan: %w", err)
				}
				row := make(map[string]object.Object, len(cols))
				for i, col := range cols {
					row[col] = sqlValueToObject(values[i])
				}
				results = append(results, object.NewMap(row))
			}
			return nil
		})
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		return object.NewList(results)
	})
}

// --- Conversion helpers ---

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

func nodeToMap(n *store.Node) object.Object {
	m := map[string]object.Object{
		"id":             object.NewInt(n.ID),
		"usr":            object.NewString(n.USR),
		"name":           object.NewString(n.Name),
		"qualified_name": object.NewString(n.QualifiedName),
		"kind":           object.NewString(n.Kind),
		"scope":          object.NewString(n.Scope),
		"defined":        object.NewBool(n.Defined),
		"start_line":     object.NewInt(int64(n.StartLine)),
		"start_col":      object.NewInt(int64(n.StartCol)),
		"end_line":       object.NewInt(int64(n.EndLine)),
		"end_col":        object.NewInt(int64(n.EndCol)),
	}
	if n.FileID != nil {
		m["file_id"] = object.NewInt(*n.FileID)
	}
	return object.NewMap(m)
}

func nodesToList(nodes []*store.Node) object.Object {
	results := make([]object.Object, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, nodeToMap(n))
	}
	return object.NewList(results)
}

func countsToMap(counts map[string]int) object.Object {
	m := make(map[string]object.Object, len(counts))
	for k, v := range counts {
		m[k] = object.NewInt(int64(v))
	}
	return object.NewMap(m)
}
