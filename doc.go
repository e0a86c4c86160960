// Package cxxref records what C++ code bodies do. For every function body and
// every global variable initializer in a translation unit it reports the
// calls, constructions, heap allocations, field accesses, global variable and
// enum constant references, and local variable declarations the body
// contains, attributed to the declaration that owns the body.
//
// # Pipeline
//
// Indexing a file runs four steps:
//
//  1. Parse: tree-sitter parses the file and the cxx frontend converts every
//     body into a resolved syntax tree (internal/cxx).
//  2. Walk: a BodyVisitor bound to the owning declaration walks each tree in
//     pre-order and dispatches one event per interesting node
//     (internal/visitor).
//  3. Collect: a graph Collector turns each event into a node upsert and an
//     edge insert (internal/graph).
//  4. Commit: edges land in SQLite, buffered per file when indexing in
//     parallel (internal/store).
//
// # Usage
//
//	e, err := cxxref.New(".cxxref/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	report, err := e.IndexDirectory(ctx, "path/to/project")
//
//	q := e.Query()
//	nodes, err := q.Symbols("Shape::area")
//	callees, err := q.Callees(nodes[0].ID)
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] answers:
//
//   - [QueryBuilder.Symbols] finds nodes by name or qualified name.
//   - [QueryBuilder.Outgoing] and [QueryBuilder.Incoming] list relations of a
//     node, optionally filtered by edge kind.
//   - [QueryBuilder.Callers] and [QueryBuilder.Callees] are the call subset.
//   - [QueryBuilder.DeclarationAt] finds the declaration enclosing a position.
//   - [QueryBuilder.TransitiveCallers] and [QueryBuilder.TransitiveCallees]
//     walk the call graph breadth-first.
//   - [QueryBuilder.Hotspots] and [QueryBuilder.Unreferenced] rank nodes by
//     fan-in.
//
// # Incremental Indexing
//
// [Engine.IndexFiles] skips files whose content hash matches the stored one.
// A changed file has its previous edges and definitions dropped before it is
// indexed again. Nodes other files still reference survive as undefined
// placeholders until something defines them again.
package cxxref
