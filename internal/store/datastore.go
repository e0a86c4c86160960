package store

// DataStore is the write interface used while indexing a file. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// indexing) implement it.
type DataStore interface {
	// UpsertNode returns the ID of the node with n.USR, creating it if absent.
	// A defined n fills in the location of a previously undefined node.
	UpsertNode(n *Node) (int64, error)
	// InsertEdge appends an edge. Duplicate edges are allowed.
	InsertEdge(e *Edge) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
