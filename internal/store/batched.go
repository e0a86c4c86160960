package store

import "sync"

// BatchedStore buffers a file's nodes and edges in memory using fake
// (negative) IDs. It implements DataStore so the graph collector can write to
// it without knowing whether it is hitting SQLite or an in-memory buffer.
//
// Nodes are deduplicated by USR inside the batch, so repeated references to
// the same declaration share one fake ID. CommitBatch maps them to real IDs.
type BatchedStore struct {
	mu sync.Mutex

	Nodes []Node
	Edges []Edge

	byUSR      map[string]int // USR → index into Nodes
	nextFakeID int64          // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

func NewBatchedStore() *BatchedStore {
	return &BatchedStore{
		byUSR:      make(map[string]int),
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) UpsertNode(n *Node) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.byUSR[n.USR]; ok {
		existing := &b.Nodes[i]
		if n.Defined && !existing.Defined {
			existing.FileID = n.FileID
			existing.StartLine, existing.StartCol = n.StartLine, n.StartCol
			existing.EndLine, existing.EndCol = n.EndLine, n.EndCol
			existing.Defined = true
		}
		n.ID = existing.ID
		return existing.ID, nil
	}
	n.ID = b.allocFakeID()
	b.byUSR[n.USR] = len(b.Nodes)
	b.Nodes = append(b.Nodes, *n)
	return n.ID, nil
}

func (b *BatchedStore) InsertEdge(e *Edge) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e.ID = b.allocFakeID()
	b.Edges = append(b.Edges, *e)
	return e.ID, nil
}

// Len reports the number of buffered nodes and edges.
func (b *BatchedStore) Len() (nodes, edges int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Nodes), len(b.Edges)
}
