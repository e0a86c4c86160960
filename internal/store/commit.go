package store

import "fmt"

// CommitBatch writes all buffered data from a BatchedStore to SQLite within a
// single transaction. Fake (negative) node IDs are remapped to the real IDs
// of the upserted rows and every edge endpoint is rewritten accordingly.
//
// Nodes go first because edges reference them.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64, len(batch.Nodes))

	for _, n := range batch.Nodes {
		realID, err := upsertNode(tx, &n)
		if err != nil {
			return fmt.Errorf("commit batch: node %q: %w", n.USR, err)
		}
		fakeToReal[n.ID] = realID
	}

	for _, e := range batch.Edges {
		if e.SourceID < 0 {
			realID, ok := fakeToReal[e.SourceID]
			if !ok {
				return fmt.Errorf("commit batch: edge source %d not in batch (have %d nodes)", e.SourceID, len(batch.Nodes))
			}
			e.SourceID = realID
		}
		if e.TargetID < 0 {
			realID, ok := fakeToReal[e.TargetID]
			if !ok {
				return fmt.Errorf("commit batch: edge target %d not in batch (have %d nodes)", e.TargetID, len(batch.Nodes))
			}
			e.TargetID = realID
		}
		if _, err := insertEdge(tx, &e); err != nil {
			return fmt.Errorf("commit batch: edge %s: %w", e.Kind, err)
		}
	}

	return tx.Commit()
}
