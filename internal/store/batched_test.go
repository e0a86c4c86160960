package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_FakeIDsAndDedup(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore()

	id1, err := batch.UpsertNode(&Node{USR: "function:f", Name: "f", Kind: "function"})
	require.NoError(t, err)
	assert.Negative(t, id1, "batched IDs should be negative")

	id2, err := batch.UpsertNode(&Node{USR: "function:f", Name: "f", Kind: "function"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "same USR shares one fake ID inside a batch")

	id3, err := batch.UpsertNode(&Node{USR: "function:g", Name: "g", Kind: "function"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	nodes, edges := batch.Len()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 0, edges)
}

func TestBatchedStore_DefinitionFillsPlaceholder(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore()
	fileID := int64(3)

	_, err := batch.UpsertNode(&Node{USR: "function:f", Name: "f", Kind: "function"})
	require.NoError(t, err)
	_, err = batch.UpsertNode(&Node{USR: "function:f", Name: "f", Kind: "function", FileID: &fileID, StartLine: 4, Defined: true})
	require.NoError(t, err)

	require.Len(t, batch.Nodes, 1)
	assert.True(t, batch.Nodes[0].Defined)
	assert.Equal(t, 4, batch.Nodes[0].StartLine)
	assert.Equal(t, &fileID, batch.Nodes[0].FileID)
}

func TestCommitBatch_RemapsFakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.cpp")

	// A node that already exists in the database from another file.
	existing := insertTestNode(t, s, nil, "function:helper", "helper", "function")

	batch := NewBatchedStore()
	main := insertTestNode(t, batch, &f.ID, "function:main", "main", "function")
	helper := insertTestNode(t, batch, nil, "function:helper", "helper", "function")
	counter := insertTestNode(t, batch, &f.ID, "variable:counter", "counter", "variable")
	insertTestEdge(t, batch, main, helper, EdgeCall, &f.ID)
	insertTestEdge(t, batch, main, helper, EdgeCall, &f.ID)
	insertTestEdge(t, batch, main, counter, EdgeReferenceGlobal, &f.ID)

	require.NoError(t, s.CommitBatch(batch))

	mainNode, err := s.NodeByUSR("function:main")
	require.NoError(t, err)
	require.NotNil(t, mainNode)
	assert.Positive(t, mainNode.ID)
	assert.True(t, mainNode.Defined)

	edges, err := s.EdgesFrom(mainNode.ID)
	require.NoError(t, err)
	require.Len(t, edges, 3)
	assert.Equal(t, existing, edges[0].TargetID, "batch node merged into existing row")
	assert.Equal(t, existing, edges[1].TargetID)
	assert.Equal(t, EdgeReferenceGlobal, edges[2].Kind)
	for _, e := range edges {
		assert.Positive(t, e.SourceID)
		assert.Positive(t, e.TargetID)
	}
}

func TestCommitBatch_UnknownFakeIDFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	batch := NewBatchedStore()
	src := insertTestNode(t, batch, nil, "function:a", "a", "function")
	insertTestEdge(t, batch, src, -999, EdgeCall, nil)

	err := s.CommitBatch(batch)
	require.Error(t, err)

	// Nothing from the failed batch is visible.
	n, err := s.NodeByUSR("function:a")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestCommitBatch_Empty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.CommitBatch(NewBatchedStore()))
}
