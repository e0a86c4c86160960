package cxxref

import "github.com/jward/cxxref/internal/store"

// Public type aliases for internal store types used in the QueryBuilder API.

type Store = store.Store
type File = store.File
type Node = store.Node
type Edge = store.Edge
type Summary = store.Summary

// Relation kinds, re-exported for callers filtering Outgoing and Incoming.
const (
	EdgeCall            = store.EdgeCall
	EdgeConstruct       = store.EdgeConstruct
	EdgeAllocate        = store.EdgeAllocate
	EdgeAccessField     = store.EdgeAccessField
	EdgeReferenceGlobal = store.EdgeReferenceGlobal
	EdgeReferenceEnum   = store.EdgeReferenceEnum
	EdgeDeclareLocal    = store.EdgeDeclareLocal
)
