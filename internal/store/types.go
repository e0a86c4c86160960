package store

import "time"

type File struct {
	ID          int64
	Path        string
	Language    string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

// Node is a declaration in the symbol graph.
type Node struct {
	ID            int64
	USR           string
	Name          string
	QualifiedName string
	Kind          string
	Scope         string
	FileID        *int64
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	Defined       bool
}

// Edge is one directed relation occurrence from a body owner to a node.
type Edge struct {
	ID       int64
	SourceID int64
	TargetID int64
	Kind     string
	FileID   *int64
	Line     int
	Col      int
}

// Relation kinds stored in edges.kind.
const (
	EdgeCall            = "call"
	EdgeConstruct       = "construct"
	EdgeAllocate        = "allocate"
	EdgeAccessField     = "access_field"
	EdgeReferenceGlobal = "reference_global"
	EdgeReferenceEnum   = "reference_enum"
	EdgeDeclareLocal    = "declare_local"
)

// EdgeKinds lists every relation kind in a fixed order.
var EdgeKinds = []string{
	EdgeCall, EdgeConstruct, EdgeAllocate, EdgeAccessField,
	EdgeReferenceGlobal, EdgeReferenceEnum, EdgeDeclareLocal,
}

// Summary counts graph contents.
type Summary struct {
	Files       int
	Nodes       int
	Edges       int
	NodesByKind map[string]int
	EdgesByKind map[string]int
}
