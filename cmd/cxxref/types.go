package main

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLINode is a JSON-friendly graph node representation.
type CLINode struct {
	ID        int64  `json:"id"`
	USR       string `json:"usr"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Scope     string `json:"scope"`
	Defined   bool   `json:"defined"`
	File      string `json:"file,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	StartCol  int    `json:"start_col,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	EndCol    int    `json:"end_col,omitempty"`
}

// CLIRelation is one recorded occurrence seen from a node.
type CLIRelation struct {
	Kind     string `json:"kind"`
	SourceID int64  `json:"source_id"`
	Source   string `json:"source,omitempty"`
	TargetID int64  `json:"target_id"`
	Target   string `json:"target,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
}

// CLILocation is a position with the ID of the node it refers to.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	SymbolID  int64  `json:"symbol_id"`
}

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Language  string `json:"language"`
	LineCount int    `json:"line_count"`
}

// CLISummary is a JSON-friendly graph summary.
type CLISummary struct {
	Files       int            `json:"files"`
	Nodes       int            `json:"nodes"`
	Edges       int            `json:"edges"`
	NodesByKind map[string]int `json:"nodes_by_kind"`
	EdgesByKind map[string]int `json:"edges_by_kind"`
}

// CLICallGraph is a JSON-friendly transitive call graph.
type CLICallGraph struct {
	Root     int64              `json:"root"`
	Nodes    []CLICallGraphNode `json:"nodes"`
	Edges    []CLICallGraphEdge `json:"edges"`
	MaxDepth int                `json:"max_depth"`
}

// CLICallGraphNode is a node in a transitive call graph.
type CLICallGraphNode struct {
	Node  CLINode `json:"node"`
	Depth int     `json:"depth"`
}

// CLICallGraphEdge is an edge in a transitive call graph.
type CLICallGraphEdge struct {
	CallerID int64  `json:"caller_id"`
	CalleeID int64  `json:"callee_id"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
}

// CLIHotspot is a heavily-referenced node with fan-in/fan-out metrics.
type CLIHotspot struct {
	Node     CLINode `json:"node"`
	Incoming int     `json:"incoming"`
	Callers  int     `json:"callers"`
	Outgoing int     `json:"outgoing"`
}

// CLIEvent is one collector event reported by the events command.
type CLIEvent struct {
	Kind   string `json:"kind"`
	Owner  string `json:"owner"`
	Target string `json:"target,omitempty"`
	File   string `json:"file"`
	Line   int    `json:"line"`
	Col    int    `json:"col"`
}
