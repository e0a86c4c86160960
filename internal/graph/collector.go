// Package graph turns body events into persisted relations. A Collector is
// bound to one indexed file and writes through a store.DataStore, so the
// same code feeds the SQLite store directly or a BatchedStore during
// parallel indexing.
package graph

import (
	"fmt"
	"log/slog"

	"github.com/jward/cxxref/internal/store"
	"github.com/jward/cxxref/internal/syntax"
	"github.com/jward/cxxref/internal/visitor"
)

// Stats counts what a Collector recorded.
type Stats struct {
	Nodes int
	// Edges counts recorded edges by edge kind.
	Edges map[string]int
	// Unresolved counts events whose target could not be resolved and were
	// skipped.
	Unresolved int
}

// Total returns the number of recorded edges.
func (s Stats) Total() int {
	n := 0
	for _, c := range s.Edges {
		n += c
	}
	return n
}

// Collector implements visitor.Collector by upserting graph nodes keyed by
// USR and appending one edge per event. The first store error stops all
// further writes and is reported by Err.
type Collector struct {
	ds     store.DataStore
	fileID int64
	path   string
	logger *slog.Logger

	ids   map[string]int64
	stats Stats
	err   error
}

// Compile-time check: *Collector satisfies visitor.Collector.
var _ visitor.Collector = (*Collector)(nil)

// NewCollector returns a collector writing edges attributed to the file
// fileID at path.
func NewCollector(ds store.DataStore, fileID int64, path string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		ds:     ds,
		fileID: fileID,
		path:   path,
		logger: logger,
		ids:    make(map[string]int64),
		stats:  Stats{Edges: make(map[string]int)},
	}
}

// Err returns the first store error, if any.
func (c *Collector) Err() error { return c.err }

// Stats returns a snapshot of the counters.
func (c *Collector) Stats() Stats {
	s := Stats{Nodes: c.stats.Nodes, Unresolved: c.stats.Unresolved, Edges: make(map[string]int, len(c.stats.Edges))}
	for k, v := range c.stats.Edges {
		s.Edges[k] = v
	}
	return s
}

// DefineDecls records the file's declarations with their locations. Call it
// before walking bodies so that definitions, not placeholders, are cached.
func (c *Collector) DefineDecls(decls []*syntax.Decl) error {
	for _, d := range decls {
		if _, err := c.nodeID(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) CallInBody(ctx visitor.DeclContext, n syntax.Node) {
	c.relate(ctx, n, n.Referenced(), store.EdgeCall)
}

func (c *Collector) ConstructInBody(ctx visitor.DeclContext, n syntax.Node) {
	c.relate(ctx, n, n.Referenced(), store.EdgeConstruct)
}

func (c *Collector) NewAllocationInBody(ctx visitor.DeclContext, n syntax.Node) {
	c.relate(ctx, n, n.Referenced(), store.EdgeAllocate)
}

func (c *Collector) FieldAccessInBody(ctx visitor.DeclContext, n syntax.Node) {
	c.relate(ctx, n, n.Referenced(), store.EdgeAccessField)
}

func (c *Collector) GlobalVariableReferenceInBody(ctx visitor.DeclContext, n syntax.Node) {
	c.relate(ctx, n, n.Referenced(), store.EdgeReferenceGlobal)
}

func (c *Collector) EnumConstantReferenceInBody(ctx visitor.DeclContext, n syntax.Node) {
	c.relate(ctx, n, n.Referenced(), store.EdgeReferenceEnum)
}

func (c *Collector) LocalVariableDeclarationInBody(ctx visitor.DeclContext, n syntax.Node, d *syntax.Decl) {
	c.relate(ctx, n, d, store.EdgeDeclareLocal)
}

func (c *Collector) relate(ctx visitor.DeclContext, n syntax.Node, target *syntax.Decl, kind string) {
	if c.err != nil {
		return
	}
	span := n.Span()
	if target == nil {
		c.stats.Unresolved++
		c.logger.Debug("graph.unresolved",
			"kind", kind, "file", c.path, "line", span.StartLine, "text", n.Text())
		return
	}
	src, err := c.nodeID(ctx.Decl())
	if err != nil {
		return
	}
	dst, err := c.nodeID(target)
	if err != nil {
		return
	}
	fileID := c.fileID
	_, err = c.ds.InsertEdge(&store.Edge{
		SourceID: src,
		TargetID: dst,
		Kind:     kind,
		FileID:   &fileID,
		Line:     span.StartLine,
		Col:      span.StartCol,
	})
	if err != nil {
		c.fail(fmt.Errorf("record %s edge at %s:%d: %w", kind, c.path, span.StartLine, err))
		return
	}
	c.stats.Edges[kind]++
}

// nodeID resolves d to a graph node, creating it if absent. Results are
// cached by USR for the lifetime of the collector.
func (c *Collector) nodeID(d *syntax.Decl) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	usr := d.USR()
	if id, ok := c.ids[usr]; ok {
		return id, nil
	}
	id, err := c.ds.UpsertNode(c.toNode(d, usr))
	if err != nil {
		c.fail(fmt.Errorf("resolve %s: %w", d, err))
		return 0, c.err
	}
	c.ids[usr] = id
	c.stats.Nodes++
	return id, nil
}

func (c *Collector) toNode(d *syntax.Decl, usr string) *store.Node {
	n := &store.Node{
		USR:           usr,
		Name:          d.Name,
		QualifiedName: d.QualifiedName,
		Kind:          string(d.Kind),
		Scope:         string(d.Scope),
	}
	if d.Defined && d.File == c.path {
		fileID := c.fileID
		n.FileID = &fileID
		n.StartLine = d.Span.StartLine
		n.StartCol = d.Span.StartCol
		n.EndLine = d.Span.EndLine
		n.EndCol = d.Span.EndCol
		n.Defined = true
	}
	return n
}

func (c *Collector) fail(err error) {
	if c.err == nil {
		c.err = err
		c.logger.Error("graph.store_error", "file", c.path, "err", err)
	}
}
