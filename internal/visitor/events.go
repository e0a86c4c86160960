package visitor

import (
	"fmt"

	"github.com/jward/cxxref/internal/syntax"
)

// EventKind enumerates the relations a BodyVisitor reports.
type EventKind int

const (
	CallInBody EventKind = iota
	ConstructInBody
	NewAllocationInBody
	FieldAccessInBody
	GlobalVariableReferenceInBody
	EnumConstantReferenceInBody
	LocalVariableDeclarationInBody
)

var eventKindNames = [...]string{
	CallInBody:                     "CallInBody",
	ConstructInBody:                "ConstructInBody",
	NewAllocationInBody:            "NewAllocationInBody",
	FieldAccessInBody:              "FieldAccessInBody",
	GlobalVariableReferenceInBody:  "GlobalVariableReferenceInBody",
	EnumConstantReferenceInBody:    "EnumConstantReferenceInBody",
	LocalVariableDeclarationInBody: "LocalVariableDeclarationInBody",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// Event is one recorded collector call.
type Event struct {
	Kind    EventKind
	Context DeclContext
	Node    syntax.Node
	// Decl is the declared entity for LocalVariableDeclarationInBody and the
	// node's referenced declaration (possibly nil) for every other kind.
	Decl *syntax.Decl
}

// Target returns a short name for what the event points at.
func (e Event) Target() string {
	if e.Decl != nil {
		return e.Decl.DisplayName()
	}
	if e.Node != nil {
		return e.Node.Text()
	}
	return ""
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s) in %s", e.Kind, e.Target(), e.Context)
}

// Recorder is a Collector that keeps every event in order.
type Recorder struct {
	Events []Event
}

// Compile-time check: *Recorder satisfies Collector.
var _ Collector = (*Recorder)(nil)

func (r *Recorder) add(kind EventKind, ctx DeclContext, n syntax.Node, d *syntax.Decl) {
	r.Events = append(r.Events, Event{Kind: kind, Context: ctx, Node: n, Decl: d})
}

func (r *Recorder) CallInBody(ctx DeclContext, n syntax.Node) {
	r.add(CallInBody, ctx, n, n.Referenced())
}

func (r *Recorder) ConstructInBody(ctx DeclContext, n syntax.Node) {
	r.add(ConstructInBody, ctx, n, n.Referenced())
}

func (r *Recorder) NewAllocationInBody(ctx DeclContext, n syntax.Node) {
	r.add(NewAllocationInBody, ctx, n, n.Referenced())
}

func (r *Recorder) FieldAccessInBody(ctx DeclContext, n syntax.Node) {
	r.add(FieldAccessInBody, ctx, n, n.Referenced())
}

func (r *Recorder) GlobalVariableReferenceInBody(ctx DeclContext, n syntax.Node) {
	r.add(GlobalVariableReferenceInBody, ctx, n, n.Referenced())
}

func (r *Recorder) EnumConstantReferenceInBody(ctx DeclContext, n syntax.Node) {
	r.add(EnumConstantReferenceInBody, ctx, n, n.Referenced())
}

func (r *Recorder) LocalVariableDeclarationInBody(ctx DeclContext, n syntax.Node, d *syntax.Decl) {
	r.add(LocalVariableDeclarationInBody, ctx, n, d)
}

// Kinds returns the event kinds in order.
func (r *Recorder) Kinds() []EventKind {
	kinds := make([]EventKind, len(r.Events))
	for i, e := range r.Events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.Events = r.Events[:0]
}

// multi fans every event out to several collectors in order.
type multi []Collector

// Multi returns a Collector that forwards each call to every c in order.
func Multi(collectors ...Collector) Collector {
	return multi(collectors)
}

func (m multi) CallInBody(ctx DeclContext, n syntax.Node) {
	for _, c := range m {
		c.CallInBody(ctx, n)
	}
}

func (m multi) ConstructInBody(ctx DeclContext, n syntax.Node) {
	for _, c := range m {
		c.ConstructInBody(ctx, n)
	}
}

func (m multi) NewAllocationInBody(ctx DeclContext, n syntax.Node) {
	for _, c := range m {
		c.NewAllocationInBody(ctx, n)
	}
}

func (m multi) FieldAccessInBody(ctx DeclContext, n syntax.Node) {
	for _, c := range m {
		c.FieldAccessInBody(ctx, n)
	}
}

func (m multi) GlobalVariableReferenceInBody(ctx DeclContext, n syntax.Node) {
	for _, c := range m {
		c.GlobalVariableReferenceInBody(ctx, n)
	}
}

func (m multi) EnumConstantReferenceInBody(ctx DeclContext, n syntax.Node) {
	for _, c := range m {
		c.EnumConstantReferenceInBody(ctx, n)
	}
}

func (m multi) LocalVariableDeclarationInBody(ctx DeclContext, n syntax.Node, d *syntax.Decl) {
	for _, c := range m {
		c.LocalVariableDeclarationInBody(ctx, n, d)
	}
}
