// Package visitor walks one function body or variable initializer and
// reports the relations it finds to a Collector.
//
// A BodyVisitor is bound to a single DeclContext. It visits every node in
// pre-order, dispatches on the node kind, and always descends into children,
// so nested occurrences (a call whose argument is a call) are all reported.
package visitor

import "github.com/jward/cxxref/internal/syntax"

// Collector receives the events produced by a BodyVisitor. Implementations
// own every policy decision: resolving targets to graph nodes, deduplication,
// batching and error handling. Calls arrive synchronously and in traversal
// order.
type Collector interface {
	CallInBody(ctx DeclContext, n syntax.Node)
	ConstructInBody(ctx DeclContext, n syntax.Node)
	NewAllocationInBody(ctx DeclContext, n syntax.Node)
	FieldAccessInBody(ctx DeclContext, n syntax.Node)
	GlobalVariableReferenceInBody(ctx DeclContext, n syntax.Node)
	EnumConstantReferenceInBody(ctx DeclContext, n syntax.Node)
	// LocalVariableDeclarationInBody is called once per variable declared by
	// the local declaration n.
	LocalVariableDeclarationInBody(ctx DeclContext, n syntax.Node, decl *syntax.Decl)
}

// BodyVisitor is a depth-first walker bound to one DeclContext.
type BodyVisitor struct {
	ctx       DeclContext
	collector Collector
}

// NewBodyVisitor returns a walker reporting to c on behalf of ctx.
// It panics if ctx is not a valid context or c is nil.
func NewBodyVisitor(c Collector, ctx DeclContext) *BodyVisitor {
	if !ctx.Valid() {
		panic("visitor: NewBodyVisitor with invalid declaration context")
	}
	if c == nil {
		panic("visitor: NewBodyVisitor with nil collector")
	}
	return &BodyVisitor{ctx: ctx, collector: c}
}

// Context returns the context every event from this walker carries.
func (v *BodyVisitor) Context() DeclContext {
	return v.ctx
}

// Visit walks n and all of its descendants. A nil n is a no-op.
func (v *BodyVisitor) Visit(n syntax.Node) {
	if n == nil {
		return
	}
	v.dispatch(n)
	for _, child := range n.Children() {
		if child != nil {
			v.Visit(child)
		}
	}
}

func (v *BodyVisitor) dispatch(n syntax.Node) {
	switch n.Kind() {
	case syntax.KindCall:
		v.collector.CallInBody(v.ctx, n)
	case syntax.KindConstruct:
		v.collector.ConstructInBody(v.ctx, n)
	case syntax.KindNewAllocation:
		v.collector.NewAllocationInBody(v.ctx, n)
	case syntax.KindMemberAccess:
		if ref := n.Referenced(); ref != nil && ref.Kind == syntax.DeclField {
			v.collector.FieldAccessInBody(v.ctx, n)
		}
	case syntax.KindDeclRef:
		ref := n.Referenced()
		switch {
		case ref == nil:
		case ref.IsGlobalVariable():
			v.collector.GlobalVariableReferenceInBody(v.ctx, n)
		case ref.Kind == syntax.DeclEnumConstant:
			v.collector.EnumConstantReferenceInBody(v.ctx, n)
		}
	case syntax.KindLocalDecl:
		for _, d := range n.Declared() {
			if d != nil && d.Kind == syntax.DeclVariable {
				v.collector.LocalVariableDeclarationInBody(v.ctx, n, d)
			}
		}
	default:
	}
}
