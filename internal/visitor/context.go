package visitor

import "github.com/jward/cxxref/internal/syntax"

type contextKind uint8

const (
	contextInvalid contextKind = iota
	contextFunction
	contextVariable
)

// DeclContext identifies the single function or variable whose body or
// initializer is being indexed. It is the source endpoint of every edge
// reported during one traversal.
//
// The zero value is invalid; build one with OwningFunction or OwningVariable.
type DeclContext struct {
	kind contextKind
	decl *syntax.Decl
}

// OwningFunction returns a context for a function or method body.
// It panics if decl is nil.
func OwningFunction(decl *syntax.Decl) DeclContext {
	if decl == nil {
		panic("visitor: OwningFunction with nil declaration")
	}
	return DeclContext{kind: contextFunction, decl: decl}
}

// OwningVariable returns a context for a variable initializer.
// It panics if decl is nil.
func OwningVariable(decl *syntax.Decl) DeclContext {
	if decl == nil {
		panic("visitor: OwningVariable with nil declaration")
	}
	return DeclContext{kind: contextVariable, decl: decl}
}

// Function returns the owning function, if this is a function context.
func (c DeclContext) Function() (*syntax.Decl, bool) {
	if c.kind != contextFunction {
		return nil, false
	}
	return c.decl, true
}

// Variable returns the owning variable, if this is a variable context.
func (c DeclContext) Variable() (*syntax.Decl, bool) {
	if c.kind != contextVariable {
		return nil, false
	}
	return c.decl, true
}

// Decl returns the owning declaration regardless of variant.
func (c DeclContext) Decl() *syntax.Decl {
	return c.decl
}

// IsFunction reports whether c is the OwningFunction variant.
func (c DeclContext) IsFunction() bool {
	return c.kind == contextFunction
}

// Valid reports whether c was built by OwningFunction or OwningVariable.
func (c DeclContext) Valid() bool {
	return c.kind != contextInvalid && c.decl != nil
}

func (c DeclContext) String() string {
	switch c.kind {
	case contextFunction:
		return "function " + c.decl.DisplayName()
	case contextVariable:
		return "variable " + c.decl.DisplayName()
	default:
		return "<invalid context>"
	}
}
