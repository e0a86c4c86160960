// Package syntax defines the read-only view of a parsed C++ body that the
// indexer walks: node kinds, resolved declarations and their scopes.
//
// A frontend (see internal/cxx) builds these views from a concrete parser.
// Consumers never see parser-specific node types.
package syntax

import "fmt"

// Kind classifies a node for indexing purposes. Only the kinds that map to a
// relation need their own value; everything else is KindOther.
type Kind int

const (
	// KindUnknown marks nodes the frontend could not classify (parse errors,
	// unsupported constructs). They are walked like KindOther.
	KindUnknown Kind = iota
	KindOther
	KindCall
	KindConstruct
	KindNewAllocation
	KindMemberAccess
	KindDeclRef
	KindLocalDecl
)

var kindNames = [...]string{
	KindUnknown:       "unknown",
	KindOther:         "other",
	KindCall:          "call",
	KindConstruct:     "construct",
	KindNewAllocation: "new",
	KindMemberAccess:  "member",
	KindDeclRef:       "declref",
	KindLocalDecl:     "localdecl",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// DeclKind is the kind of a declared entity.
type DeclKind string

const (
	DeclFunction     DeclKind = "function"
	DeclMethod       DeclKind = "method"
	DeclVariable     DeclKind = "variable"
	DeclParameter    DeclKind = "parameter"
	DeclField        DeclKind = "field"
	DeclEnumConstant DeclKind = "enum_constant"
	DeclRecord       DeclKind = "record"
)

// DeclScope says where a declaration lives.
type DeclScope string

const (
	// ScopeLocal is anything declared inside a function or method body,
	// including parameters.
	ScopeLocal DeclScope = "local"
	// ScopeGlobal is namespace scope, including the global namespace.
	ScopeGlobal DeclScope = "global"
	// ScopeMember is class scope.
	ScopeMember DeclScope = "member"
)

// Span is a source range. Lines and columns are 1-based.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

// Decl is a resolved declaration.
type Decl struct {
	Name          string
	QualifiedName string
	Kind          DeclKind
	Scope         DeclScope
	File          string
	Span          Span

	// Type is the spelled base type of a variable, parameter or field with
	// qualifiers, pointers and references stripped. Empty when unknown.
	Type string

	// Owner is the function or variable whose body declares this entity.
	// Only set for ScopeLocal declarations.
	Owner *Decl

	// Defined is true when the declaration was seen in the parsed file rather
	// than inferred from a use site (e.g. a call to an external function).
	Defined bool
}

// DisplayName returns the qualified name when known, else the plain name.
func (d *Decl) DisplayName() string {
	if d.QualifiedName != "" {
		return d.QualifiedName
	}
	return d.Name
}

// IsGlobalVariable reports whether d is a variable declared outside any
// function or method body.
func (d *Decl) IsGlobalVariable() bool {
	return d.Kind == DeclVariable && d.Scope == ScopeGlobal
}

// USR returns a stable identity for d. Two Decls with the same USR denote the
// same graph node. Locals are disambiguated by owner and position because the
// same name is routinely reused across bodies.
func (d *Decl) USR() string {
	if d.Scope == ScopeLocal {
		owner := ""
		if d.Owner != nil {
			owner = d.Owner.USR()
		}
		return fmt.Sprintf("%s|%s@%s:%d:%d", owner, d.Name, d.File, d.Span.StartLine, d.Span.StartCol)
	}
	return string(d.Kind) + ":" + d.DisplayName()
}

func (d *Decl) String() string {
	return fmt.Sprintf("%s %s", d.Kind, d.DisplayName())
}

// Node is a read-only view of one syntax tree node.
//
// Children may contain nil entries, which walkers must skip. Referenced is
// only meaningful for KindCall, KindConstruct, KindNewAllocation,
// KindMemberAccess and KindDeclRef and returns nil when the frontend could not
// resolve the target. Declared lists the entities introduced by a
// KindLocalDecl node.
type Node interface {
	Kind() Kind
	Children() []Node
	Referenced() *Decl
	Declared() []*Decl
	Span() Span
	Text() string
}
