// Package cxx is the tree-sitter frontend for C++ sources. It parses one
// translation unit, discovers its file-scope declarations and converts every
// function body and variable initializer into a syntax.Node tree whose
// references are already resolved.
//
// Resolution is purely syntactic: names are looked up in the enclosing local
// scopes, the enclosing class, the file's namespaces, then the declarations
// of the headers it includes (see Includes). Anything declared elsewhere
// becomes an undefined placeholder Decl for callees, constructed types and
// fields; other unknown names stay unresolved.
package cxx

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/cxxref/internal/syntax"
	"github.com/jward/cxxref/internal/visitor"
)

// Unit is a parsed translation unit.
type Unit struct {
	Path string
	// Decls lists every file-scope declaration found in the file, in
	// discovery order. Locals are not included.
	Decls []*syntax.Decl
	// Bodies lists the function bodies and variable initializers to index,
	// in source order.
	Bodies []Body
	// HasErrors is true when the parser had to recover from syntax errors.
	// The affected regions appear as syntax.KindUnknown nodes.
	HasErrors bool
}

// Body is one indexable code span together with the declaration owning it.
type Body struct {
	Owner *syntax.Decl
	// Function is true for function and method bodies, false for variable
	// initializers.
	Function bool
	Root     syntax.Node
}

// Context returns the declaration context a walker over b is bound to.
func (b Body) Context() visitor.DeclContext {
	if b.Function {
		return visitor.OwningFunction(b.Owner)
	}
	return visitor.OwningVariable(b.Owner)
}

// bodyTask is a body found during collection, converted once every
// file-scope name is known.
type bodyTask struct {
	owner    *syntax.Decl
	function bool
	node     *sitter.Node // function_definition, or the variable's declarator
	typeNode *sitter.Node // variable type
	ns       string
	rec      *record
}

type file struct {
	path   string
	src    []byte
	source string
	reg    *registry
	decls  []*syntax.Decl
	tasks  []bodyTask
}

// Parse parses src as C++ and converts it. The returned Unit holds no
// references to parser memory.
func Parse(ctx context.Context, path string, src []byte, opts ...ParseOption) (*Unit, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}
	if _, ok := LanguageForFile(path); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Grammar())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()
	root := tree.RootNode()

	f := &file{
		path:   path,
		src:    src,
		source: string(src),
		reg:    newRegistry(),
	}
	if o.includes != nil {
		f.reg.setImports(o.includes.registries(ctx, path, root, src))
	}
	f.collectTypes(root, "")
	f.collectDecls(root, "", "")

	unit := &Unit{
		Path:      path,
		Decls:     f.decls,
		HasErrors: root.HasError(),
	}
	for _, t := range f.tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unit.Bodies = append(unit.Bodies, f.convertTask(t))
	}
	return unit, nil
}

func (f *file) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return f.source[n.StartByte():n.EndByte()]
}

// spelling is the node text without whitespace and template arguments.
func (f *file) spelling(n *sitter.Node) string {
	return strings.Join(strings.Fields(stripTemplateArgs(f.text(n))), "")
}

func spanOf(n *sitter.Node) syntax.Span {
	start, end := n.StartPoint(), n.EndPoint()
	return syntax.Span{
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

// typeName returns the normalized name of a type node, or "" for deduced
// and anonymous types.
func (f *file) typeName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "placeholder_type_specifier", "auto", "decltype":
		return ""
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		return normalizeType(f.text(n.ChildByFieldName("name")))
	}
	return normalizeType(f.text(n))
}

// classLike reports whether objects of the given type are built by a
// constructor.
func (f *file) classLike(n *sitter.Node, ns string) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "class_specifier", "struct_specifier", "union_specifier":
		return true
	case "type_identifier", "qualified_identifier", "template_type":
		return !f.reg.isScalar(f.typeName(n), ns)
	}
	return false
}

func (f *file) newDecl(name, qualified string, kind syntax.DeclKind, scope syntax.DeclScope, n *sitter.Node) *syntax.Decl {
	return &syntax.Decl{
		Name:          name,
		QualifiedName: qualified,
		Kind:          kind,
		Scope:         scope,
		File:          f.path,
		Span:          spanOf(n),
		Defined:       true,
	}
}

func splitQualified(name string) (scope, base string) {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[:i], name[i+2:]
	}
	return "", name
}
