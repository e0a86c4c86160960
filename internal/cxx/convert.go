package cxx

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/cxxref/internal/syntax"
)

// castKeywords are parsed as template function calls but are conversions.
var castKeywords = map[string]bool{
	"static_cast":      true,
	"dynamic_cast":     true,
	"reinterpret_cast": true,
	"const_cast":       true,
}

// converter turns the parse tree of one body into syntax nodes, tracking
// the local scopes needed to resolve names.
type converter struct {
	f     *file
	owner *syntax.Decl
	ns    string // lookup scope: enclosing class or namespace
	rec   *record

	scopes []map[string]*syntax.Decl
}

func (f *file) convertTask(t bodyTask) Body {
	c := &converter{f: f, owner: t.owner, ns: t.ns, rec: t.rec}
	if t.rec != nil {
		c.ns = t.rec.qualified()
	}
	c.push()
	defer c.pop()

	body := Body{Owner: t.owner, Function: t.function}
	if t.function {
		if fd := functionDeclarator(t.node.ChildByFieldName("declarator")); fd != nil {
			c.declareParams(fd.ChildByFieldName("parameters"))
		}
		body.Root = c.conv(t.node.ChildByFieldName("body"))
		return body
	}
	body.Root = c.initializer(t.node, t.typeNode)
	return body
}

func (c *converter) push() {
	c.scopes = append(c.scopes, make(map[string]*syntax.Decl))
}

func (c *converter) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *converter) declare(name string, d *syntax.Decl) {
	c.scopes[len(c.scopes)-1][name] = d
}

func (c *converter) isLocal(name string) bool {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i][name] != nil {
			return true
		}
	}
	return false
}

func (c *converter) localDecl(name string, kind syntax.DeclKind, n *sitter.Node, typeName string) *syntax.Decl {
	d := c.f.newDecl(name, "", kind, syntax.ScopeLocal, n)
	d.Owner = c.owner
	d.Type = typeName
	return d
}

func (c *converter) elem(kind syntax.Kind, n *sitter.Node, opts ...syntax.Option) syntax.Node {
	opts = append(opts, syntax.WithSpan(spanOf(n)), syntax.WithText(c.f.text(n)))
	return syntax.NewElement(kind, opts...)
}

func (c *converter) other(n *sitter.Node, children ...syntax.Node) syntax.Node {
	return c.elem(syntax.KindOther, n, syntax.WithChildren(children...))
}

func (c *converter) construct(n *sitter.Node, target *syntax.Decl, children ...syntax.Node) syntax.Node {
	return c.elem(syntax.KindConstruct, n, syntax.WithRef(target), syntax.WithChildren(children...))
}

// children converts the named children of n. Comments come back as nil
// entries.
func (c *converter) children(n *sitter.Node) []syntax.Node {
	count := int(n.NamedChildCount())
	out := make([]syntax.Node, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, c.conv(n.NamedChild(i)))
	}
	return out
}

func (c *converter) conv(n *sitter.Node) syntax.Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "comment":
		return nil
	case "ERROR":
		return c.elem(syntax.KindUnknown, n, syntax.WithChildren(c.children(n)...))
	case "compound_statement", "for_statement", "while_statement", "if_statement",
		"switch_statement", "do_statement":
		c.push()
		defer c.pop()
		return c.other(n, c.children(n)...)
	case "for_range_loop":
		return c.forRange(n)
	case "catch_clause":
		return c.catchClause(n)
	case "lambda_expression":
		return c.lambda(n)
	case "declaration":
		return c.localDeclaration(n)
	case "call_expression":
		return c.call(n)
	case "new_expression":
		return c.newExpression(n)
	case "field_expression":
		return c.fieldExpression(n, false)
	case "identifier":
		return c.identifier(n)
	case "qualified_identifier":
		return c.elem(syntax.KindDeclRef, n, syntax.WithRef(c.resolveQualified(c.f.spelling(n))))
	case "compound_literal_expression":
		typeName := c.f.typeName(n.ChildByFieldName("type"))
		return c.construct(n, c.f.reg.recordDecl(typeName, c.ns), c.conv(n.ChildByFieldName("value")))
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier",
		"type_definition", "alias_declaration", "using_declaration", "namespace_alias_definition":
		return c.other(n)
	}
	return c.other(n, c.children(n)...)
}

func (c *converter) declareParams(list *sitter.Node) {
	for _, p := range namedChildren(list) {
		switch p.Type() {
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
		default:
			continue
		}
		nameNode := declaratorName(p.ChildByFieldName("declarator"))
		if nameNode == nil {
			continue
		}
		name := c.f.text(nameNode)
		c.declare(name, c.localDecl(name, syntax.DeclParameter, nameNode, c.f.typeName(p.ChildByFieldName("type"))))
	}
}

// localDeclaration converts a block-scope declaration into a KindLocalDecl
// carrying its variables, with initializers as children.
func (c *converter) localDeclaration(n *sitter.Node) syntax.Node {
	typeNode := n.ChildByFieldName("type")
	typeName := c.f.typeName(typeNode)
	classLike := c.f.classLike(typeNode, c.ns)
	// Condition declarations (if (T x = v)) carry the value on the
	// declaration itself.
	condValue := n.ChildByFieldName("value")

	var declared []*syntax.Decl
	var children []syntax.Node
	for _, d := range declaratorsOf(n) {
		if d.Type() != "init_declarator" && functionDeclarator(d) != nil {
			if nameNode := declaratorName(d); nameNode != nil {
				declared = append(declared, c.localDecl(c.f.text(nameNode), syntax.DeclFunction, nameNode, ""))
			}
			continue
		}
		names := boundNames(d)
		if len(names) == 0 {
			continue
		}
		value := condValue
		if d.Type() == "init_declarator" {
			value = d.ChildByFieldName("value")
		}
		varType := ""
		if len(names) == 1 {
			varType = typeName
			if varType == "" {
				varType = c.inferType(value)
			}
		}
		for _, nameNode := range names {
			name := c.f.text(nameNode)
			decl := c.localDecl(name, syntax.DeclVariable, nameNode, varType)
			// The name is in scope in its own initializer.
			c.declare(name, decl)
			declared = append(declared, decl)
		}

		switch {
		case value != nil && classLike && !isIndirect(d) &&
			(value.Type() == "argument_list" || value.Type() == "initializer_list"):
			children = append(children, c.construct(value, c.f.reg.recordDecl(typeName, c.ns), c.conv(value)))
		case value != nil:
			children = append(children, c.conv(value))
		case classLike && !isIndirect(d) && !hasStorageClass(n, c.f.src, "extern"):
			children = append(children, c.construct(d, c.f.reg.recordDecl(typeName, c.ns)))
		}
	}
	return c.elem(syntax.KindLocalDecl, n, syntax.WithDeclared(declared...), syntax.WithChildren(children...))
}

// inferType recovers the type of an auto variable from initializers that
// spell it.
func (c *converter) inferType(value *sitter.Node) string {
	if value == nil {
		return ""
	}
	switch value.Type() {
	case "new_expression":
		return c.f.typeName(value.ChildByFieldName("type"))
	case "call_expression":
		fn := value.ChildByFieldName("function")
		if fn == nil {
			return ""
		}
		switch fn.Type() {
		case "identifier", "qualified_identifier", "type_identifier", "template_type":
			if rec := c.f.reg.recordFor(c.f.spelling(fn), c.ns); rec != nil {
				return rec.qualified()
			}
		}
	case "compound_literal_expression":
		return c.f.typeName(value.ChildByFieldName("type"))
	}
	return ""
}

// initializer converts the initializer of a namespace-scope variable. For a
// class type without one the root is the implicit default construction.
func (c *converter) initializer(d, typeNode *sitter.Node) syntax.Node {
	typeName := c.f.typeName(typeNode)
	classLike := c.f.classLike(typeNode, c.ns) && !isIndirect(d)
	if d.Type() != "init_declarator" {
		if !classLike {
			return nil
		}
		return c.construct(d, c.f.reg.recordDecl(typeName, c.ns))
	}
	value := d.ChildByFieldName("value")
	if value == nil {
		return nil
	}
	if classLike && (value.Type() == "argument_list" || value.Type() == "initializer_list") {
		return c.construct(value, c.f.reg.recordDecl(typeName, c.ns), c.conv(value))
	}
	return c.conv(value)
}

func (c *converter) forRange(n *sitter.Node) syntax.Node {
	c.push()
	defer c.pop()

	rangeExpr := c.conv(n.ChildByFieldName("right"))
	var local syntax.Node
	if d := n.ChildByFieldName("declarator"); d != nil {
		names := boundNames(d)
		typeName := ""
		if len(names) == 1 {
			typeName = c.f.typeName(n.ChildByFieldName("type"))
		}
		var declared []*syntax.Decl
		for _, nameNode := range names {
			name := c.f.text(nameNode)
			decl := c.localDecl(name, syntax.DeclVariable, nameNode, typeName)
			c.declare(name, decl)
			declared = append(declared, decl)
		}
		if len(declared) > 0 {
			local = c.elem(syntax.KindLocalDecl, d, syntax.WithDeclared(declared...))
		}
	}
	return c.other(n, local, rangeExpr, c.conv(n.ChildByFieldName("body")))
}

func (c *converter) catchClause(n *sitter.Node) syntax.Node {
	c.push()
	defer c.pop()
	c.declareParams(n.ChildByFieldName("parameters"))
	return c.other(n, c.conv(n.ChildByFieldName("body")))
}

func (c *converter) lambda(n *sitter.Node) syntax.Node {
	captures := c.conv(n.ChildByFieldName("captures"))
	c.push()
	defer c.pop()
	if d := n.ChildByFieldName("declarator"); d != nil {
		c.declareParams(d.ChildByFieldName("parameters"))
	}
	return c.other(n, captures, c.conv(n.ChildByFieldName("body")))
}

func (c *converter) identifier(n *sitter.Node) syntax.Node {
	d, member := c.resolve(c.f.text(n))
	if member {
		return c.elem(syntax.KindMemberAccess, n, syntax.WithRef(d))
	}
	return c.elem(syntax.KindDeclRef, n, syntax.WithRef(d))
}

// resolve looks an unqualified name up: locals innermost first, then
// members of the enclosing class (an implicit this->name), then the
// enumerators, variables and functions of the file and its headers. member
// is true for an instance member of the class; a static data member is
// referenced like any other variable.
func (c *converter) resolve(name string) (d *syntax.Decl, member bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if d := c.scopes[i][name]; d != nil {
			return d, false
		}
	}
	if c.rec != nil {
		if d := c.rec.member(name, false); d != nil {
			return d, d.Kind != syntax.DeclVariable
		}
	}
	return c.f.reg.lookup(name, c.ns, enumConstTable, globalTable, functionTable), false
}

func (c *converter) resolveQualified(spelled string) *syntax.Decl {
	reg := c.f.reg
	if d := reg.qualified(spelled, c.ns, enumConstTable, globalTable, functionTable); d != nil {
		return d
	}
	scope, base := splitQualified(spelled)
	if rec := reg.recordFor(scope, c.ns); rec != nil {
		return rec.member(base, true)
	}
	return nil
}

func callable(d *syntax.Decl) bool {
	return d != nil && (d.Kind == syntax.DeclFunction || d.Kind == syntax.DeclMethod)
}

func (c *converter) call(n *sitter.Node) syntax.Node {
	fn := n.ChildByFieldName("function")
	args := c.conv(n.ChildByFieldName("arguments"))
	if fn == nil {
		return c.elem(syntax.KindCall, n, syntax.WithChildren(args))
	}

	switch fn.Type() {
	case "identifier":
		return c.callByName(n, fn, c.f.text(fn), false, args)
	case "qualified_identifier":
		return c.callByName(n, fn, c.f.spelling(fn), true, args)
	case "template_function":
		nameNode := fn.ChildByFieldName("name")
		name := c.f.spelling(nameNode)
		if castKeywords[name] {
			return c.other(n, args)
		}
		qualified := nameNode != nil && nameNode.Type() == "qualified_identifier"
		return c.callByName(n, fn, name, qualified, args)
	case "field_expression":
		callee := c.fieldExpression(fn, true)
		target := callee.Referenced()
		if !callable(target) {
			target = nil
		}
		return c.elem(syntax.KindCall, n, syntax.WithRef(target), syntax.WithChildren(callee, args))
	case "type_identifier", "template_type":
		return c.construct(n, c.f.reg.recordDecl(c.f.typeName(fn), c.ns), args)
	case "primitive_type", "sized_type_specifier":
		return c.other(n, args)
	}
	return c.elem(syntax.KindCall, n, syntax.WithChildren(c.conv(fn), args))
}

// callByName resolves a call through a plain or qualified name. A name that
// denotes a class and no function is a functional construction.
func (c *converter) callByName(n, fn *sitter.Node, name string, qualified bool, args syntax.Node) syntax.Node {
	reg := c.f.reg
	if !qualified && c.isLocal(name) {
		return c.elem(syntax.KindCall, n, syntax.WithChildren(c.identifier(fn), args))
	}

	known := reg.lookup(name, c.ns, functionTable)
	if qualified {
		known = reg.qualified(name, c.ns, functionTable)
	}
	if known == nil {
		if rec := reg.recordFor(name, c.ns); rec != nil {
			return c.construct(n, rec.decl, args)
		}
	}

	var callee syntax.Node
	if qualified {
		callee = c.elem(syntax.KindDeclRef, fn, syntax.WithRef(c.resolveQualified(name)))
	} else {
		callee = c.identifier(fn)
	}
	target := callee.Referenced()
	if target == nil {
		target = reg.externalDecl(syntax.DeclFunction, syntax.ScopeGlobal, name)
		callee = c.elem(syntax.KindDeclRef, fn, syntax.WithRef(target))
	}
	if !callable(target) {
		// A call through a variable: the callee reference is still reported.
		return c.elem(syntax.KindCall, n, syntax.WithChildren(callee, args))
	}
	return c.elem(syntax.KindCall, n, syntax.WithRef(target), syntax.WithChildren(callee, args))
}

func (c *converter) newExpression(n *sitter.Node) syntax.Node {
	typeNode := n.ChildByFieldName("type")
	var children []syntax.Node
	if placement := n.ChildByFieldName("placement"); placement != nil {
		children = append(children, c.conv(placement))
	}

	var target *syntax.Decl
	args := n.ChildByFieldName("arguments")
	if c.f.classLike(typeNode, c.ns) {
		target = c.f.reg.recordDecl(c.f.typeName(typeNode), c.ns)
		ctorSite := args
		if ctorSite == nil {
			ctorSite = typeNode
		}
		children = append(children, c.construct(ctorSite, target, c.conv(args)))
	} else {
		children = append(children, c.conv(args))
	}
	if d := n.ChildByFieldName("declarator"); d != nil {
		children = append(children, c.conv(d))
	}
	return c.elem(syntax.KindNewAllocation, n, syntax.WithRef(target), syntax.WithChildren(children...))
}

// fieldExpression converts obj.name and ptr->name. The member is resolved
// through the object's declared type when known, else through any class of
// the file declaring that member name, else to an external placeholder.
func (c *converter) fieldExpression(n *sitter.Node, callee bool) syntax.Node {
	arg := n.ChildByFieldName("argument")
	base := c.conv(arg)
	field := n.ChildByFieldName("field")
	if field == nil {
		return c.other(n, base)
	}
	name := lastSegment(c.f.spelling(field))
	return c.elem(syntax.KindMemberAccess, n, syntax.WithRef(c.member(arg, name, callee)), syntax.WithChildren(base))
}

func (c *converter) member(obj *sitter.Node, name string, callee bool) *syntax.Decl {
	reg := c.f.reg
	if rec := c.recordOf(obj); rec != nil {
		if d := rec.member(name, callee); d != nil {
			return d
		}
	}
	if d := reg.recordByMember(name, callee); d != nil {
		return d
	}
	if callee {
		return reg.externalDecl(syntax.DeclMethod, syntax.ScopeMember, name)
	}
	return reg.externalDecl(syntax.DeclField, syntax.ScopeMember, name)
}

// recordOf returns the class of an object expression when it can be told
// from declarations alone.
func (c *converter) recordOf(obj *sitter.Node) *record {
	if obj == nil {
		return nil
	}
	var d *syntax.Decl
	switch obj.Type() {
	case "this":
		return c.rec
	case "identifier":
		d, _ = c.resolve(c.f.text(obj))
	case "qualified_identifier":
		d = c.resolveQualified(c.f.spelling(obj))
	case "field_expression":
		if field := obj.ChildByFieldName("field"); field != nil {
			d = c.member(obj.ChildByFieldName("argument"), lastSegment(c.f.spelling(field)), false)
		}
	case "pointer_expression", "subscript_expression":
		return c.recordOf(obj.ChildByFieldName("argument"))
	case "parenthesized_expression":
		if obj.NamedChildCount() > 0 {
			return c.recordOf(obj.NamedChild(0))
		}
	}
	if d == nil || d.Type == "" {
		return nil
	}
	return c.f.reg.recordFor(d.Type, c.ns)
}
