package cxx

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/cxxref/internal/syntax"
)

// collectTypes is the first pass: records with their members, enums and
// type aliases. prefix is the enclosing namespace or class.
func (f *file) collectTypes(n *sitter.Node, prefix string) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "namespace_definition":
		ns := prefix
		if name := n.ChildByFieldName("name"); name != nil {
			ns = joinName(prefix, f.spelling(name))
		}
		for _, c := range namedChildren(n.ChildByFieldName("body")) {
			f.collectTypes(c, ns)
		}
		return
	case "class_specifier", "struct_specifier", "union_specifier":
		f.collectRecord(n, prefix, "")
		return
	case "enum_specifier":
		f.collectEnum(n, prefix)
		return
	case "type_definition":
		f.collectTypedef(n, prefix)
		return
	case "alias_declaration":
		f.collectAlias(n, prefix)
		return
	}
	for _, c := range namedChildren(n) {
		f.collectTypes(c, prefix)
	}
}

// collectRecord registers a class definition. name overrides the spelled
// name for typedef'd anonymous structs.
func (f *file) collectRecord(n *sitter.Node, prefix, name string) *record {
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name = normalizeType(f.text(nameNode))
	}

	qn := prefix
	var rec *record
	if name != "" {
		qn = joinName(prefix, name)
		rec = f.reg.records[qn]
		if rec == nil {
			d := f.newDecl(lastSegment(qn), qn, syntax.DeclRecord, syntax.ScopeGlobal, n)
			rec = newRecord(d)
			f.reg.addRecord(rec)
			f.decls = append(f.decls, d)
		}
	}
	for _, c := range namedChildren(body) {
		f.collectMember(c, rec, qn)
	}
	return rec
}

func (f *file) collectMember(n *sitter.Node, rec *record, qn string) {
	switch n.Type() {
	case "field_declaration":
		typeNode := n.ChildByFieldName("type")
		if isRecordSpecifier(typeNode) || (typeNode != nil && typeNode.Type() == "enum_specifier") {
			f.collectTypes(typeNode, qn)
		}
		static := hasStorageClass(n, f.src, "static")
		for _, d := range declaratorsOf(n) {
			nameNode := declaratorName(d)
			if nameNode == nil {
				continue
			}
			name := f.spelling(nameNode)
			if functionDeclarator(d) != nil {
				f.addMethod(rec, name, n, false)
				continue
			}
			decl := f.newDecl(name, joinName(qn, name), syntax.DeclField, syntax.ScopeMember, nameNode)
			decl.Type = f.typeName(typeNode)
			switch {
			case static:
				// Static data members are variables with namespace lifetime.
				decl.Kind = syntax.DeclVariable
				decl.Scope = syntax.ScopeGlobal
				f.reg.globals.add(decl)
				if rec != nil {
					rec.statics[name] = decl
				}
			case rec != nil:
				rec.fields[name] = decl
			}
			f.decls = append(f.decls, decl)
		}
	case "function_definition":
		if fd := functionDeclarator(n.ChildByFieldName("declarator")); fd != nil {
			if nameNode := declaratorName(fd); nameNode != nil {
				f.addMethod(rec, f.spelling(nameNode), n, false)
			}
		}
	case "declaration":
		for _, d := range declaratorsOf(n) {
			if fd := functionDeclarator(d); fd != nil {
				if nameNode := declaratorName(fd); nameNode != nil {
					f.addMethod(rec, f.spelling(nameNode), n, false)
				}
			}
		}
	case "template_declaration":
		for _, c := range namedChildren(n) {
			f.collectMember(c, rec, qn)
		}
	case "access_specifier", "friend_declaration", "comment":
	default:
		f.collectTypes(n, qn)
	}
}

// addMethod registers or looks up a method of rec. definition marks n as
// the method's definition site.
func (f *file) addMethod(rec *record, name string, n *sitter.Node, definition bool) *syntax.Decl {
	if rec == nil {
		return nil
	}
	if m := rec.methods[name]; m != nil {
		if !definition {
			return m
		}
		if m.File != f.path {
			// Declared in an included header: the definition here is this
			// file's own decl under the same USR.
			cp := *m
			cp.File = f.path
			m = &cp
			rec.methods[name] = m
			f.decls = append(f.decls, m)
		}
		m.Span = spanOf(n)
		m.Defined = true
		return m
	}
	d := f.newDecl(name, joinName(rec.qualified(), name), syntax.DeclMethod, syntax.ScopeMember, n)
	rec.methods[name] = d
	f.decls = append(f.decls, d)
	return d
}

func (f *file) collectEnum(n *sitter.Node, prefix string) {
	enumQN := ""
	if name := n.ChildByFieldName("name"); name != nil {
		enumQN = joinName(prefix, normalizeType(f.text(name)))
		f.reg.enums[enumQN] = true
		f.reg.enums[lastSegment(enumQN)] = true
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	scoped := enumQN != "" && (hasToken(n, "class") || hasToken(n, "struct"))
	for _, e := range namedChildren(body) {
		if e.Type() != "enumerator" {
			continue
		}
		nameNode := e.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := f.text(nameNode)
		qn := joinName(prefix, name)
		if scoped {
			qn = joinName(enumQN, name)
		}
		d := f.newDecl(name, qn, syntax.DeclEnumConstant, syntax.ScopeGlobal, e)
		if scoped {
			// Scoped enumerators are only reachable qualified.
			f.reg.enumConsts.alias(qn, d)
		} else {
			f.reg.enumConsts.add(d)
			if enumQN != "" {
				f.reg.enumConsts.alias(joinName(enumQN, name), d)
			}
		}
		f.decls = append(f.decls, d)
	}
}

// collectTypedef handles typedef declarations: aliases of scalar types are
// remembered so declarations using them are not mistaken for constructions,
// and typedef'd anonymous structs become named records.
func (f *file) collectTypedef(n *sitter.Node, prefix string) {
	typeNode := n.ChildByFieldName("type")
	for _, d := range declaratorsOf(n) {
		nameNode := declaratorName(d)
		if nameNode == nil {
			continue
		}
		alias := joinName(prefix, f.spelling(nameNode))
		f.aliasType(alias, typeNode, prefix, isIndirect(d))
	}
	if typeNode != nil && typeNode.Type() == "enum_specifier" {
		f.collectEnum(typeNode, prefix)
	}
}

func (f *file) collectAlias(n *sitter.Node, prefix string) {
	nameNode := n.ChildByFieldName("name")
	typeNode := n.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return
	}
	// type_descriptor wraps the aliased type.
	inner := typeNode.ChildByFieldName("type")
	if inner == nil {
		inner = typeNode
	}
	indirect := typeNode.ChildByFieldName("declarator") != nil
	f.aliasType(joinName(prefix, f.spelling(nameNode)), inner, prefix, indirect)
}

func (f *file) aliasType(alias string, typeNode *sitter.Node, prefix string, indirect bool) {
	if typeNode == nil {
		return
	}
	if indirect {
		f.reg.scalars[alias] = true
		return
	}
	if isRecordSpecifier(typeNode) {
		if rec := f.collectRecord(typeNode, prefix, lastSegment(alias)); rec != nil {
			if _, ok := f.reg.records[alias]; !ok {
				f.reg.records[alias] = rec
			}
			return
		}
	}
	if !f.classLike(typeNode, prefix) {
		f.reg.scalars[alias] = true
		f.reg.scalars[lastSegment(alias)] = true
		return
	}
	if rec := f.reg.recordFor(f.typeName(typeNode), prefix); rec != nil {
		if _, ok := f.reg.records[alias]; !ok {
			f.reg.records[alias] = rec
			f.reg.recordsByName[lastSegment(alias)] = append(f.reg.recordsByName[lastSegment(alias)], rec)
		}
	}
}

// collectDecls is the second pass: functions, methods and namespace-scope
// variables. ns is the enclosing namespace, outer the enclosing namespace or
// class used to name nested records.
func (f *file) collectDecls(n *sitter.Node, ns, outer string) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "namespace_definition":
		inner := ns
		if name := n.ChildByFieldName("name"); name != nil {
			inner = joinName(ns, f.spelling(name))
		}
		for _, c := range namedChildren(n.ChildByFieldName("body")) {
			f.collectDecls(c, inner, inner)
		}
		return
	case "function_definition":
		f.addFunction(n, ns, nil)
		return
	case "class_specifier", "struct_specifier", "union_specifier":
		f.collectRecordBodies(n, ns, outer)
		return
	case "declaration":
		f.addGlobalDeclaration(n, ns)
		return
	case "type_definition":
		if t := n.ChildByFieldName("type"); isRecordSpecifier(t) {
			f.collectRecordBodies(t, ns, outer)
		}
		return
	case "enum_specifier", "alias_declaration", "compound_statement":
		return
	}
	for _, c := range namedChildren(n) {
		f.collectDecls(c, ns, outer)
	}
}

// collectRecordBodies queues the bodies of methods defined inside a class.
func (f *file) collectRecordBodies(n *sitter.Node, ns, outer string) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	qn := outer
	var rec *record
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		qn = joinName(outer, normalizeType(f.text(nameNode)))
		rec = f.reg.records[qn]
	}
	var walk func(c *sitter.Node)
	walk = func(c *sitter.Node) {
		switch c.Type() {
		case "function_definition":
			if rec != nil {
				f.addFunction(c, ns, rec)
			}
		case "template_declaration":
			for _, cc := range namedChildren(c) {
				walk(cc)
			}
		case "field_declaration":
			if t := c.ChildByFieldName("type"); isRecordSpecifier(t) {
				f.collectRecordBodies(t, ns, qn)
			}
		}
	}
	for _, c := range namedChildren(body) {
		walk(c)
	}
}

// addFunction registers a function or method definition and queues its body.
func (f *file) addFunction(n *sitter.Node, ns string, rec *record) {
	fd := functionDeclarator(n.ChildByFieldName("declarator"))
	if fd == nil {
		return
	}
	nameNode := declaratorName(fd)
	if nameNode == nil {
		return
	}
	spelled := f.spelling(nameNode)

	var decl *syntax.Decl
	switch {
	case rec != nil:
		decl = f.addMethod(rec, spelled, n, true)
	case nameNode.Type() == "qualified_identifier":
		scope, base := splitQualified(spelled)
		if owner := f.reg.recordFor(scope, ns); owner != nil {
			owner = f.reg.own(owner)
			rec = owner
			decl = f.addMethod(owner, base, n, true)
		} else {
			decl = f.addFunctionDecl(joinName(ns, spelled), n, true)
		}
	default:
		decl = f.addFunctionDecl(joinName(ns, spelled), n, true)
	}
	if decl == nil || n.ChildByFieldName("body") == nil {
		return
	}
	f.tasks = append(f.tasks, bodyTask{owner: decl, function: true, node: n, ns: ns, rec: rec})
}

func (f *file) addFunctionDecl(qn string, n *sitter.Node, definition bool) *syntax.Decl {
	if d := f.reg.functions.byQualified[qn]; d != nil {
		if definition {
			d.Span = spanOf(n)
		}
		return d
	}
	d := f.newDecl(lastSegment(qn), qn, syntax.DeclFunction, syntax.ScopeGlobal, n)
	f.reg.functions.add(d)
	f.decls = append(f.decls, d)
	return d
}

// addGlobalDeclaration registers namespace-scope variables and function
// prototypes, queueing variables that have an initializer or are built by
// a default constructor.
func (f *file) addGlobalDeclaration(n *sitter.Node, ns string) {
	typeNode := n.ChildByFieldName("type")
	if isRecordSpecifier(typeNode) {
		f.collectRecordBodies(typeNode, ns, ns)
	}
	extern := hasStorageClass(n, f.src, "extern")
	typeName := f.typeName(typeNode)

	for _, d := range declaratorsOf(n) {
		if fd := functionDeclarator(d); fd != nil {
			if nameNode := declaratorName(fd); nameNode != nil {
				f.addFunctionDecl(joinName(ns, f.spelling(nameNode)), d, false)
			}
			continue
		}
		nameNode := declaratorName(d)
		if nameNode == nil {
			continue
		}
		spelled := f.spelling(nameNode)
		qn := joinName(ns, spelled)
		decl := f.reg.globals.byQualified[qn]
		if decl == nil {
			decl = f.newDecl(lastSegment(spelled), qn, syntax.DeclVariable, syntax.ScopeGlobal, nameNode)
			decl.Type = typeName
			f.reg.globals.add(decl)
			f.decls = append(f.decls, decl)
		} else if !extern {
			decl.Span = spanOf(nameNode)
		}
		if extern {
			continue
		}
		if d.Type() == "init_declarator" || (f.classLike(typeNode, ns) && !isIndirect(d)) {
			f.tasks = append(f.tasks, bodyTask{owner: decl, node: d, typeNode: typeNode, ns: ns})
		}
	}
}
