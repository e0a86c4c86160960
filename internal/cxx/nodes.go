package cxx

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// declaratorTypes are the node types that can appear as a declarator of a
// declaration or field declaration.
var declaratorTypes = map[string]bool{
	"init_declarator":               true,
	"identifier":                    true,
	"field_identifier":              true,
	"qualified_identifier":          true,
	"pointer_declarator":            true,
	"reference_declarator":          true,
	"array_declarator":              true,
	"function_declarator":           true,
	"parenthesized_declarator":      true,
	"attributed_declarator":         true,
	"operator_name":                 true,
	"destructor_name":               true,
	"structured_binding_declarator": true,
}

// sameNode compares two nodes by position and type. Node handles returned by
// the parser are not guaranteed to be pointer-identical.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// hasToken reports whether n has a direct anonymous child of type tok, such as
// the "class" keyword of a scoped enum.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

// hasStorageClass reports whether declaration n carries the given storage
// class specifier (static, extern, ...).
func hasStorageClass(n *sitter.Node, src []byte, word string) bool {
	for _, c := range namedChildren(n) {
		if c.Type() == "storage_class_specifier" && c.Content(src) == word {
			return true
		}
	}
	return false
}

// declaratorsOf returns the declarators of a declaration, field declaration
// or parameter in source order.
func declaratorsOf(n *sitter.Node) []*sitter.Node {
	typeNode := n.ChildByFieldName("type")
	defaultValue := n.ChildByFieldName("default_value")
	value := n.ChildByFieldName("value")
	var out []*sitter.Node
	for _, c := range namedChildren(n) {
		if !declaratorTypes[c.Type()] || sameNode(c, typeNode) || sameNode(c, defaultValue) || sameNode(c, value) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// innerDeclarator steps one level into a wrapping declarator.
func innerDeclarator(d *sitter.Node) *sitter.Node {
	if next := d.ChildByFieldName("declarator"); next != nil {
		return next
	}
	for _, c := range namedChildren(d) {
		if declaratorTypes[c.Type()] {
			return c
		}
	}
	return nil
}

// declaratorName unwraps pointer, reference, array, function and init
// declarators down to the declared name.
func declaratorName(d *sitter.Node) *sitter.Node {
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "qualified_identifier",
			"destructor_name", "operator_name", "type_identifier", "template_function":
			return d
		case "init_declarator", "pointer_declarator", "reference_declarator",
			"array_declarator", "function_declarator", "parenthesized_declarator",
			"attributed_declarator":
			d = innerDeclarator(d)
		default:
			return nil
		}
	}
	return nil
}

// boundNames returns the names a declarator introduces: the declared name,
// or every identifier of a structured binding (auto& [k, v]).
func boundNames(d *sitter.Node) []*sitter.Node {
	for d != nil {
		switch d.Type() {
		case "structured_binding_declarator":
			var out []*sitter.Node
			for _, c := range namedChildren(d) {
				if c.Type() == "identifier" {
					out = append(out, c)
				}
			}
			return out
		case "init_declarator", "pointer_declarator", "reference_declarator",
			"parenthesized_declarator", "attributed_declarator":
			d = innerDeclarator(d)
		default:
			if name := declaratorName(d); name != nil {
				return []*sitter.Node{name}
			}
			return nil
		}
	}
	return nil
}

// functionDeclarator returns the function_declarator that makes d declare a
// function, or nil when d declares an object (including function pointers).
func functionDeclarator(d *sitter.Node) *sitter.Node {
	for d != nil {
		switch d.Type() {
		case "function_declarator":
			inner := innerDeclarator(d)
			if inner != nil && inner.Type() == "parenthesized_declarator" {
				return nil
			}
			return d
		case "pointer_declarator", "reference_declarator", "attributed_declarator":
			d = innerDeclarator(d)
		default:
			return nil
		}
	}
	return nil
}

// isIndirect reports whether declarator d declares a pointer or reference.
func isIndirect(d *sitter.Node) bool {
	for d != nil {
		switch d.Type() {
		case "pointer_declarator", "reference_declarator":
			return true
		case "init_declarator", "parenthesized_declarator", "attributed_declarator", "array_declarator":
			d = innerDeclarator(d)
		default:
			return false
		}
	}
	return false
}

func isRecordSpecifier(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "class_specifier", "struct_specifier", "union_specifier":
		return true
	}
	return false
}
