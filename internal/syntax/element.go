package syntax

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Element is the concrete Node produced by frontends. It is immutable once
// built.
type Element struct {
	kind     Kind
	children []Node
	ref      *Decl
	declared []*Decl
	span     Span
	text     string
}

// Compile-time check: *Element satisfies Node.
var _ Node = (*Element)(nil)

// Option sets a field of an Element under construction.
type Option func(*Element)

// WithChildren sets the child sequence. Nil entries are kept as-is.
func WithChildren(children ...Node) Option {
	return func(e *Element) {
		e.children = children
	}
}

// WithRef sets the referenced declaration.
func WithRef(d *Decl) Option {
	return func(e *Element) {
		e.ref = d
	}
}

// WithDeclared sets the declared entities of a local declaration.
func WithDeclared(decls ...*Decl) Option {
	return func(e *Element) {
		e.declared = decls
	}
}

// WithSpan sets the source range.
func WithSpan(s Span) Option {
	return func(e *Element) {
		e.span = s
	}
}

// WithText sets the node's source text.
func WithText(text string) Option {
	return func(e *Element) {
		e.text = text
	}
}

// NewElement builds an Element of the given kind.
func NewElement(kind Kind, opts ...Option) *Element {
	e := &Element{kind: kind}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Element) Kind() Kind        { return e.kind }
func (e *Element) Children() []Node  { return e.children }
func (e *Element) Referenced() *Decl { return e.ref }
func (e *Element) Declared() []*Decl { return e.declared }
func (e *Element) Span() Span        { return e.span }
func (e *Element) Text() string      { return e.text }

// Dump writes an indented rendering of the tree rooted at n.
func Dump(w io.Writer, n Node) {
	dump(w, n, 0)
}

func dump(w io.Writer, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if n == nil {
		fmt.Fprintf(w, "%s<nil>\n", indent)
		return
	}
	line := fmt.Sprintf("%s%s [%s]", indent, n.Kind(), n.Span())
	if ref := n.Referenced(); ref != nil {
		line += fmt.Sprintf(" -> %s (%s)", ref, ref.Scope)
	}
	for _, d := range n.Declared() {
		line += fmt.Sprintf(" declares %s", d)
	}
	if t := firstLine(n.Text()); t != "" {
		line += fmt.Sprintf(" %q", t)
	}
	fmt.Fprintln(w, line)
	for _, c := range n.Children() {
		dump(w, c, depth+1)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "..."
	}
	if utf8.RuneCountInString(s) > 60 {
		s = string([]rune(s)[:57]) + "..."
	}
	return s
}
