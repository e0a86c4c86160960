package cxx

import (
	"maps"
	"slices"
	"strings"

	"github.com/jward/cxxref/internal/syntax"
)

// record is a class, struct or union with its members.
type record struct {
	decl    *syntax.Decl
	fields  map[string]*syntax.Decl
	methods map[string]*syntax.Decl
	// statics holds static data members, which are variables rather than
	// fields.
	statics map[string]*syntax.Decl
}

func newRecord(d *syntax.Decl) *record {
	return &record{
		decl:    d,
		fields:  make(map[string]*syntax.Decl),
		methods: make(map[string]*syntax.Decl),
		statics: make(map[string]*syntax.Decl),
	}
}

func (r *record) qualified() string { return r.decl.DisplayName() }

// member looks a name up among the record's members. Callees prefer methods,
// everything else prefers data members.
func (r *record) member(name string, callee bool) *syntax.Decl {
	if callee {
		if m := r.methods[name]; m != nil {
			return m
		}
	}
	if f := r.fields[name]; f != nil {
		return f
	}
	if v := r.statics[name]; v != nil {
		return v
	}
	return r.methods[name]
}

// symtab indexes declarations by plain and qualified name.
type symtab struct {
	byName      map[string][]*syntax.Decl
	byQualified map[string]*syntax.Decl
}

func newSymtab() symtab {
	return symtab{
		byName:      make(map[string][]*syntax.Decl),
		byQualified: make(map[string]*syntax.Decl),
	}
}

func (t symtab) add(d *syntax.Decl) {
	t.byName[d.Name] = append(t.byName[d.Name], d)
	t.alias(d.DisplayName(), d)
}

// alias makes d reachable under an additional qualified spelling only.
func (t symtab) alias(qualified string, d *syntax.Decl) {
	if _, ok := t.byQualified[qualified]; !ok {
		t.byQualified[qualified] = d
	}
}

// qualified resolves a possibly qualified name relative to ns.
func (t symtab) qualified(name, ns string) *syntax.Decl {
	if strings.HasPrefix(name, "::") {
		return t.byQualified[name[2:]]
	}
	for prefix := ns; ; prefix = parentNamespace(prefix) {
		if d := t.byQualified[joinName(prefix, name)]; d != nil {
			return d
		}
		if prefix == "" {
			return nil
		}
	}
}

// registry holds every file-scope entity discovered in a translation unit.
type registry struct {
	records       map[string]*record
	recordsByName map[string][]*record
	enums         map[string]bool
	scalars       map[string]bool

	enumConsts symtab
	globals    symtab
	functions  symtab

	// external caches decls synthesized for names declared elsewhere so
	// that repeated uses share one pointer.
	external map[string]*syntax.Decl

	// chain is this registry followed by the registries of every header it
	// includes, transitively and each once. Lookups search it in order.
	chain []*registry
}

func newRegistry() *registry {
	r := &registry{
		records:       make(map[string]*record),
		recordsByName: make(map[string][]*record),
		enums:         make(map[string]bool),
		scalars:       make(map[string]bool),
		enumConsts:    newSymtab(),
		globals:       newSymtab(),
		functions:     newSymtab(),
		external:      make(map[string]*syntax.Decl),
	}
	r.chain = []*registry{r}
	return r
}

// setImports records the registries of the headers r's file includes.
// Imported registries are only read.
func (r *registry) setImports(imports []*registry) {
	chain := []*registry{r}
	seen := map[*registry]bool{r: true}
	for _, imp := range imports {
		for _, s := range imp.chain {
			if !seen[s] {
				seen[s] = true
				chain = append(chain, s)
			}
		}
	}
	r.chain = chain
}

// family selects one of the symbol tables of a registry.
type family int

const (
	enumConstTable family = iota
	globalTable
	functionTable
)

func (r *registry) table(f family) symtab {
	switch f {
	case enumConstTable:
		return r.enumConsts
	case globalTable:
		return r.globals
	}
	return r.functions
}

// lookup resolves an unqualified name as seen from namespace ns. Enclosing
// namespaces are tried innermost first across the file and its headers
// before any same-named declaration in an unrelated namespace.
func (r *registry) lookup(name, ns string, fams ...family) *syntax.Decl {
	if d := r.qualified(name, ns, fams...); d != nil {
		return d
	}
	for _, s := range r.chain {
		for _, f := range fams {
			if cands := s.table(f).byName[name]; len(cands) > 0 {
				return cands[0]
			}
		}
	}
	return nil
}

// qualified resolves a possibly qualified name relative to ns.
func (r *registry) qualified(name, ns string, fams ...family) *syntax.Decl {
	for _, s := range r.chain {
		for _, f := range fams {
			if d := s.table(f).qualified(name, ns); d != nil {
				return d
			}
		}
	}
	return nil
}

func (r *registry) addRecord(rec *record) {
	q := rec.qualified()
	if _, ok := r.records[q]; ok {
		return
	}
	r.records[q] = rec
	r.recordsByName[rec.decl.Name] = append(r.recordsByName[rec.decl.Name], rec)
}

// own returns this file's version of rec. A record declared in an included
// header is copied on first use so that out-of-line member definitions in
// this file never modify the shared header registry.
func (r *registry) own(rec *record) *record {
	if mine := r.records[rec.qualified()]; mine != nil {
		return mine
	}
	clone := newRecord(rec.decl)
	maps.Copy(clone.fields, rec.fields)
	maps.Copy(clone.methods, rec.methods)
	maps.Copy(clone.statics, rec.statics)
	r.addRecord(clone)
	return clone
}

// recordFor resolves a spelled type name to a known record.
func (r *registry) recordFor(typeName, ns string) *record {
	name := normalizeType(typeName)
	if name == "" {
		return nil
	}
	if strings.HasPrefix(name, "::") {
		for _, s := range r.chain {
			if rec := s.records[name[2:]]; rec != nil {
				return rec
			}
		}
		return nil
	}
	for prefix := ns; ; prefix = parentNamespace(prefix) {
		for _, s := range r.chain {
			if rec := s.records[joinName(prefix, name)]; rec != nil {
				return rec
			}
		}
		if prefix == "" {
			break
		}
	}
	for _, s := range r.chain {
		if cands := s.recordsByName[lastSegment(name)]; len(cands) > 0 {
			return cands[0]
		}
	}
	return nil
}

// recordByMember finds the first record declaring name, for member accesses
// whose object type is unknown.
func (r *registry) recordByMember(name string, callee bool) *syntax.Decl {
	var best *syntax.Decl
	for _, s := range r.chain {
		for _, q := range sortedKeys(s.records) {
			if d := s.records[q].member(name, callee); d != nil {
				if callee == (d.Kind == syntax.DeclMethod) {
					return d
				}
				if best == nil {
					best = d
				}
			}
		}
	}
	return best
}

// isScalar reports whether a spelled type is known not to be a class type.
func (r *registry) isScalar(typeName, ns string) bool {
	name := normalizeType(typeName)
	if name == "" {
		return true
	}
	for prefix := ns; ; prefix = parentNamespace(prefix) {
		q := joinName(prefix, name)
		for _, s := range r.chain {
			if s.enums[q] || s.scalars[q] {
				return true
			}
		}
		if prefix == "" {
			break
		}
	}
	base := lastSegment(name)
	for _, s := range r.chain {
		if s.enums[base] || s.scalars[base] {
			return true
		}
	}
	return false
}

// externalDecl returns a placeholder for a name declared outside this file.
func (r *registry) externalDecl(kind syntax.DeclKind, scope syntax.DeclScope, spelled string) *syntax.Decl {
	qualified := normalizeType(spelled)
	key := string(kind) + ":" + qualified
	if d := r.external[key]; d != nil {
		return d
	}
	d := &syntax.Decl{
		Name:  lastSegment(qualified),
		Kind:  kind,
		Scope: scope,
	}
	if d.Name != qualified {
		d.QualifiedName = qualified
	}
	r.external[key] = d
	return d
}

// recordDecl returns the decl of the record a type spelling names, known or
// external.
func (r *registry) recordDecl(typeName, ns string) *syntax.Decl {
	if rec := r.recordFor(typeName, ns); rec != nil {
		return rec.decl
	}
	return r.externalDecl(syntax.DeclRecord, syntax.ScopeGlobal, typeName)
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "::" + name
}

func parentNamespace(ns string) string {
	if i := strings.LastIndex(ns, "::"); i >= 0 {
		return ns[:i]
	}
	return ""
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}

// normalizeType strips template arguments, elaborated type keywords and
// whitespace from a type spelling: "const std::vector<int> &" -> "std::vector".
func normalizeType(s string) string {
	s = stripTemplateArgs(s)
	fields := strings.Fields(strings.NewReplacer("*", " ", "&", " ").Replace(s))
	out := fields[:0]
	for _, f := range fields {
		switch f {
		case "const", "volatile", "struct", "class", "union", "enum", "typename":
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, "")
}

// stripTemplateArgs removes every balanced <...> group.
func stripTemplateArgs(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
