package cxx

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cxxref/internal/syntax"
	"github.com/jward/cxxref/internal/visitor"
)

func parseSource(t *testing.T, src string) *Unit {
	t.Helper()
	unit, err := Parse(context.Background(), "test.cpp", []byte(src))
	require.NoError(t, err)
	return unit
}

// walkBodies runs a BodyVisitor over every body and returns the events per
// owner display name.
func walkBodies(t *testing.T, unit *Unit) map[string][]visitor.Event {
	t.Helper()
	out := make(map[string][]visitor.Event)
	for _, b := range unit.Bodies {
		rec := &visitor.Recorder{}
		visitor.NewBodyVisitor(rec, b.Context()).Visit(b.Root)
		out[b.Owner.DisplayName()] = append(out[b.Owner.DisplayName()], rec.Events...)
	}
	return out
}

type ev struct {
	kind   visitor.EventKind
	target string
}

func summarize(events []visitor.Event) []ev {
	out := make([]ev, 0, len(events))
	for _, e := range events {
		out = append(out, ev{e.Kind, e.Target()})
	}
	return out
}

func TestParse_UnsupportedExtension(t *testing.T) {
	t.Parallel()
	_, err := Parse(context.Background(), "main.go", []byte("package main"))
	require.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestLanguageForFile(t *testing.T) {
	t.Parallel()
	for _, path := range []string{"a.cpp", "b.CC", "dir/c.hpp", "d.h", "e.cxx"} {
		lang, ok := LanguageForFile(path)
		assert.True(t, ok, path)
		assert.Equal(t, Language, lang, path)
	}
	_, ok := LanguageForFile("main.rs")
	assert.False(t, ok)
	assert.Contains(t, Extensions(), ".cpp")
}

func TestParse_LocalDeclThenCalls(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
int f();
void g(int);

void body() {
    int x = f();
    g(x);
}
`)
	require.Len(t, unit.Bodies, 1)
	body := unit.Bodies[0]
	assert.True(t, body.Function)
	assert.Equal(t, "body", body.Owner.Name)
	assert.Equal(t, syntax.DeclFunction, body.Owner.Kind)

	events := walkBodies(t, unit)["body"]
	assert.Equal(t, []ev{
		{visitor.LocalVariableDeclarationInBody, "x"},
		{visitor.CallInBody, "f"},
		{visitor.CallInBody, "g"},
	}, summarize(events))

	local := events[0].Decl
	assert.Equal(t, syntax.ScopeLocal, local.Scope)
	assert.Equal(t, "int", local.Type)
	assert.Same(t, body.Owner, local.Owner)
}

func TestParse_GlobalInitializerOwnsCall(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
int compute();
int counter = compute();
`)
	require.Len(t, unit.Bodies, 1)
	body := unit.Bodies[0]
	assert.False(t, body.Function)
	assert.Equal(t, "counter", body.Owner.Name)
	assert.True(t, body.Owner.IsGlobalVariable())

	events := walkBodies(t, unit)["counter"]
	require.Len(t, events, 1)
	assert.Equal(t, visitor.CallInBody, events[0].Kind)
	assert.Equal(t, "compute", events[0].Target())
	v, ok := events[0].Context.Variable()
	require.True(t, ok)
	assert.Same(t, body.Owner, v)
}

const shapesSource = `
enum Color { Red, Green };
enum class Mode { Fast, Slow };
int total = 0;

struct Point {
    int x;
    int y;
    int sum() const { return x + y; }
};

class Shape {
public:
    Shape(int w) : width(w) {}
    int area();
    int width;
};

int Shape::area() {
    total += width;
    Point p;
    Point* q = new Point();
    q->x = p.sum();
    Color c = Red;
    Mode m = Mode::Fast;
    return this->width * 2;
}
`

func TestParse_MethodBodyEvents(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, shapesSource)
	events := walkBodies(t, unit)

	assert.Equal(t, []ev{
		{visitor.GlobalVariableReferenceInBody, "total"},
		{visitor.FieldAccessInBody, "Shape::width"},
		{visitor.LocalVariableDeclarationInBody, "p"},
		{visitor.ConstructInBody, "Point"},
		{visitor.LocalVariableDeclarationInBody, "q"},
		{visitor.NewAllocationInBody, "Point"},
		{visitor.ConstructInBody, "Point"},
		{visitor.FieldAccessInBody, "Point::x"},
		{visitor.CallInBody, "Point::sum"},
		{visitor.LocalVariableDeclarationInBody, "c"},
		{visitor.EnumConstantReferenceInBody, "Red"},
		{visitor.LocalVariableDeclarationInBody, "m"},
		{visitor.EnumConstantReferenceInBody, "Mode::Fast"},
		{visitor.FieldAccessInBody, "Shape::width"},
	}, summarize(events["Shape::area"]))

	for _, e := range events["Shape::area"] {
		fn, ok := e.Context.Function()
		require.True(t, ok)
		assert.Equal(t, "Shape::area", fn.DisplayName())
	}
}

func TestParse_ImplicitThisFields(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, shapesSource)
	events := walkBodies(t, unit)
	assert.Equal(t, []ev{
		{visitor.FieldAccessInBody, "Point::x"},
		{visitor.FieldAccessInBody, "Point::y"},
	}, summarize(events["Point::sum"]))
}

func TestParse_BodiesInSourceOrder(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, shapesSource)
	var owners []string
	for _, b := range unit.Bodies {
		owners = append(owners, b.Owner.DisplayName())
	}
	assert.Equal(t, []string{"total", "Point::sum", "Shape::Shape", "Shape::area"}, owners)
}

func TestParse_FileScopeDecls(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, shapesSource)
	byName := make(map[string]*syntax.Decl)
	for _, d := range unit.Decls {
		byName[d.DisplayName()] = d
	}

	require.Contains(t, byName, "Point")
	assert.Equal(t, syntax.DeclRecord, byName["Point"].Kind)
	require.Contains(t, byName, "Point::x")
	assert.Equal(t, syntax.DeclField, byName["Point::x"].Kind)
	assert.Equal(t, syntax.ScopeMember, byName["Point::x"].Scope)
	require.Contains(t, byName, "Shape::area")
	assert.Equal(t, syntax.DeclMethod, byName["Shape::area"].Kind)
	assert.Equal(t, 19, byName["Shape::area"].Span.StartLine, "definition wins over the in-class declaration")
	require.Contains(t, byName, "Mode::Fast")
	assert.Equal(t, syntax.DeclEnumConstant, byName["Mode::Fast"].Kind)
	require.Contains(t, byName, "Red")
	require.Contains(t, byName, "total")
	assert.True(t, byName["total"].IsGlobalVariable())
	for _, d := range unit.Decls {
		assert.Equal(t, "test.cpp", d.File)
		assert.True(t, d.Defined)
	}
}

func TestParse_Namespaces(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
namespace util {
int helper(int v) { return v; }
int limit = 10;
}

namespace app {
int run() { return util::helper(util::limit); }
}
`)
	events := walkBodies(t, unit)
	assert.Empty(t, events["util::helper"], "parameters are locals")
	assert.Equal(t, []ev{
		{visitor.CallInBody, "util::helper"},
		{visitor.GlobalVariableReferenceInBody, "util::limit"},
	}, summarize(events["app::run"]))
}

func TestParse_ExternalCallee(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
void run() {
    puts("hi");
    std::abs(-1);
}
`)
	events := walkBodies(t, unit)["run"]
	require.Len(t, events, 2)
	assert.Equal(t, "puts", events[0].Target())
	assert.Equal(t, "std::abs", events[1].Target())
	for _, e := range events {
		assert.Equal(t, visitor.CallInBody, e.Kind)
		assert.False(t, e.Decl.Defined, "external callees are placeholders")
	}
}

func TestParse_MethodNotReportedAsField(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
struct Counter {
    int n;
    void inc() { n++; }
};

void use(Counter& c) {
    c.inc();
    c.n = 0;
}
`)
	assert.Equal(t, []ev{
		{visitor.CallInBody, "Counter::inc"},
		{visitor.FieldAccessInBody, "Counter::n"},
	}, summarize(walkBodies(t, unit)["use"]))
}

func TestParse_ShadowingLocalHidesGlobal(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
int value = 1;

int read() {
    int value = 2;
    return value;
}

int readGlobal() {
    return value;
}
`)
	events := walkBodies(t, unit)
	assert.Equal(t, []ev{{visitor.LocalVariableDeclarationInBody, "value"}}, summarize(events["read"]))
	assert.Equal(t, []ev{{visitor.GlobalVariableReferenceInBody, "value"}}, summarize(events["readGlobal"]))
}

func TestParse_DefaultConstructedGlobal(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
struct Registry { int size; };
Registry registry;
Registry* nothing;
`)
	require.Len(t, unit.Bodies, 1)
	events := walkBodies(t, unit)["registry"]
	assert.Equal(t, []ev{{visitor.ConstructInBody, "Registry"}}, summarize(events))
}

func TestParse_FunctionalConstruction(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
struct Vec { Vec(int a, int b) {} };

Vec make() {
    return Vec(1, 2);
}
`)
	assert.Equal(t, []ev{{visitor.ConstructInBody, "Vec"}}, summarize(walkBodies(t, unit)["make"]))
}

func TestParse_CommentsAreSkipped(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
int f();

void commented() {
    // leading
    f(); /* trailing */
}
`)
	assert.False(t, unit.HasErrors)
	assert.Equal(t, []ev{{visitor.CallInBody, "f"}}, summarize(walkBodies(t, unit)["commented"]))
}

func TestParse_SyntaxErrorsAreTolerated(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
int f();

void broken() {
    int x = f( ;
    f();
}
`)
	assert.True(t, unit.HasErrors)
	assert.NotPanics(t, func() { walkBodies(t, unit) })
}

func TestParse_LoopVariablesAreLocals(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
int items[3];

void loop() {
    for (int i = 0; i < 3; i++) {
        items[i] = i;
    }
}
`)
	assert.Equal(t, []ev{
		{visitor.LocalVariableDeclarationInBody, "i"},
		{visitor.GlobalVariableReferenceInBody, "items"},
	}, summarize(walkBodies(t, unit)["loop"]))
}

func TestParse_ConversionDropsParserTypes(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, "void f() { return; }\n")
	require.Len(t, unit.Bodies, 1)

	var b strings.Builder
	syntax.Dump(&b, unit.Bodies[0].Root)
	assert.Contains(t, b.String(), "other")
	assert.Equal(t, syntax.Span{StartLine: 1, StartCol: 10, EndLine: 1, EndCol: 21}, unit.Bodies[0].Root.Span())
}

func TestParse_StaticMemberIsNotAField(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
struct S {
    int n;
    static int count;
    int get() const { return count; }
};

void use(S s) {
    s.count;
    s.n;
    S::count = 1;
}
`)
	events := walkBodies(t, unit)
	assert.Equal(t, []ev{
		{visitor.FieldAccessInBody, "S::n"},
		{visitor.GlobalVariableReferenceInBody, "S::count"},
	}, summarize(events["use"]))
	assert.Equal(t, []ev{
		{visitor.GlobalVariableReferenceInBody, "S::count"},
	}, summarize(events["S::get"]))
}

func TestParse_StructuredBindingsAreLocals(t *testing.T) {
	t.Parallel()
	unit := parseSource(t, `
int a = 0;

int total(const std::map<int, int>& m) {
    int s = 0;
    for (auto& [a, b] : m) {
        s += a + b;
    }
    auto [x, y] = pick();
    return s + x + a;
}
`)
	events := walkBodies(t, unit)["total"]
	assert.Equal(t, []ev{
		{visitor.LocalVariableDeclarationInBody, "s"},
		{visitor.LocalVariableDeclarationInBody, "a"},
		{visitor.LocalVariableDeclarationInBody, "b"},
		{visitor.LocalVariableDeclarationInBody, "x"},
		{visitor.LocalVariableDeclarationInBody, "y"},
		{visitor.CallInBody, "pick"},
		{visitor.GlobalVariableReferenceInBody, "a"},
	}, summarize(events))
	assert.Equal(t, syntax.ScopeLocal, events[1].Decl.Scope)
}

// headerFiles serves in-memory sources to an Includes.
func headerFiles(files map[string]string) ReadFunc {
	return func(path string) ([]byte, error) {
		if src, ok := files[path]; ok {
			return []byte(src), nil
		}
		return nil, fs.ErrNotExist
	}
}

func TestParse_IncludedHeaderDeclarations(t *testing.T) {
	t.Parallel()
	inc := NewIncludes(headerFiles(map[string]string{
		"/src/util.h": `#ifndef UTIL_H
#define UTIL_H
#include "level.h"
#include <vector>

namespace util {
extern int limit;
int clamp(int v);
}
extern int counter;
#endif
`,
		"/inc/level.h": `#include "util.h"
enum Level { Low, High };
`,
	}), "/inc")

	unit, err := Parse(context.Background(), "/src/main.cpp", []byte(`#include "util.h"

int main() {
    return util::limit + counter + High + util::clamp(Low);
}
`), WithIncludes(inc))
	require.NoError(t, err)

	events := walkBodies(t, unit)["main"]
	assert.Equal(t, []ev{
		{visitor.GlobalVariableReferenceInBody, "util::limit"},
		{visitor.GlobalVariableReferenceInBody, "counter"},
		{visitor.EnumConstantReferenceInBody, "High"},
		{visitor.CallInBody, "util::clamp"},
		{visitor.EnumConstantReferenceInBody, "Low"},
	}, summarize(events))
	assert.Equal(t, "/src/util.h", events[0].Decl.File)

	for _, d := range unit.Decls {
		assert.Equal(t, "/src/main.cpp", d.File, "header decls belong to the header")
	}
}

func TestParse_OutOfLineMethodOfHeaderRecord(t *testing.T) {
	t.Parallel()
	inc := NewIncludes(headerFiles(map[string]string{
		"/src/shape.h": `struct Shape {
    int sides;
    static int count;
    int area() const;
};
`,
	}))
	src := []byte(`#include "shape.h"

int Shape::area() const {
    return sides * count;
}
`)

	for range 2 {
		unit, err := Parse(context.Background(), "/src/shape.cpp", src, WithIncludes(inc))
		require.NoError(t, err)
		require.Len(t, unit.Bodies, 1)

		owner := unit.Bodies[0].Owner
		assert.Equal(t, "Shape::area", owner.DisplayName())
		assert.Equal(t, syntax.DeclMethod, owner.Kind)
		assert.Equal(t, "/src/shape.cpp", owner.File)
		assert.Equal(t, 3, owner.Span.StartLine)
		assert.Contains(t, unit.Decls, owner)

		assert.Equal(t, []ev{
			{visitor.FieldAccessInBody, "Shape::sides"},
			{visitor.GlobalVariableReferenceInBody, "Shape::count"},
		}, summarize(walkBodies(t, unit)["Shape::area"]))
	}

	header := inc.headers["/src/shape.h"]
	require.NotNil(t, header)
	assert.Equal(t, "/src/shape.h", header.records["Shape"].methods["area"].File)
}

func TestParse_MissingIncludeIsIgnored(t *testing.T) {
	t.Parallel()
	inc := NewIncludes(headerFiles(nil))
	unit, err := Parse(context.Background(), "/src/main.cpp", []byte(`#include "gone.h"
int main() { return missing; }
`), WithIncludes(inc))
	require.NoError(t, err)
	assert.Empty(t, walkBodies(t, unit)["main"])
}
