package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cxxref/internal/store"
)

const cppTestSource = `int helper(int v) {
    return v * 2;
}

int run() {
    return helper(21);
}
`

func newGraphStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "rt.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })

	fileID, err := s.InsertFile(&store.File{Path: "/src/main.cpp", Language: "cpp", Hash: "h", LineCount: 7})
	require.NoError(t, err)
	run, err := s.UpsertNode(&store.Node{USR: "function:run", Name: "run", QualifiedName: "run", Kind: "function", Scope: "global", FileID: &fileID, StartLine: 5, Defined: true})
	require.NoError(t, err)
	helper, err := s.UpsertNode(&store.Node{USR: "function:helper", Name: "helper", QualifiedName: "helper", Kind: "function", Scope: "global", FileID: &fileID, StartLine: 1, Defined: true})
	require.NoError(t, err)
	_, err = s.InsertEdge(&store.Edge{SourceID: run, TargetID: helper, Kind: store.EdgeCall, FileID: &fileID, Line: 6, Col: 12})
	require.NoError(t, err)
	return s
}

func TestRunSource_ParseAndNodeText(t *testing.T) {
	dir := t.TempDir()
	cppFile := filepath.Join(dir, "test.cpp")
	require.NoError(t, os.WriteFile(cppFile, []byte(cppTestSource), 0o644))

	rt := NewRuntime(nil, "")
	script := `
tree := parse(test_file)
root := tree.RootNode()
assert(root.Type() == "translation_unit", "expected translation_unit")

names := []
count := int(root.NamedChildCount())
for i := 0; i < count; i++ {
    child := root.NamedChild(i)
    if child.Type() == "function_definition" {
        decl := node_child(child, "declarator")
        names.append(node_text(node_child(decl, "declarator")))
    }
}

assert(len(names) == 2, 'expected 2 functions, got {len(names)}')
assert(names[0] == "helper", 'expected helper, got {names[0]}')
assert(names[1] == "run", 'expected run, got {names[1]}')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"test_file": cppFile})
	require.NoError(t, err)
}

func TestRunSource_ParseRejectsOtherLanguages(t *testing.T) {
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `parse("main.go")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file")
}

func TestRunSource_QueryHostFunction(t *testing.T) {
	rt := NewRuntime(nil, "")
	script := `
tree := parse_src(source)
matches := query("(call_expression function: (identifier) @callee)", tree.RootNode())
assert(len(matches) == 1, 'expected 1 match, got {len(matches)}')
text := node_text(matches[0]["callee"])
assert(text == "helper", 'expected helper, got {text}')

none := query("(new_expression) @n", tree.RootNode())
assert(len(none) == 0, "expected no matches")
`
	err := rt.RunSource(context.Background(), script, map[string]any{"source": cppTestSource})
	require.NoError(t, err)
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	rt := NewRuntime(nil, "")
	script := `
tree := parse_src("int x;")
query("(not_a_node_type", tree.RootNode())
`
	err := rt.RunSource(context.Background(), script, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestRunSource_NodeChildMissingFieldIsNil(t *testing.T) {
	rt := NewRuntime(nil, "")
	script := `
tree := parse_src("int x;")
root := tree.RootNode()
assert(node_child(root, "body") == nil, "expected nil")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_BodyEvents(t *testing.T) {
	rt := NewRuntime(nil, "")
	var out bytes.Buffer
	script := `
for _, e := range body_events(source) {
    emit(e)
}
`
	err := rt.RunSource(context.Background(), script, map[string]any{
		"source": cppTestSource,
		"emit":   MakeEmitFn(&out),
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"kind": "CallInBody", "owner": "run", "target": "helper", "line": 6, "col": 12}`,
		out.String())
}

func TestRunSource_GraphGlobals(t *testing.T) {
	s := newGraphStore(t)
	rt := NewRuntime(s, "")
	var out bytes.Buffer
	script := `
found := symbols("run")
assert(len(found) == 1, "expected run")
run := found[0]

out := outgoing(run["id"], "call")
assert(len(out) == 1, 'expected 1 call, got {len(out)}')
callee := out[0]["node"]
emit({"callee": callee["name"], "line": out[0]["line"]})

back := incoming(callee["id"])
assert(back[0]["node"]["name"] == "run", "expected caller run")
assert(len(outgoing(run["id"], "construct")) == 0, "kind filter")

n := node(callee["id"])
assert(n["defined"], "helper is defined")
assert(node(9999) == nil, "missing node is nil")

s := summary()
assert(s["edges_by_kind"]["call"] == 1, "one call edge")
assert(files()[0]["path"] == "/src/main.cpp", "file path")

rows := db_query("SELECT COUNT(*) AS n FROM nodes WHERE kind = ?", "function")
assert(rows[0]["n"] == 2, "two functions")
`
	err := rt.RunSource(context.Background(), script, map[string]any{"emit": MakeEmitFn(&out)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"callee": "helper", "line": 6}`, out.String())
}

func TestRunSource_DBQueryRejectsWrites(t *testing.T) {
	s := newGraphStore(t)
	rt := NewRuntime(s, "")
	err := rt.RunSource(context.Background(), `db_query("DELETE FROM edges")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only SELECT")
}

func TestRunSource_DBQueryChainedWriteFails(t *testing.T) {
	s := newGraphStore(t)
	rt := NewRuntime(s, "")
	err := rt.RunSource(context.Background(), `db_query("SELECT 1; DELETE FROM edges")`, nil)
	require.Error(t, err)

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM edges").Scan(&n))
	assert.Equal(t, 1, n)

	// The connection used by db_query is writable again afterwards.
	run, err := s.NodeByUSR("function:run")
	require.NoError(t, err)
	_, err = s.InsertEdge(&store.Edge{SourceID: run.ID, TargetID: run.ID, Kind: store.EdgeCall, Line: 7, Col: 5})
	require.NoError(t, err)
}

func TestRunSource_NoStoreNoGraphGlobals(t *testing.T) {
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `symbols("x")`, nil)
	require.Error(t, err)
}

func TestRunScript_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`result := 1 + 1`), 0o644))

	rt := NewRuntime(nil, dir)
	require.NoError(t, rt.RunScript(context.Background(), "test.risor", nil))
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(nil, t.TempDir())
	err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	require.Error(t, err)
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()
	content := `x := 42`
	mapFS := fstest.MapFS{
		"queries/hot.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("queries/hot.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute-style path should be resolved within the FS.
	got, err = rt.LoadScript("/queries/hot.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("missing.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestLoadScript_AbsolutePathOnDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	require.NoError(t, os.WriteFile(path, []byte(`z := 7`), 0o644))

	rt := NewRuntime(nil, "")
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, `z := 7`, got)
}

func TestImport_LocalImporter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0o644))

	rt := NewRuntime(nil, dir)
	script := `
import math_utils

result := math_utils.double(21)
assert(result == 42, 'expected 42, got {result}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	// The log global is always available, so imported modules may use it.
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func do_log(msg) {
	log.Info(msg)
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))
	script := `
import helper
helper.do_log("test message")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}
