package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cxxref"
)

const toolSource = `int counter;

int helper(int v) {
    return v + counter;
}

int run() {
    int total = helper(1);
    return helper(total);
}

int main() {
    return run();
}
`

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	e, err := cxxref.New(filepath.Join(dir, "db", "index.db"), cxxref.WithParallel(false))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.cpp"), []byte(toolSource), 0o644))
	return NewServer(e, nil), src
}

func call(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args string) (map[string]any, bool) {
	t.Helper()
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)}}
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text := res.Content[0].(*mcp.TextContent).Text
	if res.IsError {
		return map[string]any{"error": text}, true
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out, false
}

func indexed(t *testing.T) *Server {
	t.Helper()
	srv, src := newTestServer(t)
	out, isErr := call(t, srv.handleIndexPath, `{"path":"`+filepath.ToSlash(src)+`"}`)
	require.False(t, isErr, out["error"])
	require.EqualValues(t, 1, out["files"])
	return srv
}

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NotNil(t, srv.MCPServer())
}

func TestIndexPath_RequiresPath(t *testing.T) {
	srv, _ := newTestServer(t)
	out, isErr := call(t, srv.handleIndexPath, `{}`)
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "path is required")
}

func TestIndexPath_SkipsUnchanged(t *testing.T) {
	srv, src := newTestServer(t)
	args := `{"path":"` + filepath.ToSlash(src) + `"}`
	_, isErr := call(t, srv.handleIndexPath, args)
	require.False(t, isErr)

	out, isErr := call(t, srv.handleIndexPath, args)
	require.False(t, isErr)
	assert.EqualValues(t, 0, out["files"])
	assert.EqualValues(t, 1, out["skipped"])
}

func TestFindSymbol(t *testing.T) {
	srv := indexed(t)
	out, isErr := call(t, srv.handleFindSymbol, `{"name":"helper"}`)
	require.False(t, isErr)
	require.EqualValues(t, 1, out["total"])

	sym := out["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "helper", sym["name"])
	assert.Equal(t, "function", sym["kind"])
	assert.Equal(t, true, sym["defined"])
	assert.EqualValues(t, 3, sym["start_line"])
}

func TestFindSymbol_RequiresName(t *testing.T) {
	srv := indexed(t)
	_, isErr := call(t, srv.handleFindSymbol, `{}`)
	assert.True(t, isErr)
}

func TestGetRelations_Outbound(t *testing.T) {
	srv := indexed(t)
	out, isErr := call(t, srv.handleGetRelations, `{"name":"run","kinds":["call"]}`)
	require.False(t, isErr, out["error"])
	assert.Equal(t, "outbound", out["direction"])
	require.EqualValues(t, 2, out["total"])

	rels := out["relations"].([]any)
	first := rels[0].(map[string]any)
	assert.Equal(t, "call", first["kind"])
	assert.Equal(t, "helper", first["name"])
	assert.EqualValues(t, 8, first["line"])
}

func TestGetRelations_Inbound(t *testing.T) {
	srv := indexed(t)
	out, isErr := call(t, srv.handleGetRelations, `{"name":"counter","direction":"inbound"}`)
	require.False(t, isErr, out["error"])
	require.EqualValues(t, 1, out["total"])
	rel := out["relations"].([]any)[0].(map[string]any)
	assert.Equal(t, "reference_global", rel["kind"])
	assert.Equal(t, "helper", rel["name"])
}

func TestGetRelations_Errors(t *testing.T) {
	srv := indexed(t)
	_, isErr := call(t, srv.handleGetRelations, `{}`)
	assert.True(t, isErr)

	out, isErr := call(t, srv.handleGetRelations, `{"name":"nope"}`)
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "node not found")

	_, isErr = call(t, srv.handleGetRelations, `{"name":"run","direction":"sideways"}`)
	assert.True(t, isErr)
}

func TestTraceCalls(t *testing.T) {
	srv := indexed(t)
	out, isErr := call(t, srv.handleTraceCalls, `{"name":"main","depth":5}`)
	require.False(t, isErr, out["error"])
	assert.Equal(t, "callees", out["direction"])
	assert.EqualValues(t, 2, out["depth"])

	var names []string
	for _, n := range out["nodes"].([]any) {
		names = append(names, n.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"main", "run", "helper"}, names)
}

func TestTraceCalls_Callers(t *testing.T) {
	srv := indexed(t)
	out, isErr := call(t, srv.handleTraceCalls, `{"name":"helper","direction":"callers","depth":1}`)
	require.False(t, isErr, out["error"])
	assert.EqualValues(t, 1, out["depth"])
	assert.Len(t, out["nodes"], 2)
}

func TestGraphSummary(t *testing.T) {
	srv := indexed(t)
	out, isErr := call(t, srv.handleGraphSummary, `{"top":1}`)
	require.False(t, isErr, out["error"])
	assert.EqualValues(t, 1, out["files"])

	hot := out["hotspots"].([]any)
	require.Len(t, hot, 1)
	assert.Equal(t, "helper", hot[0].(map[string]any)["name"])
}

func TestSymbolAt(t *testing.T) {
	srv, src := newTestServer(t)
	_, isErr := call(t, srv.handleIndexPath, `{"path":"`+filepath.ToSlash(src)+`"}`)
	require.False(t, isErr)

	file := filepath.ToSlash(filepath.Join(src, "main.cpp"))
	out, isErr := call(t, srv.handleSymbolAt, `{"file":"`+file+`","line":8,"col":10}`)
	require.False(t, isErr, out["error"])
	assert.Equal(t, "total", out["name"])

	_, isErr = call(t, srv.handleSymbolAt, `{"file":"`+file+`","line":0,"col":1}`)
	assert.True(t, isErr)
}
