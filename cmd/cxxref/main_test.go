package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cxxref"
	"github.com/jward/cxxref/internal/config"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := findRepoRoot(root)
	assert.Equal(t, root, got)
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	deep := filepath.Join(root, "sub", "deep")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	got := findRepoRoot(deep)
	assert.Equal(t, root, got)
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	// TempDir has no .git directory anywhere in its ancestry
	// (unless /tmp itself is a repo, which would be unusual).
	dir := t.TempDir()

	got := findRepoRoot(dir)
	assert.Equal(t, dir, got)
}

func TestResolveDBPath(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	assert.Equal(t, filepath.Join(root, ".cxxref", "index.db"), resolveDBPath(root, cfg))

	cfg.DB = "graph.db"
	assert.Equal(t, filepath.Join(root, "graph.db"), resolveDBPath(root, cfg))

	abs := filepath.Join(t.TempDir(), "abs.db")
	cfg.DB = abs
	assert.Equal(t, abs, resolveDBPath(root, cfg))

	flagDB = "flag.db"
	defer func() { flagDB = "" }()
	assert.Equal(t, filepath.Join(root, "flag.db"), resolveDBPath(root, cfg))
}

func TestResolveTargetDir(t *testing.T) {
	dir := t.TempDir()
	got, err := resolveTargetDir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	file := filepath.Join(dir, "main.cpp")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = resolveTargetDir([]string{file})
	assert.ErrorContains(t, err, "not a directory")

	_, err = resolveTargetDir([]string{filepath.Join(dir, "missing")})
	assert.ErrorContains(t, err, "directory not found")
}

func TestParseScriptArgs(t *testing.T) {
	args, err := parseScriptArgs([]string{"name=run", "expr=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "run", "expr": "a=b"}, args)

	_, err = parseScriptArgs([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseScriptArgs([]string{"=x"})
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"call", "construct"}, splitList(" call, ,construct "))
	assert.Nil(t, splitList(""))
}

func TestPaginate(t *testing.T) {
	defer func(limit, offset int) { flagLimit, flagOffset = limit, offset }(flagLimit, flagOffset)

	items := []int{1, 2, 3, 4, 5}
	flagLimit, flagOffset = 2, 1
	assert.Equal(t, []int{2, 3}, paginate(items))

	flagOffset = 10
	assert.Empty(t, paginate(items))

	flagLimit, flagOffset = 1000, 0
	assert.Len(t, paginate(items), 5)
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.ErrorContains(t, validateFormat("yaml"), "invalid format")
}

func TestOutputResultText_Nodes(t *testing.T) {
	var buf bytes.Buffer
	total := 3
	err := outputResultText(&buf, CLIResult{
		Command: "symbols",
		Results: []CLINode{
			{ID: 1, Name: "run", Kind: "function", Scope: "global", File: "main.cpp", StartLine: 7},
		},
		TotalCount: &total,
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "main.cpp")
	assert.Contains(t, out, "Showing 1 of 3 results")
}

func TestOutputResultText_Summary(t *testing.T) {
	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{
		Command: "summary",
		Results: CLISummary{
			Files:       1,
			Nodes:       4,
			Edges:       3,
			NodesByKind: map[string]int{"function": 3, "variable": 1},
			EdgesByKind: map[string]int{"declare_local": 1, "call": 2},
		},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Edges: 3")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("call: 2")), bytes.Index(buf.Bytes(), []byte("declare_local: 1")))
}

func TestOutputResultText_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{Results: 42})
	assert.Error(t, err)
}

func TestOutputResultText_CallGraph(t *testing.T) {
	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{Results: CLICallGraph{
		Root: 1,
		Nodes: []CLICallGraphNode{
			{Node: CLINode{ID: 1, Name: "main"}, Depth: 0},
			{Node: CLINode{ID: 2, Name: "run"}, Depth: 1},
		},
		Edges:    []CLICallGraphEdge{{CallerID: 1, CalleeID: 2, Line: 3}},
		MaxDepth: 1,
	}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "main (#1)\n  run (#2)\n")
	assert.Contains(t, buf.String(), "2 nodes, 1 edges, depth 1")
}

func TestDumpCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.cpp")
	require.NoError(t, os.WriteFile(file, []byte("int helper();\nint run() { return helper(); }\n"), 0o644))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"dump", "--log-level", "error", file})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		flagLogLevel = ""
	}()

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "== function run")
}

func TestEngineOptions_DefaultConfigSkipsVendor(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "dep.cpp"), []byte("int dep() { return 1; }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.cpp"), []byte("int main() { return 0; }\n"), 0o644))

	engine, err := cxxref.New(filepath.Join(t.TempDir(), "test.db"), engineOptions(config.Default())...)
	require.NoError(t, err)
	defer engine.Close()

	report, err := engine.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
}

func TestLoadConfig_ResolvesIncludeDirs(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName),
		[]byte("include_dirs: [include, /opt/sdk/include]\n"), 0o644))

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "include"), "/opt/sdk/include"}, cfg.IncludeDirs)
}
