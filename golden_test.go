package cxxref

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden test format.
type goldenFile struct {
	Definitions []goldenDef         `json:"definitions,omitempty"`
	Relations   []goldenRel         `json:"relations,omitempty"`
	Callees     map[string][]string `json:"callees,omitempty"`
	Callers     map[string][]string `json:"callers,omitempty"`
}

type goldenDef struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	File string `json:"file"`
	Line int    `json:"line"`
}

type goldenRel struct {
	From string `json:"from"`
	Kind string `json:"kind"`
	To   string `json:"to"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// TestGolden walks testdata/cpp/ and runs one golden test per case
// directory holding a src/ tree and a golden.json.
func TestGolden(t *testing.T) {
	root := filepath.Join("testdata", "cpp")
	cases, err := os.ReadDir(root)
	if err != nil {
		t.Skip("no testdata directory found")
	}

	for _, c := range cases {
		if !c.IsDir() {
			continue
		}
		testDir := filepath.Join(root, c.Name())
		goldenPath := filepath.Join(testDir, "golden.json")
		srcDir := filepath.Join(testDir, "src")
		if _, err := os.Stat(goldenPath); err != nil {
			continue
		}
		if _, err := os.Stat(srcDir); err != nil {
			continue
		}

		for _, parallel := range []bool{false, true} {
			name := c.Name() + "/serial"
			if parallel {
				name = c.Name() + "/parallel"
			}
			t.Run(name, func(t *testing.T) {
				runGoldenTest(t, srcDir, goldenPath, parallel)
			})
		}
	}
}

func runGoldenTest(t *testing.T, srcDir, goldenPath string, parallel bool) {
	t.Helper()

	goldenData, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	var golden goldenFile
	require.NoError(t, json.Unmarshal(goldenData, &golden))

	absSrc, err := filepath.Abs(srcDir)
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "golden.db")
	engine, err := New(dbPath, WithParallel(parallel), WithWorkers(2))
	require.NoError(t, err)
	defer engine.Close()

	report, err := engine.IndexDirectory(context.Background(), absSrc)
	require.NoError(t, err)
	require.NotZero(t, report.Files)

	q := engine.Query()
	rel := func(path string) string {
		r, err := filepath.Rel(absSrc, path)
		require.NoError(t, err)
		return filepath.ToSlash(r)
	}

	for _, def := range golden.Definitions {
		n := findNode(t, q, def.Name, def.Kind)
		if !assert.NotNil(t, n, "definition %s %s", def.Kind, def.Name) {
			continue
		}
		assert.True(t, n.Defined, "definition %s", def.Name)
		loc, err := q.NodeLocation(n)
		require.NoError(t, err)
		if assert.NotNil(t, loc, "location of %s", def.Name) {
			assert.Equal(t, def.File, rel(loc.File), "file of %s", def.Name)
			assert.Equal(t, def.Line, loc.StartLine, "line of %s", def.Name)
		}
	}

	for _, want := range golden.Relations {
		src := findNode(t, q, want.From, "")
		if !assert.NotNil(t, src, "source %s", want.From) {
			continue
		}
		rels, err := q.Outgoing(src.ID, want.Kind)
		require.NoError(t, err)
		found := false
		for _, r := range rels {
			if displayName(r.Node) == want.To && r.Edge.Line == want.Line && rel(r.File) == want.File {
				found = true
				break
			}
		}
		assert.True(t, found, "missing relation %s -%s-> %s at %s:%d", want.From, want.Kind, want.To, want.File, want.Line)
	}

	for from, want := range golden.Callees {
		n := findNode(t, q, from, "")
		require.NotNil(t, n, from)
		rels, err := q.Callees(n.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, relationNames(rels), "callees of %s", from)
	}
	for to, want := range golden.Callers {
		n := findNode(t, q, to, "")
		require.NotNil(t, n, to)
		rels, err := q.Callers(n.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, relationNames(rels), "callers of %s", to)
	}
}

// findNode returns the node whose display name is name, preferring
// definitions. An empty kind matches any kind.
func findNode(t *testing.T, q *QueryBuilder, name, kind string) *Node {
	t.Helper()
	nodes, err := q.Symbols(name)
	require.NoError(t, err)
	var found *Node
	for _, n := range nodes {
		if displayName(n) != name || (kind != "" && n.Kind != kind) {
			continue
		}
		if found == nil || (n.Defined && !found.Defined) {
			found = n
		}
	}
	return found
}

func displayName(n *Node) string {
	if n.QualifiedName != "" {
		return n.QualifiedName
	}
	return n.Name
}

func relationNames(rels []Relation) []string {
	names := make([]string, 0, len(rels))
	for _, r := range rels {
		names = append(names, displayName(r.Node))
	}
	return names
}
