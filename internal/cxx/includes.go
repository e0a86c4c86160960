package cxx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// ReadFunc loads the content of a source file.
type ReadFunc func(path string) ([]byte, error)

// Includes resolves quoted #include directives and caches the file-scope
// declarations of every header it loads, so that names declared in a header
// resolve in the files including it. An Includes is safe for concurrent use
// and should live no longer than one indexing run, since headers are never
// re-read.
type Includes struct {
	read ReadFunc
	dirs []string

	mu      sync.Mutex
	headers map[string]*registry // nil value: missing or in progress
}

// NewIncludes returns an include resolver reading files with read (nil means
// os.ReadFile). Headers are looked up next to the including file first, then
// in dirs in order.
func NewIncludes(read ReadFunc, dirs ...string) *Includes {
	if read == nil {
		read = os.ReadFile
	}
	return &Includes{
		read:    read,
		dirs:    dirs,
		headers: make(map[string]*registry),
	}
}

// ParseOption configures Parse.
type ParseOption func(*parseOptions)

type parseOptions struct {
	includes *Includes
}

// WithIncludes makes Parse resolve names against the headers the file
// includes.
func WithIncludes(inc *Includes) ParseOption {
	return func(o *parseOptions) {
		o.includes = inc
	}
}

// includePaths returns the quoted include targets of a translation unit in
// source order. System includes (<...>) are not followed.
func includePaths(root *sitter.Node, src []byte) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "preproc_include":
			if p := n.ChildByFieldName("path"); p != nil && p.Type() == "string_literal" {
				if name := strings.Trim(p.Content(src), `"`); name != "" {
					out = append(out, name)
				}
			}
			return
		case "function_definition", "compound_statement":
			return
		}
		for _, c := range namedChildren(n) {
			walk(c)
		}
	}
	walk(root)
	return out
}

// registries loads the headers included by the file at path, whose syntax
// tree is root, and returns their declaration registries.
func (inc *Includes) registries(ctx context.Context, path string, root *sitter.Node, src []byte) []*registry {
	names := includePaths(root, src)
	if len(names) == 0 {
		return nil
	}
	inc.mu.Lock()
	defer inc.mu.Unlock()

	var out []*registry
	for _, name := range names {
		if reg := inc.loadLocked(ctx, filepath.Dir(path), name); reg != nil {
			out = append(out, reg)
		}
	}
	return out
}

// loadLocked resolves and collects one header. Headers that cannot be found
// and include cycles yield nil.
func (inc *Includes) loadLocked(ctx context.Context, dir, name string) *registry {
	candidates := []string{filepath.Join(dir, name)}
	for _, d := range inc.dirs {
		candidates = append(candidates, filepath.Join(d, name))
	}
	for _, path := range candidates {
		path = filepath.Clean(path)
		if reg, seen := inc.headers[path]; seen {
			if reg != nil {
				return reg
			}
			continue
		}
		src, err := inc.read(path)
		if err != nil {
			continue
		}
		// Mark the header in progress so that include cycles terminate.
		inc.headers[path] = nil
		reg := inc.collectHeader(ctx, path, src)
		inc.headers[path] = reg
		return reg
	}
	return nil
}

func (inc *Includes) collectHeader(ctx context.Context, path string, src []byte) *registry {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Grammar())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil
	}
	defer tree.Close()
	root := tree.RootNode()

	f := &file{
		path:   path,
		src:    src,
		source: string(src),
		reg:    newRegistry(),
	}
	var imports []*registry
	for _, name := range includePaths(root, src) {
		if reg := inc.loadLocked(ctx, filepath.Dir(path), name); reg != nil {
			imports = append(imports, reg)
		}
	}
	f.reg.setImports(imports)
	f.collectTypes(root, "")
	f.collectDecls(root, "", "")
	return f.reg
}
