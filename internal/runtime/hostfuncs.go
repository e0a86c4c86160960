package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/cxxref/internal/cxx"
	"github.com/jward/cxxref/internal/visitor"
)

// sourceStore tracks source bytes for each parsed tree. node_text and query
// need to recover the source from a Node, but smacker/go-tree-sitter doesn't
// expose Node.Tree(). We store mappings keyed by root node pointer (obtained
// via tree.RootNode() at parse time and by walking up Parent() at lookup
// time).
type sourceStore struct {
	mu      sync.RWMutex
	sources map[uintptr][]byte // root node ptr → source bytes
}

func newSourceStore() *sourceStore {
	return &sourceStore{sources: make(map[uintptr][]byte)}
}

func (s *sourceStore) store(tree *sitter.Tree, src []byte) {
	key := uintptr(unsafe.Pointer(tree.RootNode()))
	s.mu.Lock()
	s.sources[key] = src
	s.mu.Unlock()
}

// rootOf walks a node up to its root via Parent().
func rootOf(node *sitter.Node) *sitter.Node {
	for node.Parent() != nil {
		node = node.Parent()
	}
	return node
}

func (s *sourceStore) sourceForNode(node *sitter.Node) ([]byte, bool) {
	key := uintptr(unsafe.Pointer(rootOf(node)))
	s.mu.RLock()
	src, ok := s.sources[key]
	s.mu.RUnlock()
	return src, ok
}

// makeParseFn creates the "parse" host function.
//
// parse(path) → *sitter.Tree
func makeParseFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse: path: %v", err)
		}
		if _, ok := cxx.LanguageForFile(path); !ok {
			return object.Errorf("parse: unsupported file %s", path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: reading %s: %v", path, err)
		}
		return parseSource(ctx, ss, src)
	})
}

// makeParseSrcFn creates "parse_src", which accepts C++ source directly.
//
// parse_src(source) → *sitter.Tree
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_src", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse_src: source: %v", err)
		}
		return parseSource(ctx, ss, []byte(src))
	})
}

// parseSource is the shared implementation for parse and parse_src.
func parseSource(ctx context.Context, ss *sourceStore, src []byte) object.Object {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(cxx.Grammar())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return object.Errorf("parse: tree-sitter parse failed: %v", err)
	}
	ss.store(tree, src)

	proxy, err := object.NewProxy(tree)
	if err != nil {
		return object.Errorf("parse: proxy error: %v", err)
	}
	return proxy
}

func nodeArg(name string, arg object.Object) (*sitter.Node, *object.Error) {
	proxy, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", name, arg.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", name, proxy.Interface())
	}
	return node, nil
}

// makeNodeTextFn creates the "node_text" host function.
//
// node_text(node) → string
//
// Exists because Risor's proxy system cannot convert strings to []byte
// for node.Content([]byte).
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		src, found := ss.sourceForNode(node)
		if !found {
			return object.Errorf("node_text: no source found for node's tree")
		}
		return object.NewString(node.Content(src))
	})
}

// makeQueryFn creates the "query" host function.
//
// query(pattern, node) → []map[string]Node
//
// Each map has capture names as keys and proxied Nodes as values.
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern: %v", err)
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		src, found := ss.sourceForNode(node)
		if !found {
			return object.Errorf("query: no source found for node's tree")
		}

		q, err := sitter.NewQuery([]byte(pattern), cxx.Grammar())
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, src)

			matchMap := make(map[string]object.Object)
			for _, capture := range match.Captures {
				name := q.CaptureNameForId(capture.Index)
				nodeP, err := object.NewProxy(capture.Node)
				if err != nil {
					return object.Errorf("query: proxy error for capture %q: %v", name, err)
				}
				matchMap[name] = nodeP
			}
			results = append(results, object.NewMap(matchMap))
		}
		return object.NewList(results)
	})
}

// makeNodeChildFn creates "node_child", a safe wrapper for ChildByFieldName
// that returns Risor nil instead of a proxied Go nil pointer.
//
// node_child(node, fieldName) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, err := toString(args[1])
		if err != nil {
			return object.Errorf("node_child: field: %v", err)
		}

		child := node.ChildByFieldName(field)
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: proxy error: %v", err)
		}
		return p
	})
}

// makeBodyEventsFn creates "body_events", which runs the indexing frontend
// and body visitor over C++ source without touching the store.
//
// body_events(source) → []map
//
// Each map has kind, owner, target, line and col keys.
func makeBodyEventsFn() *object.Builtin {
	return object.NewBuiltin("body_events", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("body_events", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("body_events: source: %v", err)
		}
		unit, err := cxx.Parse(ctx, "script.cpp", []byte(src))
		if err != nil {
			return object.Errorf("body_events: %v", err)
		}

		results := []object.Object{}
		for _, body := range unit.Bodies {
			rec := &visitor.Recorder{}
			visitor.NewBodyVisitor(rec, body.Context()).Visit(body.Root)
			for _, e := range rec.Events {
				span := e.Node.Span()
				results = append(results, object.NewMap(map[string]object.Object{
					"kind":   object.NewString(e.Kind.String()),
					"owner":  object.NewString(e.Context.Decl().DisplayName()),
					"target": object.NewString(e.Target()),
					"line":   object.NewInt(int64(span.StartLine)),
					"col":    object.NewInt(int64(span.StartCol)),
				}))
			}
		}
		return object.NewList(results)
	})
}

// MakeEmitFn creates the "emit" host function. Each call writes its argument
// to w as one line of JSON.
//
// emit(value) → nil
func MakeEmitFn(w io.Writer) *object.Builtin {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("emit", 1, len(args))
		}
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(args[0].Interface()); err != nil {
			return object.Errorf("emit: %v", err)
		}
		return object.Nil
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info("script.log", "msg", msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn("script.log", "msg", msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error("script.log", "msg", msg)
}
