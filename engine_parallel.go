package cxxref

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/cxxref/internal/cxx"
	"github.com/jward/cxxref/internal/graph"
	"github.com/jward/cxxref/internal/store"
	"github.com/jward/cxxref/internal/visitor"
)

// workItem holds everything an indexing worker needs for one file.
type workItem struct {
	path   string
	src    []byte
	fileID int64
	// includes resolves headers for the whole run.
	includes *cxx.Includes

	// batch buffers the file's writes in parallel mode.
	batch *store.BatchedStore
	stats graph.Stats
	err   error
}

func (r *Report) add(item *workItem) {
	r.Files++
	r.Nodes += item.stats.Nodes
	r.Unresolved += item.stats.Unresolved
	for kind, n := range item.stats.Edges {
		r.EdgesByKind[kind] += n
		r.Edges += n
	}
}

// indexParallel runs the three-phase pipeline on prepared items:
//
//	Phase A (serial):   Hash check, delete old data, insert file records (done by the caller).
//	Phase B (parallel): Parse and walk each file into its own BatchedStore.
//	Phase C (serial):   Commit batches to SQLite in input order.
func (e *Engine) indexParallel(ctx context.Context, items []*workItem, report *Report) error {
	// ---- Phase B: Parallel extraction ----
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(e.workers, len(items)))
	for _, item := range items {
		item.batch = store.NewBatchedStore()
		g.Go(func() error {
			item.err = e.extract(gctx, item.batch, item)
			// Only cancellation stops the pool; per-file failures are
			// reported after commit.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// ---- Phase C: Serial commit ----
	var errs []error
	for _, item := range items {
		if item.err != nil {
			errs = append(errs, e.discard(item, item.err))
			report.Failed++
			continue
		}
		if err := e.store.CommitBatch(item.batch); err != nil {
			errs = append(errs, e.discard(item, fmt.Errorf("commit: %w", err)))
			report.Failed++
			continue
		}
		report.add(item)
		item.batch = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// prepareFile does Phase A work for a single file on disk. It returns nil
// when the file is unsupported or unchanged.
func (e *Engine) prepareFile(path string) (*workItem, error) {
	lang, ok := e.supported(path)
	if !ok {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.prepareSource(path, lang, content)
}

// prepareSource does the hash check, cleanup and file record insertion for
// content that will be indexed as path.
func (e *Engine) prepareSource(path, lang string, content []byte) (*workItem, error) {
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash && !e.force {
		e.logger.Debug("index.unchanged", "file", path)
		return nil, nil
	}

	// Clean up old data.
	if existing != nil {
		if err := e.store.DeleteFileData(existing.ID); err != nil {
			return nil, fmt.Errorf("delete old data: %w", err)
		}
	}

	// Insert new file record (real ID assigned by SQLite).
	fileID, err := e.store.InsertFile(&store.File{
		Path:        path,
		Language:    lang,
		Hash:        hash,
		LineCount:   bytes.Count(content, []byte{'\n'}) + 1,
		LastIndexed: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}
	return &workItem{path: path, src: content, fileID: fileID}, nil
}

// extract parses one file and walks every body into ds. Each call parses
// with its own tree-sitter parser so workers never share parser state.
func (e *Engine) extract(ctx context.Context, ds store.DataStore, item *workItem) error {
	unit, err := cxx.Parse(ctx, item.path, item.src, cxx.WithIncludes(item.includes))
	if err != nil {
		return err
	}
	if unit.HasErrors {
		e.logger.Warn("index.parse_errors", "file", item.path)
	}

	c := graph.NewCollector(ds, item.fileID, item.path, e.logger)
	if err := c.DefineDecls(unit.Decls); err != nil {
		return err
	}
	for _, body := range unit.Bodies {
		if err := ctx.Err(); err != nil {
			return err
		}
		visitor.NewBodyVisitor(c, body.Context()).Visit(body.Root)
		if err := c.Err(); err != nil {
			return err
		}
	}
	item.stats = c.Stats()
	item.src = nil
	e.logger.Debug("index.file",
		"file", item.path, "bodies", len(unit.Bodies), "edges", item.stats.Total())
	return nil
}
