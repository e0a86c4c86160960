package cxxref

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jward/cxxref/internal/config"
	"github.com/jward/cxxref/internal/cxx"
	scriptrt "github.com/jward/cxxref/internal/runtime"
	"github.com/jward/cxxref/internal/store"
)

// Engine orchestrates the cxxref pipeline: file discovery, change detection,
// parsing, body walking, edge collection and query access.
type Engine struct {
	store   *store.Store
	runtime *scriptrt.Runtime
	logger  *slog.Logger

	useParallel bool
	workers     int
	force       bool
	skipDirs    map[string]bool
	extensions  map[string]bool // nil means every C++ extension
	includeDirs []string
	scriptsDir  string
	scriptsFS   fs.FS
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel controls parallel indexing. When true (default), files are
// parsed and walked by a bounded worker pool and their edges are committed
// serially in input order. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers bounds the parallel worker pool. Zero or negative means one
// worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithForce reindexes files even when their content hash is unchanged.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithExcludeDirs replaces the directory names skipped by IndexDirectory.
// The default is config.DefaultExclude.
func WithExcludeDirs(dirs ...string) Option {
	return func(e *Engine) {
		e.skipDirs = make(map[string]bool, len(dirs))
		for _, d := range dirs {
			e.skipDirs[d] = true
		}
	}
}

// WithExtensions restricts indexing to the given C++ file extensions
// (".cpp", ".h", ...). Extensions the frontend does not know are ignored.
func WithExtensions(exts ...string) Option {
	return func(e *Engine) {
		if len(exts) == 0 {
			e.extensions = nil
			return
		}
		e.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			e.extensions[strings.ToLower(ext)] = true
		}
	}
}

// WithIncludeDirs adds directories searched for quoted #include headers
// after the including file's own directory. Declarations found in included
// headers resolve references in the including file.
func WithIncludeDirs(dirs ...string) Option {
	return func(e *Engine) {
		e.includeDirs = append(e.includeDirs, dirs...)
	}
}

// WithScriptsDir sets the directory Risor graph scripts import modules from.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS loads scripts and their imports from fsys instead of disk,
// e.g. the bundled scripts.FS.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cxxref: create db dir: %w", err)
		}
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("cxxref: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("cxxref: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		logger:      slog.Default(),
		useParallel: true,
	}
	WithExcludeDirs(config.DefaultExclude...)(e)
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.NumCPU()
	}
	rtOpts := []scriptrt.RuntimeOption{scriptrt.WithLogger(e.logger)}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, scriptrt.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = scriptrt.NewRuntime(s, e.scriptsDir, rtOpts...)
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// FormatChanged reports whether the database was written by an engine with a
// different index format. It returns false for an empty database. When true,
// the caller should delete the database and reindex from scratch.
func (e *Engine) FormatChanged() (bool, error) {
	stored, err := e.store.GetMetadata("index_format")
	if err != nil {
		return false, err
	}
	if stored == "" {
		files, err := e.store.Files()
		if err != nil {
			return false, err
		}
		return len(files) > 0, nil
	}
	return stored != indexFormat, nil
}

// RunScript executes a Risor graph script loaded from the scripts FS or
// directory. Values the script
// passes to emit() are written to out as JSON lines.
func (e *Engine) RunScript(ctx context.Context, path string, out io.Writer, args map[string]any) error {
	return e.runtime.RunScript(ctx, path, scriptGlobals(out, args))
}

// RunSource executes inline Risor source like RunScript.
func (e *Engine) RunSource(ctx context.Context, src string, out io.Writer, args map[string]any) error {
	return e.runtime.RunSource(ctx, src, scriptGlobals(out, args))
}

func scriptGlobals(out io.Writer, args map[string]any) map[string]any {
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{
		"emit": scriptrt.MakeEmitFn(out),
		"args": args,
	}
}

// Report summarizes one indexing run.
type Report struct {
	Files      int // files parsed and committed
	Skipped    int // unchanged or unsupported files
	Failed     int
	Nodes      int
	Edges      int
	Unresolved int
	// EdgesByKind counts committed edges per relation kind.
	EdgesByKind map[string]int
	Duration    time.Duration
}

func newReport() *Report {
	return &Report{EdgesByKind: make(map[string]int)}
}

// supported returns the language of path when the engine indexes it.
func (e *Engine) supported(path string) (string, bool) {
	lang, ok := cxx.LanguageForFile(path)
	if !ok {
		return "", false
	}
	if e.extensions != nil && !e.extensions[strings.ToLower(filepath.Ext(path))] {
		return "", false
	}
	return lang, true
}

// IndexFiles indexes the given file paths. When WithParallel is enabled,
// uses a worker pool for concurrent parsing with batched SQLite writes.
// Otherwise every file is written straight to the store.
//
// For each file:
// 1. Detect language from extension, skip unsupported files
// 2. Skip unchanged files (same content hash) unless forced
// 3. Delete stale data, insert the file record
// 4. Parse, walk every body and collect its edges
//
// Errors on individual files are logged and collected; processing continues.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	report := newReport()

	var items []*workItem
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		item, err := e.prepareFile(path)
		if err != nil {
			return report, fmt.Errorf("prepare %s: %w", path, err)
		}
		if item == nil {
			report.Skipped++
			continue
		}
		items = append(items, item)
	}
	includes := e.newIncludes()
	for _, item := range items {
		item.includes = includes
	}

	var err error
	if e.useParallel && len(items) > 1 {
		err = e.indexParallel(ctx, items, report)
	} else {
		err = e.indexSerial(ctx, items, report)
	}
	report.Duration = time.Since(start)
	if serr := e.store.SetMetadata("index_format", indexFormat); serr != nil && err == nil {
		err = serr
	}
	e.logger.Info("index.done",
		"files", report.Files, "skipped", report.Skipped, "failed", report.Failed,
		"edges", report.Edges, "unresolved", report.Unresolved, "elapsed", report.Duration)
	return report, err
}

// IndexSource indexes in-memory content as if it were the file at path.
func (e *Engine) IndexSource(ctx context.Context, path string, src []byte) (*Report, error) {
	start := time.Now()
	report := newReport()
	lang, ok := e.supported(path)
	if !ok {
		return report, fmt.Errorf("%w: %s", cxx.ErrUnsupportedFile, path)
	}
	item, err := e.prepareSource(path, lang, src)
	if err != nil {
		return report, fmt.Errorf("prepare %s: %w", path, err)
	}
	if item == nil {
		report.Skipped++
	} else {
		item.includes = e.newIncludes()
		err = e.indexSerial(ctx, []*workItem{item}, report)
	}
	report.Duration = time.Since(start)
	if serr := e.store.SetMetadata("index_format", indexFormat); serr != nil && err == nil {
		err = serr
	}
	return report, err
}

// newIncludes returns the header cache shared by the files of one indexing
// run. Headers are re-read on every run.
func (e *Engine) newIncludes() *cxx.Includes {
	return cxx.NewIncludes(nil, e.includeDirs...)
}

func (e *Engine) indexSerial(ctx context.Context, items []*workItem, report *Report) error {
	var errs []error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.extract(ctx, e.store, item); err != nil {
			errs = append(errs, e.discard(item, err))
			report.Failed++
			continue
		}
		report.add(item)
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// discard drops the partial data of a failed file so the next run retries it.
func (e *Engine) discard(item *workItem, err error) error {
	e.logger.Warn("index.file_failed", "file", item.path, "err", err)
	if derr := e.store.DeleteFileData(item.fileID); derr != nil {
		e.logger.Error("index.cleanup_failed", "file", item.path, "err", derr)
	}
	return fmt.Errorf("index %s: %w", item.path, err)
}

// skipDir returns true for directories that should be excluded from indexing.
func (e *Engine) skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || e.skipDirs[name]
}

// IndexDirectory walks root and indexes all files with supported extensions.
// If root is inside a git repository, uses git ls-files to respect .gitignore.
// Falls back to a filesystem walk if git is unavailable.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (*Report, error) {
	paths, err := e.gitListFiles(ctx, root)
	if err != nil {
		e.logger.Debug("index.git_unavailable", "root", root, "err", err)
		paths, err = e.walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}
	return e.IndexFiles(ctx, paths)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to supported extensions.
func (e *Engine) gitListFiles(ctx context.Context, root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || e.excludedPath(line) {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := e.supported(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// excludedPath reports whether any directory of a slash-separated relative
// path is skipped.
func (e *Engine) excludedPath(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if e.skipDir(dir) {
			return true
		}
	}
	return false
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && e.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := e.supported(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// RemoveFile drops everything indexed from path. Removing a file that was
// never indexed is not an error.
func (e *Engine) RemoveFile(path string) error {
	f, err := e.store.FileByPath(path)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if f == nil {
		return nil
	}
	if err := e.store.DeleteFileData(f.ID); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
