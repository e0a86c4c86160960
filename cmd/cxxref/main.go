package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/cxxref"
	"github.com/jward/cxxref/internal/config"
)

var (
	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// logger is configured by the root command before any subcommand runs.
var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cxxref",
	Short:         "Cross-reference graph of C/C++ function and initializer bodies",
	Long:          "cxxref parses C/C++ sources with tree-sitter, walks every function and variable-initializer body and records calls, constructions, allocations, field accesses, global and enum references and local declarations in a SQLite graph.",
	SilenceErrors: true,
	SilenceUsage:  true,
	Version:       cxxref.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		return setupLogger(flagLogLevel)
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .cxxref/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .cxxref.yaml at repo root)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mcpCmd)
}

// setupLogger installs a stderr text handler at the level named by the flag,
// or by the project config when the flag is empty.
func setupLogger(level string) error {
	if level == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting cwd: %w", err)
		}
		cfg, err := loadConfig(findRepoRoot(cwd))
		if err != nil {
			return err
		}
		level = cfg.LogLevel
	}
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	return nil
}

var (
	flagForce      bool
	flagWorkers    int
	flagSerial     bool
	flagExclude    string
	flagScriptsDir string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a C/C++ source tree",
	Long:  "Parses source files with tree-sitter, walks every body and writes the resulting relations to the SQLite database. Unchanged files are skipped by content hash.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel extraction workers (default: config or NumCPU)")
	indexCmd.Flags().BoolVar(&flagSerial, "serial", false, "disable parallel extraction")
	indexCmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated directory names to skip (added to config)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(repoRoot, cfg)

	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	engine, err := openEngine(dbPath, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	report, err := engine.IndexDirectory(context.Background(), targetDir)
	if report == nil {
		return fmt.Errorf("indexing: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s (files: %d, skipped: %d, failed: %d, edges: %d, unresolved: %d)\n",
		targetDir,
		time.Since(start).Round(time.Millisecond),
		report.Files, report.Skipped, report.Failed, report.Edges, report.Unresolved,
	)
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	return nil
}

// openEngine opens the database at dbPath. A database written by a
// different index format is removed and rebuilt from scratch.
func openEngine(dbPath string, cfg config.Config) (*cxxref.Engine, error) {
	engine, err := cxxref.New(dbPath, engineOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	changed, err := engine.FormatChanged()
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("checking index format: %w", err)
	}
	if !changed {
		return engine, nil
	}
	engine.Close()
	if err := os.Remove(dbPath); err != nil {
		return nil, fmt.Errorf("removing stale database: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Index format changed, rebuilding: %s\n", dbPath)
	engine, err = cxxref.New(dbPath, engineOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

// engineOptions merges the project config with command-line flags.
func engineOptions(cfg config.Config) []cxxref.Option {
	opts := []cxxref.Option{
		cxxref.WithLogger(logger),
		cxxref.WithParallel(cfg.Parallel && !flagSerial),
	}
	workers := cfg.Workers
	if flagWorkers > 0 {
		workers = flagWorkers
	}
	if workers > 0 {
		opts = append(opts, cxxref.WithWorkers(workers))
	}
	exclude := append([]string{}, cfg.Exclude...)
	for _, dir := range strings.Split(flagExclude, ",") {
		if dir = strings.TrimSpace(dir); dir != "" {
			exclude = append(exclude, dir)
		}
	}
	if len(exclude) > 0 {
		opts = append(opts, cxxref.WithExcludeDirs(exclude...))
	}
	if len(cfg.Extensions) > 0 {
		opts = append(opts, cxxref.WithExtensions(cfg.Extensions...))
	}
	if len(cfg.IncludeDirs) > 0 {
		opts = append(opts, cxxref.WithIncludeDirs(cfg.IncludeDirs...))
	}
	if flagScriptsDir != "" {
		opts = append(opts, cxxref.WithScriptsDir(flagScriptsDir))
	}
	return opts
}

// loadConfig reads the --config file, or .cxxref.yaml under repoRoot.
func loadConfig(repoRoot string) (config.Config, error) {
	path := flagConfig
	if path == "" {
		path = filepath.Join(repoRoot, config.FileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	for i, dir := range cfg.IncludeDirs {
		if !filepath.IsAbs(dir) {
			cfg.IncludeDirs[i] = filepath.Join(repoRoot, dir)
		}
	}
	return cfg, nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag, the config,
// or the default, relative to repoRoot unless absolute.
func resolveDBPath(repoRoot string, cfg config.Config) string {
	path := cfg.DB
	if flagDB != "" {
		path = flagDB
	}
	if path == "" {
		path = config.Default().DB
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repoRoot, path)
}
