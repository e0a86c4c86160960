package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/cxxref"
	"github.com/jward/cxxref/internal/cxx"
	"github.com/jward/cxxref/internal/syntax"
	"github.com/jward/cxxref/internal/tools"
	"github.com/jward/cxxref/internal/visitor"
	"github.com/jward/cxxref/scripts"
)

// parseFileArg reads and parses one C/C++ file without touching the database.
func parseFileArg(ctx context.Context, arg string) (*cxx.Unit, string, error) {
	path, err := resolveFilePath(arg)
	if err != nil {
		return nil, "", err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := loadConfig(findRepoRoot(filepath.Dir(path)))
	if err != nil {
		return nil, "", err
	}
	unit, err := cxx.Parse(ctx, path, src, cxx.WithIncludes(cxx.NewIncludes(nil, cfg.IncludeDirs...)))
	if err != nil {
		return nil, "", err
	}
	if unit.HasErrors {
		logger.Warn("parse.errors", "file", path)
	}
	return unit, path, nil
}

var eventsCmd = &cobra.Command{
	Use:   "events <file>",
	Short: "Print the body events of one file without indexing it",
	Long:  "Parses the file, walks every function body and variable initializer and prints each collector event in the order it is reported.",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

func runEvents(cmd *cobra.Command, args []string) error {
	unit, path, err := parseFileArg(cmd.Context(), args[0])
	if err != nil {
		return outputError("events", err)
	}

	events := []CLIEvent{}
	rec := &visitor.Recorder{}
	for _, body := range unit.Bodies {
		rec.Reset()
		visitor.NewBodyVisitor(rec, body.Context()).Visit(body.Root)
		for _, e := range rec.Events {
			span := e.Node.Span()
			events = append(events, CLIEvent{
				Kind:   e.Kind.String(),
				Owner:  e.Context.Decl().DisplayName(),
				Target: e.Target(),
				File:   path,
				Line:   span.StartLine,
				Col:    span.StartCol,
			})
		}
	}
	total := len(events)
	return outputResult(CLIResult{Command: "events", Results: events, TotalCount: &total})
}

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print the syntax tree of every body in a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	unit, _, err := parseFileArg(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for i, body := range unit.Bodies {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s\n", body.Context())
		syntax.Dump(w, body.Root)
	}
	return nil
}

var (
	flagScriptArgs []string
	flagBuiltin    bool
)

var runCmd = &cobra.Command{
	Use:   "run <script.risor>",
	Short: "Run a Risor script against the database",
	Long:  "Evaluates a Risor script with the parse, query and graph host functions. Values passed to emit() are written to stdout as JSON lines; --arg key=value pairs are available as the args map.",
	Example: `  cxxref run --builtin callees.risor --arg name=main
  cxxref run --builtin fanout.risor
  cxxref run ./reports/unused.risor`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	runCmd.Flags().StringArrayVar(&flagScriptArgs, "arg", nil, "script argument as key=value (repeatable)")
	runCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "directory for relative script paths and imports")
	runCmd.Flags().BoolVar(&flagBuiltin, "builtin", false, "run one of the bundled scripts (callees.risor, fanout.risor)")
}

func runScript(cmd *cobra.Command, args []string) error {
	scriptArgs, err := parseScriptArgs(flagScriptArgs)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return err
	}
	opts := engineOptions(cfg)
	if flagBuiltin {
		opts = append(opts, cxxref.WithScriptsFS(scripts.FS))
	}
	engine, err := cxxref.New(resolveDBPath(repoRoot, cfg), opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	return engine.RunScript(cmd.Context(), args[0], cmd.OutOrStdout(), scriptArgs)
}

// parseScriptArgs turns key=value pairs into the script's args map.
func parseScriptArgs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q: want key=value", p)
		}
		out[key] = value
	}
	return out, nil
}

var mcpCmd = &cobra.Command{
	Use:   "mcp [path]",
	Short: "Serve the graph to MCP clients over stdio",
	Long:  "Starts a Model Context Protocol server on stdin/stdout. The database is located from path (default: current directory) the same way index does.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return err
	}
	engine, err := openEngine(resolveDBPath(repoRoot, cfg), cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("mcp.start", "root", repoRoot, "version", cxxref.Version)
	return tools.NewServer(engine, logger).Run(ctx)
}
