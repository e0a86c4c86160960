package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/cxxref"
)

var (
	flagLimit  int
	flagOffset int
	flagKinds  string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the body graph",
	Long:  "Run queries against an indexed source tree. All line and column numbers are 1-based.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")

	outgoingCmd.Flags().StringVar(&flagKinds, "kind", "", "comma-separated relation kinds (e.g. call,construct)")
	incomingCmd.Flags().StringVar(&flagKinds, "kind", "", "comma-separated relation kinds (e.g. call,construct)")
	unreferencedCmd.Flags().StringVar(&flagKinds, "kind", "", "comma-separated node kinds (default: function,method,variable)")

	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(symbolAtCmd)
	queryCmd.AddCommand(outgoingCmd)
	queryCmd.AddCommand(incomingCmd)
	queryCmd.AddCommand(callersCmd)
	queryCmd.AddCommand(calleesCmd)
	queryCmd.AddCommand(referencesCmd)
	queryCmd.AddCommand(transitiveCallersCmd)
	queryCmd.AddCommand(transitiveCalleesCmd)
	queryCmd.AddCommand(hotspotsCmd)
	queryCmd.AddCommand(unreferencedCmd)
	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(summaryCmd)
}

// --- Helpers ---

// openQueryEngine opens the existing database from the --db flag path
// (or config, or default).
func openQueryEngine() (*cxxref.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return nil, err
	}
	dbPath := resolveDBPath(repoRoot, cfg)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'cxxref index' first)", dbPath)
	}
	return cxxref.New(dbPath, cxxref.WithLogger(logger))
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parsePositionArg parses a 1-based line or column argument.
func parsePositionArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, value)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be >= 1", name, value)
	}
	return n, nil
}

// resolveNode resolves the node named by the arguments: --symbol <id>, a
// single name, or <file> <line> <col>. Names prefer the defined match.
func resolveNode(cmd *cobra.Command, args []string, q *cxxref.QueryBuilder) (*cxxref.Node, error) {
	if id, _ := cmd.Flags().GetInt64("symbol"); id != 0 {
		n, err := q.Node(id)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, fmt.Errorf("no node with id %d", id)
		}
		return n, nil
	}

	switch len(args) {
	case 1:
		nodes, err := q.Symbols(args[0])
		if err != nil {
			return nil, err
		}
		var found *cxxref.Node
		for _, n := range nodes {
			if found == nil || (n.Defined && !found.Defined) {
				found = n
			}
		}
		if found == nil {
			return nil, fmt.Errorf("no symbol named %q", args[0])
		}
		return found, nil
	case 3:
		file, err := resolveFilePath(args[0])
		if err != nil {
			return nil, err
		}
		line, err := parsePositionArg(args[1], "line")
		if err != nil {
			return nil, err
		}
		col, err := parsePositionArg(args[2], "col")
		if err != nil {
			return nil, err
		}
		n, err := q.DeclarationAt(file, line, col)
		if err != nil {
			return nil, fmt.Errorf("looking up declaration: %w", err)
		}
		if n == nil {
			return nil, fmt.Errorf("no declaration found at %s:%d:%d", file, line, col)
		}
		return n, nil
	}
	return nil, fmt.Errorf("requires a <name>, <file> <line> <col> arguments or --symbol flag")
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// paginate applies --offset and --limit to a result slice.
func paginate[T any](items []T) []T {
	limit := min(max(flagLimit, 0), 500)
	offset := max(flagOffset, 0)
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

// outputList paginates items and writes them with their total count.
func outputList[T any](command string, items []T) error {
	total := len(items)
	return outputResult(CLIResult{
		Command:    command,
		Results:    paginate(items),
		TotalCount: &total,
	})
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// nodeToCLI converts a node to a CLINode, resolving its definition file.
func nodeToCLI(q *cxxref.QueryBuilder, n *cxxref.Node) CLINode {
	c := CLINode{
		ID:      n.ID,
		USR:     n.USR,
		Name:    displayName(n),
		Kind:    n.Kind,
		Scope:   n.Scope,
		Defined: n.Defined,
	}
	if loc, err := q.NodeLocation(n); err == nil && loc != nil {
		c.File = loc.File
		c.StartLine = loc.StartLine
		c.StartCol = loc.StartCol
		c.EndLine = loc.EndLine
		c.EndCol = loc.EndCol
	}
	return c
}

func displayName(n *cxxref.Node) string {
	if n.QualifiedName != "" {
		return n.QualifiedName
	}
	return n.Name
}

// relationsToCLI converts relations seen from node self. outgoing tells
// whether self is the source or the target of each edge.
func relationsToCLI(self *cxxref.Node, rels []cxxref.Relation, outgoing bool) []CLIRelation {
	out := make([]CLIRelation, 0, len(rels))
	for _, r := range rels {
		c := CLIRelation{
			Kind:     r.Edge.Kind,
			SourceID: r.Edge.SourceID,
			TargetID: r.Edge.TargetID,
			File:     r.File,
			Line:     r.Edge.Line,
			Col:      r.Edge.Col,
		}
		if outgoing {
			c.Source, c.Target = displayName(self), displayName(r.Node)
		} else {
			c.Source, c.Target = displayName(r.Node), displayName(self)
		}
		out = append(out, c)
	}
	return out
}

// --- Discovery Commands ---

var symbolsCmd = &cobra.Command{
	Use:   "symbols <name>",
	Short: "Find nodes by simple or qualified name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func runSymbols(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError("symbols", err)
	}
	defer e.Close()

	q := e.Query()
	nodes, err := q.Symbols(args[0])
	if err != nil {
		return outputError("symbols", err)
	}
	results := make([]CLINode, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, nodeToCLI(q, n))
	}
	return outputList("symbols", results)
}

var symbolAtCmd = &cobra.Command{
	Use:   "symbol-at <file> <line> <col>",
	Short: "Find the innermost declaration at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runSymbolAt,
}

func runSymbolAt(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError("symbol-at", err)
	}
	defer e.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("symbol-at", err)
	}
	line, err := parsePositionArg(args[1], "line")
	if err != nil {
		return outputError("symbol-at", err)
	}
	col, err := parsePositionArg(args[2], "col")
	if err != nil {
		return outputError("symbol-at", err)
	}

	q := e.Query()
	n, err := q.DeclarationAt(file, line, col)
	if err != nil {
		return outputError("symbol-at", err)
	}
	if n == nil {
		return outputResult(CLIResult{Command: "symbol-at", Results: nil})
	}
	one := 1
	return outputResult(CLIResult{
		Command:    "symbol-at",
		Results:    nodeToCLI(q, n),
		TotalCount: &one,
	})
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List indexed files",
	Args:  cobra.NoArgs,
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError("files", err)
	}
	defer e.Close()

	files, err := e.Query().Files()
	if err != nil {
		return outputError("files", err)
	}
	results := make([]CLIFile, 0, len(files))
	for _, f := range files {
		results = append(results, CLIFile{ID: f.ID, Path: f.Path, Language: f.Language, LineCount: f.LineCount})
	}
	return outputList("files", results)
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count indexed files, nodes and edges",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError("summary", err)
	}
	defer e.Close()

	sum, err := e.Query().Summary()
	if err != nil {
		return outputError("summary", err)
	}
	return outputResult(CLIResult{
		Command: "summary",
		Results: CLISummary{
			Files:       sum.Files,
			Nodes:       sum.Nodes,
			Edges:       sum.Edges,
			NodesByKind: sum.NodesByKind,
			EdgesByKind: sum.EdgesByKind,
		},
	})
}

// --- Relation Commands ---

// relationCommand builds a command that lists the relations of one node.
func relationCommand(use, short string, list func(q *cxxref.QueryBuilder, id int64) ([]cxxref.Relation, error), outgoing bool) *cobra.Command {
	name := strings.Fields(use)[0]
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  "Accepts a <name>, <file> <line> <col> positional args or --symbol <id>.",
		Args:  cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openQueryEngine()
			if err != nil {
				return outputError(name, err)
			}
			defer e.Close()

			q := e.Query()
			n, err := resolveNode(cmd, args, q)
			if err != nil {
				return outputError(name, err)
			}
			rels, err := list(q, n.ID)
			if err != nil {
				return outputError(name, err)
			}
			return outputList(name, relationsToCLI(n, rels, outgoing))
		},
	}
	cmd.Flags().Int64("symbol", 0, "node ID to query")
	return cmd
}

var outgoingCmd = relationCommand("outgoing [<name> | <file> <line> <col>]",
	"List the relations recorded in a body",
	func(q *cxxref.QueryBuilder, id int64) ([]cxxref.Relation, error) {
		return q.Outgoing(id, splitList(flagKinds)...)
	}, true)

var incomingCmd = relationCommand("incoming [<name> | <file> <line> <col>]",
	"List the relations that target a declaration",
	func(q *cxxref.QueryBuilder, id int64) ([]cxxref.Relation, error) {
		return q.Incoming(id, splitList(flagKinds)...)
	}, false)

var callersCmd = relationCommand("callers [<name> | <file> <line> <col>]",
	"Find the bodies that call a function",
	(*cxxref.QueryBuilder).Callers, false)

var calleesCmd = relationCommand("callees [<name> | <file> <line> <col>]",
	"Find the functions called from a body",
	(*cxxref.QueryBuilder).Callees, true)

var referencesCmd = &cobra.Command{
	Use:   "references [<name> | <file> <line> <col>]",
	Short: "Find every recorded occurrence of a declaration",
	Long:  "Accepts a <name>, <file> <line> <col> positional args or --symbol <id>.",
	Args:  cobra.MaximumNArgs(3),
	RunE:  runReferences,
}

func init() {
	referencesCmd.Flags().Int64("symbol", 0, "node ID to query")
}

func runReferences(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError("references", err)
	}
	defer e.Close()

	q := e.Query()
	n, err := resolveNode(cmd, args, q)
	if err != nil {
		return outputError("references", err)
	}
	locs, err := q.ReferencesTo(n.ID)
	if err != nil {
		return outputError("references", err)
	}
	results := make([]CLILocation, 0, len(locs))
	for _, loc := range locs {
		results = append(results, CLILocation{
			File:      loc.File,
			StartLine: loc.StartLine,
			StartCol:  loc.StartCol,
			EndLine:   loc.EndLine,
			EndCol:    loc.EndCol,
			SymbolID:  n.ID,
		})
	}
	return outputList("references", results)
}

// --- Graph Commands ---

var (
	flagDepth int
	flagTop   int
)

func transitiveCommand(use, short string, callers bool) *cobra.Command {
	name := strings.Fields(use)[0]
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openQueryEngine()
			if err != nil {
				return outputError(name, err)
			}
			defer e.Close()

			q := e.Query()
			n, err := resolveNode(cmd, args, q)
			if err != nil {
				return outputError(name, err)
			}
			var g *cxxref.CallGraph
			if callers {
				g, err = q.TransitiveCallers(n.ID, flagDepth)
			} else {
				g, err = q.TransitiveCallees(n.ID, flagDepth)
			}
			if err != nil {
				return outputError(name, err)
			}
			return outputResult(CLIResult{Command: name, Results: callGraphToCLI(q, g)})
		},
	}
	cmd.Flags().Int64("symbol", 0, "node ID to query")
	cmd.Flags().IntVar(&flagDepth, "depth", 5, "maximum traversal depth (max 100)")
	return cmd
}

var transitiveCallersCmd = transitiveCommand("transitive-callers [<name> | <file> <line> <col>]",
	"Breadth-first transitive callers of a function", true)

var transitiveCalleesCmd = transitiveCommand("transitive-callees [<name> | <file> <line> <col>]",
	"Breadth-first transitive callees of a function", false)

func callGraphToCLI(q *cxxref.QueryBuilder, g *cxxref.CallGraph) CLICallGraph {
	out := CLICallGraph{
		Root:     g.Root,
		Nodes:    make([]CLICallGraphNode, 0, len(g.Nodes)),
		Edges:    make([]CLICallGraphEdge, 0, len(g.Edges)),
		MaxDepth: g.Depth,
	}
	for _, n := range g.Nodes {
		out.Nodes = append(out.Nodes, CLICallGraphNode{Node: nodeToCLI(q, n.Node), Depth: n.Depth})
	}
	for _, e := range g.Edges {
		out.Edges = append(out.Edges, CLICallGraphEdge{
			CallerID: e.CallerID,
			CalleeID: e.CalleeID,
			File:     e.File,
			Line:     e.Line,
			Col:      e.Col,
		})
	}
	return out
}

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "List the most referenced declarations",
	Args:  cobra.NoArgs,
	RunE:  runHotspots,
}

func init() {
	hotspotsCmd.Flags().IntVar(&flagTop, "top", 10, "number of results")
}

func runHotspots(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError("hotspots", err)
	}
	defer e.Close()

	q := e.Query()
	hot, err := q.Hotspots(flagTop)
	if err != nil {
		return outputError("hotspots", err)
	}
	results := make([]CLIHotspot, 0, len(hot))
	for _, h := range hot {
		results = append(results, CLIHotspot{
			Node:     nodeToCLI(q, h.Node),
			Incoming: h.Incoming,
			Callers:  h.Callers,
			Outgoing: h.Outgoing,
		})
	}
	return outputList("hotspots", results)
}

var unreferencedCmd = &cobra.Command{
	Use:   "unreferenced",
	Short: "List defined declarations no indexed body refers to",
	Args:  cobra.NoArgs,
	RunE:  runUnreferenced,
}

func runUnreferenced(cmd *cobra.Command, args []string) error {
	e, err := openQueryEngine()
	if err != nil {
		return outputError("unreferenced", err)
	}
	defer e.Close()

	q := e.Query()
	nodes, err := q.Unreferenced(splitList(flagKinds)...)
	if err != nil {
		return outputError("unreferenced", err)
	}
	results := make([]CLINode, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, nodeToCLI(q, n))
	}
	return outputList("unreferenced", results)
}
