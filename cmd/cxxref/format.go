package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/jward/cxxref/internal/store"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatNodesText formats CLINode results as aligned columns.
func formatNodesText(w io.Writer, nodes []CLINode) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tSCOPE\tFILE\tLINE")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			n.ID, n.Name, n.Kind, n.Scope, n.File, n.StartLine)
	}
	tw.Flush()
}

// formatRelationsText formats CLIRelation results as aligned columns.
func formatRelationsText(w io.Writer, rels []CLIRelation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tSOURCE\tTARGET\tFILE\tLINE\tCOL")
	for _, r := range rels {
		source := fmt.Sprintf("%s (#%d)", r.Source, r.SourceID)
		target := fmt.Sprintf("%s (#%d)", r.Target, r.TargetID)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			r.Kind, source, target, r.File, r.Line, r.Col)
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tLANGUAGE\tLINES")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", f.ID, f.Path, f.Language, f.LineCount)
	}
	tw.Flush()
}

// formatSummaryText formats CLISummary as readable text. Edge kinds are
// listed in their canonical order, node kinds alphabetically.
func formatSummaryText(w io.Writer, sum CLISummary) {
	fmt.Fprintln(w, "Graph Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Files: %d\n", sum.Files)
	fmt.Fprintf(w, "Nodes: %d\n", sum.Nodes)
	fmt.Fprintf(w, "Edges: %d\n", sum.Edges)

	if len(sum.NodesByKind) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Node Kinds:")
		kinds := make([]string, 0, len(sum.NodesByKind))
		for kind := range sum.NodesByKind {
			kinds = append(kinds, kind)
		}
		slices.Sort(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", kind, sum.NodesByKind[kind])
		}
	}

	if len(sum.EdgesByKind) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Relation Kinds:")
		for _, kind := range store.EdgeKinds {
			if n, ok := sum.EdgesByKind[kind]; ok {
				fmt.Fprintf(w, "  %s: %d\n", kind, n)
			}
		}
	}
}

// formatCallGraphText prints one indented line per reached node.
func formatCallGraphText(w io.Writer, g CLICallGraph) {
	for _, n := range g.Nodes {
		fmt.Fprintf(w, "%s%s (#%d)", strings.Repeat("  ", n.Depth), n.Node.Name, n.Node.ID)
		if n.Node.File != "" {
			fmt.Fprintf(w, "  %s:%d", n.Node.File, n.Node.StartLine)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\n%d nodes, %d edges, depth %d\n", len(g.Nodes), len(g.Edges), g.MaxDepth)
}

// formatHotspotsText formats CLIHotspot results as aligned columns.
func formatHotspotsText(w io.Writer, hot []CLIHotspot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tINCOMING\tCALLERS\tOUTGOING")
	for _, h := range hot {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\n",
			h.Node.ID, h.Node.Name, h.Node.Kind, h.Incoming, h.Callers, h.Outgoing)
	}
	tw.Flush()
}

// formatEventsText formats CLIEvent results as aligned columns.
func formatEventsText(w io.Writer, events []CLIEvent) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POSITION\tEVENT\tOWNER\tTARGET")
	for _, e := range events {
		fmt.Fprintf(tw, "%s:%d:%d\t%s\t%s\t%s\n", e.File, e.Line, e.Col, e.Kind, e.Owner, e.Target)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLINode:
		formatNodesText(w, v)
	case CLINode:
		formatNodesText(w, []CLINode{v})
	case []CLIRelation:
		formatRelationsText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case CLICallGraph:
		formatCallGraphText(w, v)
	case []CLIHotspot:
		formatHotspotsText(w, v)
	case []CLIEvent:
		formatEventsText(w, v)
	case nil:
		// No output for nil results (e.g., symbol-at with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}

	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLILocation:
		return len(r)
	case []CLINode:
		return len(r)
	case []CLIRelation:
		return len(r)
	case []CLIFile:
		return len(r)
	case []CLIHotspot:
		return len(r)
	case []CLIEvent:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	if slices.Contains(validFormats, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
