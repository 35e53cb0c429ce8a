package flow

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderText produces a human-readable summary of the graph.
func RenderText(name string, g *Graph) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Graph: %s  (%d nodes, %d edges)\n", name, len(g.nodes), len(g.edges))

	maxIDLen := 4
	for _, n := range g.nodes {
		if len(n.ID) > maxIDLen {
			maxIDLen = len(n.ID)
		}
	}

	fmt.Fprintf(&sb, "\nNodes:\n")
	for _, n := range g.nodes {
		tool := "-"
		if n.HasImage {
			tool = n.AssignedTool
		}
		fmt.Fprintf(&sb, "  %-*s  %-24s  %-16s  (%g,%g)\n",
			maxIDLen, n.ID, string(n.Stage), tool, n.Position.X, n.Position.Y)
	}

	fmt.Fprintf(&sb, "\nEdges:\n")
	for _, e := range g.edges {
		fmt.Fprintf(&sb, "  %-*s  →  %s\n", maxIDLen, e.Source, e.Target)
	}
	return sb.String()
}

// dotQuote returns the value as a DOT-safe string, quoting if necessary.
func dotQuote(s string) string {
	needsQuote := s == "" ||
		strings.ContainsAny(s, " \t\n\\\"{}[]<>=;,.-") ||
		(s[0] >= '0' && s[0] <= '9' && !isNumeral(s))
	if needsQuote {
		escaped := strings.ReplaceAll(s, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	}
	return s
}

func isNumeral(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// RenderDOT produces a DOT digraph that ParseDOT reads back into the same
// nodes, positions, edges and tool assignments.
func RenderDOT(name string, g *Graph) string {
	var sb strings.Builder

	if name == "" {
		name = "pipeline"
	}
	fmt.Fprintf(&sb, "digraph %s {\n", dotQuote(name))

	for _, n := range g.nodes {
		parts := []string{
			"stage=" + n.Stage.Slug(),
			"label=" + dotQuote(n.Label),
			"pos=" + dotQuote(fmt.Sprintf("%g,%g", n.Position.X, n.Position.Y)),
		}
		if n.HasImage {
			parts = append(parts, "tool="+dotQuote(n.AssignedTool))
		}
		fmt.Fprintf(&sb, "    %s [%s]\n", dotQuote(n.ID), strings.Join(parts, ", "))
	}

	for _, e := range g.edges {
		fmt.Fprintf(&sb, "    %s -> %s\n", dotQuote(e.Source), dotQuote(e.Target))
	}

	fmt.Fprintf(&sb, "}\n")
	return sb.String()
}
