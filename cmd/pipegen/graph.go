package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

func readGraph(path string) (*flow.Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	doc, err := flow.ParseDOT(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	// tool= attributes are recorded on the graph for display only; compose
	// re-applies them through the stage check.
	for _, as := range doc.Assignments {
		if n := doc.Graph.Node(as.NodeID); n != nil {
			n.Assign(as.Tool, "", 0, 0)
		}
	}
	return doc, nil
}

func graphCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <graph.dot>",
		Short: "Print a human-readable summary of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readGraph(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "dot":
				fmt.Fprint(out, flow.RenderDOT(doc.Name, doc.Graph))
			case "text", "":
				fmt.Fprint(out, flow.RenderText(doc.Name, doc.Graph))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}

func lintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <graph.dot>",
		Short: "Validate a graph DOT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readGraph(args[0])
			if err != nil {
				return err
			}
			if lintErr := flow.ValidateErr(doc.Graph); lintErr != nil {
				return lintErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: graph %q is valid (%d nodes, %d edges)\n",
				doc.Name, doc.Graph.Len(), len(doc.Graph.Edges()))
			return nil
		},
	}
}
