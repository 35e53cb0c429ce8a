package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/pipegen/pkg/backend"
	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
	"github.com/ravi-parthasarathy/pipegen/pkg/dragdrop"
	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
	"github.com/ravi-parthasarathy/pipegen/pkg/present"
)

func composeCmd(a *app) *cobra.Command {
	var (
		platform   string
		language   string
		assigns    []string
		tabName    string
		outPath    string
		savePath   string
		serverSide bool
	)

	cmd := &cobra.Command{
		Use:   "compose <graph.dot|session.json>",
		Short: "Assign tools to a graph and print the combined pipeline",
		Long: `compose loads a graph, assigns tools from the backend catalog to its
nodes and joins the stored fragment of every assigned tool into one YAML
document.

Assignments come from tool= attributes in a DOT file, from a saved session,
and from --assign node=tool flags, applied in that order. An assignment whose
tool belongs to a different stage than its node is reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, err := present.ParseTab(tabName)
			if err != nil {
				return err
			}
			sess, pending, err := loadSession(args[0])
			if err != nil {
				return err
			}
			if platform != "" {
				sess.Platform = platform
			}
			if language != "" {
				sess.Language = language
			}
			if sess.Platform == "" {
				return errors.New("--platform is required")
			}
			for _, raw := range assigns {
				nodeID, tool, ok := strings.Cut(raw, "=")
				if !ok || nodeID == "" || tool == "" {
					return fmt.Errorf("--assign %q: want node=tool", raw)
				}
				pending = append(pending, flow.Assignment{NodeID: nodeID, Tool: tool})
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			stderr := cmd.ErrOrStderr()

			client, err := a.backendClient()
			if err != nil {
				return err
			}
			cache := catalog.New(client, a.log)
			if err := cache.Load(ctx); err != nil {
				fmt.Fprintln(stderr, present.Banner(err))
				return err
			}

			g := flow.FromSnapshot(sess.Graph, flow.WithLogger(a.log))
			applyAssignments(g, cache, pending, stderr, a.log)
			sess.Graph = g.Snapshot()

			if savePath != "" {
				if err := flow.SaveSession(savePath, *sess); err != nil {
					return err
				}
			}

			if serverSide {
				return generateRemote(cmd, client, sess, outPath)
			}

			composer := compose.New(client,
				compose.WithLookupTimeout(a.cfg.Compose.LookupTimeout),
				compose.WithConcurrency(a.cfg.Compose.Concurrency),
				compose.WithLogger(a.log))
			res, err := composer.Compose(ctx, sess.Graph.Nodes, compose.Params{
				Platform: sess.Platform,
				Language: sess.Language,
			})
			if err != nil {
				fmt.Fprintln(stderr, present.Banner(err))
				return err
			}

			view := present.NewView(res)
			fmt.Fprintln(stderr, view.Heading())
			return writeOutput(cmd.OutOrStdout(), outPath, func(w io.Writer) error {
				return view.Copy(tab, present.WriterClipboard{W: w})
			})
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "CI/CD platform, e.g. github (overrides the session)")
	cmd.Flags().StringVar(&language, "language", "", "project language (overrides the session)")
	cmd.Flags().StringArrayVar(&assigns, "assign", nil, "assign a tool to a node as node=tool (repeatable)")
	cmd.Flags().StringVar(&tabName, "tab", "yaml", "results pane to print: yaml or nodes")
	cmd.Flags().StringVar(&outPath, "out", "", "write the result to a file instead of stdout")
	cmd.Flags().StringVar(&savePath, "save", "", "save the edited session as JSON")
	cmd.Flags().BoolVar(&serverSide, "server-side", false, "let the backend compose the document")
	return cmd
}

// loadSession reads a saved JSON session or a DOT graph. For DOT input the
// tool= attributes are returned as pending assignments.
func loadSession(path string) (*flow.Session, []flow.Assignment, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		s, err := flow.LoadSession(path)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	doc, err := flow.ParseDOT(string(src))
	if err != nil {
		return nil, nil, fmt.Errorf("parse: %w", err)
	}
	if err := flow.ValidateErr(doc.Graph); err != nil {
		return nil, nil, err
	}
	return &flow.Session{Name: doc.Name, Graph: doc.Graph.Snapshot()}, doc.Assignments, nil
}

// applyAssignments drops each requested tool onto its node. Rejected drops
// are reported on w and leave the graph unchanged.
func applyAssignments(g *flow.Graph, cache *catalog.Cache, pending []flow.Assignment, w io.Writer, log *zap.Logger) {
	eng := dragdrop.New(g, log)
	for _, as := range pending {
		tool, ok := cache.Lookup(as.Tool)
		if !ok {
			fmt.Fprintf(w, "Warning: tool %q is not in the catalog.\n", as.Tool)
			continue
		}
		if _, err := eng.Assign(as.NodeID, tool); err != nil {
			fmt.Fprintln(w, present.Banner(err))
		}
	}
}

func generateRemote(cmd *cobra.Command, client *backend.Client, sess *flow.Session, outPath string) error {
	resp, err := client.Generate(cmd.Context(), backend.GenerateRequest{
		Nodes:    sess.Graph.Nodes,
		Platform: sess.Platform,
		Language: sess.Language,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d tools resolved\n", resp.Resolved, resp.Total)
	return writeOutput(cmd.OutOrStdout(), outPath, func(w io.Writer) error {
		_, err := io.WriteString(w, resp.YAML)
		return err
	})
}

// writeOutput runs write against path, or against stdout when path is empty.
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		if err := write(stdout); err != nil {
			return err
		}
		_, err := fmt.Fprintln(stdout)
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
