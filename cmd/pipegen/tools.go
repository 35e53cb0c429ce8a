package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/palette"
	"github.com/ravi-parthasarathy/pipegen/pkg/present"
)

func toolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools [search]",
		Short: "List catalog tools, optionally filtered by name or stage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.backendClient()
			if err != nil {
				return err
			}
			cache := catalog.New(client, a.log)
			if err := cache.Load(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), present.Banner(err))
				return err
			}

			var term string
			if len(args) == 1 {
				term = args[0]
			}
			tools := cache.Filter(term)
			if len(tools) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tools found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTAGE\tVERSION\tIMAGE")
			for _, t := range tools {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Config.Type, t.Version, t.ImagePath)
			}
			return tw.Flush()
		},
	}
}

func templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the palette's stage templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STAGE\tSLUG\tLABEL")
			for _, t := range palette.Templates() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Stage, t.Stage.Slug(), t.Label)
			}
			return tw.Flush()
		},
	}
}
