package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/pipegen/internal/server"
	"github.com/ravi-parthasarathy/pipegen/internal/store"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
	"github.com/ravi-parthasarathy/pipegen/pkg/llm"
)

func serveCmd(a *app) *cobra.Command {
	var addr, seed string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tool catalog and pipeline fragment service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if seed != "" {
				a.cfg.Server.SeedFile = seed
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			repo, closeRepo, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			if path := a.cfg.Server.SeedFile; path != "" {
				n, err := store.LoadSeed(ctx, repo, path)
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				a.log.Info("seed loaded",
					zap.String("file", path),
					zap.Int("platforms", n.Platforms),
					zap.Int("tools", n.Tools),
					zap.Int("pipelines", n.Pipelines))
			}

			opts := []server.Option{server.WithComposeOptions(
				compose.WithLookupTimeout(a.cfg.Compose.LookupTimeout),
				compose.WithConcurrency(a.cfg.Compose.Concurrency),
			)}
			if model := a.cfg.LLM.Model; model != "" {
				client, err := llm.NewClient(model)
				if err != nil {
					return fmt.Errorf("llm: %w", err)
				}
				opts = append(opts, server.WithDrafter(llm.NewDrafter(client, a.log)))
				a.log.Info("fragment drafting enabled", zap.String("model", model))
			}

			return server.New(repo, a.cfg.Server, a.log, opts...).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&seed, "seed", "", "YAML seed file loaded at startup (overrides server.seed_file)")
	return cmd
}

// openStore returns Postgres when database.url is set, otherwise an
// in-memory store.
func (a *app) openStore(ctx context.Context) (store.Repository, func(), error) {
	db := a.cfg.Database
	if db.URL == "" {
		a.log.Warn("database.url is not set; using the in-memory store")
		return store.NewMemory(), func() {}, nil
	}
	pg, closeFn, err := store.Open(ctx, db.URL, db.MaxConns, a.log)
	if err != nil {
		return nil, nil, err
	}
	a.log.Info("database connection established")
	return pg, closeFn, nil
}
