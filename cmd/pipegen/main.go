package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/pipegen/internal/config"
	"github.com/ravi-parthasarathy/pipegen/internal/observability"
	"github.com/ravi-parthasarathy/pipegen/pkg/backend"

	// Register LLM providers via their init() functions.
	_ "github.com/ravi-parthasarathy/pipegen/pkg/llm/providers"
)

func main() {
	err := rootCmd().Execute()
	observability.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by every subcommand once the root pre-run has
// loaded configuration.
type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pipegen",
		Short: "pipegen composes CI/CD security pipelines",
		Long: `pipegen assembles CI/CD security pipelines from a graph of stages.

Each node in the graph is a security stage (Secret Scanning, SCA, SAST, ...).
Tools from the catalog are assigned to matching nodes, and the stored YAML
fragment for every assigned tool is joined into one pipeline document.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			observability.InitializeLogger(cfg.Logger)
			a.cfg = cfg
			a.log = observability.GetLogger()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(serveCmd(a))
	root.AddCommand(composeCmd(a))
	root.AddCommand(toolsCmd(a))
	root.AddCommand(graphCmd())
	root.AddCommand(lintCmd())
	root.AddCommand(templatesCmd())
	return root
}

// backendClient builds a REST client from the backend config section.
func (a *app) backendClient() (*backend.Client, error) {
	b := a.cfg.Backend
	opts := []backend.Option{
		backend.WithTimeout(b.Timeout),
		backend.WithLogger(a.log),
	}
	if b.Token != "" {
		opts = append(opts, backend.WithToken(b.Token))
	}
	if b.LookupRate > 0 {
		opts = append(opts, backend.WithLookupRate(b.LookupRate, b.LookupBurst))
	}
	return backend.New(b.URL, opts...)
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
