package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/to-ny/medsearch-sub001/internal/adapters/database"
	"github.com/to-ny/medsearch-sub001/internal/adapters/snapshot"
	"github.com/to-ny/medsearch-sub001/internal/domain/repositories"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/clients/postgres"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/observability"
	"github.com/to-ny/medsearch-sub001/pkg/config"
)

// Version is injected at build time
var Version = "dev"

type rootOptions struct {
	snapshotPath string
	dsn          string
	tablePrefix  string
	verbose      bool
	out          io.Writer
}

func main() {
	runMain(os.Args, os.Stdout, os.Exit)
}

func runMain(args []string, out io.Writer, exit func(int)) {
	if err := Execute(args[1:], out); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(args []string, out io.Writer) error {
	rootCmd := newRootCmd(out)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	rootCmd := &cobra.Command{
		Use:     "medsearch",
		Short:   "Federated search over the medicines catalogue",
		Version: Version,
		Long: `medsearch searches substances, generic and branded products, packages,
companies, therapeutic groups and ATC classes in a single query.

The index is read from a JSON snapshot (--snapshot), a PostgreSQL database
(--dsn), or the backend configured through the environment.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			env := "production"
			if opts.verbose {
				env = "development"
			}
			observability.InitLoggerTo(cmd.ErrOrStderr(), "medsearch", env)
		},
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.snapshotPath, "snapshot", "", "Read the index from a JSON snapshot file")
	rootCmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "PostgreSQL connection string for the index")
	rootCmd.PersistentFlags().StringVar(&opts.tablePrefix, "table-prefix", "search_", "Table name prefix of the PostgreSQL index")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Human-readable debug logging on stderr")

	rootCmd.AddCommand(newSearchCmd(opts))
	rootCmd.AddCommand(newLoadCmd(opts))
	rootCmd.AddCommand(newEvalCmd(opts))

	return rootCmd
}

// openIndex resolves the index backend from flags, falling back to the
// environment configuration.
func openIndex(ctx context.Context, opts *rootOptions) (repositories.EntityIndexRepository, func(), error) {
	if opts.snapshotPath != "" {
		index, err := snapshot.Load(opts.snapshotPath)
		if err != nil {
			return nil, nil, err
		}
		return index, func() {}, nil
	}

	if opts.dsn != "" {
		client, err := postgres.NewClientFromDSN(ctx, opts.dsn, 4)
		if err != nil {
			return nil, nil, err
		}
		return database.NewEntityIndexAdapter(client, opts.tablePrefix), closeClient(client), nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Search.Backend {
	case config.BackendSnapshot:
		index, err := snapshot.Load(cfg.Search.SnapshotPath)
		if err != nil {
			return nil, nil, err
		}
		return index, func() {}, nil
	case config.BackendPostgres:
		client, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return database.NewEntityIndexAdapter(client, cfg.Database.TablePrefix), closeClient(client), nil
	}
	return nil, nil, fmt.Errorf("unknown search backend %q", cfg.Search.Backend)
}

func closeClient(client *postgres.Client) func() {
	return func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing PostgreSQL client")
		}
	}
}
