package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/to-ny/medsearch-sub001/internal/adapters/database"
	"github.com/to-ny/medsearch-sub001/internal/adapters/snapshot"
	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/clients/postgres"
	"github.com/to-ny/medsearch-sub001/pkg/config"
)

func newLoadCmd(root *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "load <snapshot.json>",
		Short: "Load a JSON snapshot into the PostgreSQL index",
		Long: `Create the per-type index tables when missing and replace their contents
with the rows of a JSON snapshot. Each table is swapped in its own transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := contextWithTimeout(cmd, timeout)
			defer cancel()
			return runLoad(ctx, root, args[0])
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Load timeout")

	return cmd
}

func runLoad(ctx context.Context, root *rootOptions, path string) error {
	index, err := snapshot.Load(path)
	if err != nil {
		return err
	}

	client, prefix, err := openDatabase(ctx, root)
	if err != nil {
		return err
	}
	defer closeClient(client)()

	adapter := database.NewEntityIndexAdapter(client, prefix)
	if err := adapter.CreateSchema(ctx); err != nil {
		return err
	}

	byKind := make(map[entities.EntityKind][]*entities.IndexedEntityRow)
	for _, row := range index.Rows() {
		byKind[row.Kind] = append(byKind[row.Kind], row)
	}

	for _, kind := range entities.AllKinds {
		start := time.Now()
		if err := adapter.ReplaceRows(ctx, kind, byKind[kind]); err != nil {
			return fmt.Errorf("failed to load %s: %w", kind, err)
		}
		log.Info().
			Str("table", adapter.TableName(kind)).
			Int("rows", len(byKind[kind])).
			Dur("duration", time.Since(start)).
			Msg("table loaded")
	}

	fmt.Fprintf(root.out, "Loaded %d rows from %s\n", len(index.Rows()), path)
	return nil
}

func openDatabase(ctx context.Context, root *rootOptions) (*postgres.Client, string, error) {
	if root.snapshotPath != "" {
		return nil, "", errors.New("load writes to PostgreSQL; use --dsn instead of --snapshot")
	}
	if root.dsn != "" {
		client, err := postgres.NewClientFromDSN(ctx, root.dsn, 4)
		return client, root.tablePrefix, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	client, err := postgres.NewClient(ctx, &cfg.Database)
	return client, cfg.Database.TablePrefix, err
}

func contextWithTimeout(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
