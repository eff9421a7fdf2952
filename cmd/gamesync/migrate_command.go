package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/app"
	"github.com/kapu/game-metadata-sync-go/internal/store"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every checkpoint document into another store backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := ctx.ensureContainer(cmd.Context())
			if err != nil {
				return err
			}
			if target == "" {
				return fmt.Errorf("--to is required")
			}
			if target == container.Store.Backend() {
				return fmt.Errorf("source and target backend are both %s", target)
			}

			dst, err := store.Open(app.StoreOptions(container.Config, target), container.Logger)
			if err != nil {
				return err
			}
			defer dst.Close()

			keys, err := container.Store.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, key := range keys {
				cp, err := container.Store.Load(cmd.Context(), key)
				if err != nil {
					return err
				}
				if err := dst.Save(cmd.Context(), key, cp); err != nil {
					return err
				}
				container.Logger.Info("Checkpoint migrated",
					zap.String("key", key.String()),
					zap.String("to", target),
					zap.Int("games", len(cp.Games)),
				)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d checkpoints from %s to %s\n",
				len(keys), container.Store.Backend(), target)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "Target backend (json, sqlite, postgres, redis)")
	return cmd
}
