package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kapu/game-metadata-sync-go/internal/store"
)

func newResetCommand(ctx *commandContext) *cobra.Command {
	var (
		providerName string
		shard        int
		allShards    bool
		confirm      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete stored checkpoints for a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if providerName == "" {
				return fmt.Errorf("--provider is required")
			}
			if !confirm {
				return fmt.Errorf("reset deletes resolved records; pass --yes to confirm")
			}

			container, err := ctx.ensureContainer(cmd.Context())
			if err != nil {
				return err
			}

			targets := []store.Key{{Provider: providerName, Shard: shard}}
			if allShards {
				keys, err := container.Store.List(cmd.Context())
				if err != nil {
					return err
				}
				targets = targets[:0]
				for _, k := range keys {
					if k.Provider == providerName {
						targets = append(targets, k)
					}
				}
			}

			for _, key := range targets {
				if err := container.Store.Reset(cmd.Context(), key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", key)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "Provider whose checkpoints to delete")
	cmd.Flags().IntVar(&shard, "shard", 0, "Shard to reset")
	cmd.Flags().BoolVar(&allShards, "all-shards", false, "Reset every shard of the provider")
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the reset")
	return cmd
}
