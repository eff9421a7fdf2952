package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kapu/game-metadata-sync-go/internal/service/report"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var providerName string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := ctx.ensureContainer(cmd.Context())
			if err != nil {
				return err
			}

			keys, err := container.Store.List(cmd.Context())
			if err != nil {
				return err
			}

			var rows []report.Stats
			for _, key := range keys {
				if providerName != "" && key.Provider != providerName {
					continue
				}
				cp, err := container.Store.Load(cmd.Context(), key)
				if err != nil {
					return err
				}
				rows = append(rows, report.Compute(key, cp))
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No checkpoints stored")
				return nil
			}
			fmt.Fprintln(out, report.Render(rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "Only show this provider")
	return cmd
}
