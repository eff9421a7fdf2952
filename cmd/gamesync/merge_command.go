package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/service/catalog"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Write resolved data back into the catalog files",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := ctx.ensureContainer(cmd.Context())
			if err != nil {
				return err
			}

			keys, err := container.Store.List(cmd.Context())
			if err != nil {
				return err
			}

			docs := make(map[string][]*domain.Checkpoint)
			for _, key := range keys {
				cp, err := container.Store.Load(cmd.Context(), key)
				if err != nil {
					return err
				}
				docs[key.Provider] = append(docs[key.Provider], cp)
			}

			resolved := make(map[string]map[string]*domain.ResolvedRecord, len(docs))
			for name, cps := range docs {
				resolved[name] = catalog.Combine(cps...)
			}

			stats, err := catalog.Merge(container.Config.Catalog.Path, resolved, container.Logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d records into %d of %d files\n",
				stats.Updated, stats.Rewritten, stats.Files)
			return nil
		},
	}
}
