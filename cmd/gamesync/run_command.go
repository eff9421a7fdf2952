package main

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/service/provider"
	"github.com/kapu/game-metadata-sync-go/internal/service/reconcile"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		providerName string
		shard        int
		shardSize    int
		shards       int
		quota        int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve catalog records against one provider",
		Long: "Resolve catalog records against one provider and persist the results.\n\n" +
			"Use --shard with --shard-size to process one slice of the catalog, or --shards to\n" +
			"split the catalog into independent sessions that run side by side.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validProvider(providerName) {
				return fmt.Errorf("unknown provider %q (want one of %v)", providerName, provider.Names())
			}

			container, err := ctx.ensureContainer(cmd.Context())
			if err != nil {
				return err
			}
			cfg := container.Config
			logger := container.Logger

			if !cmd.Flags().Changed("quota") {
				quota = cfg.Run.Quota
			}
			if !cmd.Flags().Changed("shards") {
				shards = cfg.Run.Shards
			}

			records, err := container.LoadCatalog()
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			logger.Info("Run requested",
				zap.String("run_id", runID),
				zap.String("provider", providerName),
				zap.Int("records", len(records)),
				zap.Int("quota", quota),
			)

			var plan []reconcile.Shard
			switch {
			case shardSize > 0:
				s, err := reconcile.ShardRange(len(records), shard, shardSize)
				if err != nil {
					return err
				}
				plan = []reconcile.Shard{s}
			case shards > 1:
				plan = reconcile.Partition(len(records), shards)
			default:
				plan = []reconcile.Shard{{Index: 0, Start: 0, End: len(records)}}
			}

			summaries, err := reconcile.RunShards(cmd.Context(), records, plan,
				container.RunnerFactory(providerName, quota, runID), logger)
			printSummaries(cmd.OutOrStdout(), summaries)
			return err
		},
	}

	cmd.Flags().StringVarP(&providerName, "provider", "p", constants.ProviderNames.Critic, "Provider to query (critic or completion)")
	cmd.Flags().IntVar(&shard, "shard", 0, "Shard index to process (with --shard-size)")
	cmd.Flags().IntVar(&shardSize, "shard-size", 0, "Records per shard; 0 processes the whole catalog")
	cmd.Flags().IntVar(&shards, "shards", 1, "Split the catalog into this many concurrent sessions")
	cmd.Flags().IntVar(&quota, "quota", 0, "Maximum fetch operations per session (0 = unlimited)")

	return cmd
}

func validProvider(name string) bool {
	for _, n := range provider.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func printSummaries(out io.Writer, summaries []reconcile.Summary) {
	for _, s := range summaries {
		if s.RunID == "" {
			continue
		}
		fmt.Fprintf(out, "%s: %s after %s | processed %d (resolved %d, missed %d, failed %d), skipped %d, %d operations, next index %d\n",
			s.Key, s.Reason, s.Duration.Round(time.Second),
			s.Processed, s.Resolved, s.Missed, s.Failed, s.Skipped,
			s.Operations, s.NextIndex,
		)
	}
}
