package reconcile

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
)

// Shard is one contiguous catalog range [Start, End).
type Shard struct {
	Index int
	Start int
	End   int
}

// ShardRange returns the range covered by shard n of size records each.
func ShardRange(total, n, size int) (Shard, error) {
	if n < 0 || size <= 0 {
		return Shard{}, fmt.Errorf("invalid shard %d of size %d", n, size)
	}
	start := n * size
	if start >= total {
		return Shard{}, fmt.Errorf("shard %d starts at %d but the catalog has %d records", n, start, total)
	}
	end := start + size
	if end > total {
		end = total
	}
	return Shard{Index: n, Start: start, End: end}, nil
}

// Partition splits total records into k disjoint ranges that differ in size
// by at most one.
func Partition(total, k int) []Shard {
	if k <= 0 {
		k = 1
	}
	if k > total && total > 0 {
		k = total
	}
	shards := make([]Shard, 0, k)
	base, extra := total/k, total%k
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		shards = append(shards, Shard{Index: i, Start: start, End: start + size})
		start += size
	}
	return shards
}

// RunnerFactory builds an independent runner for one shard. Each runner must
// own its fetch session, run cache and checkpoint key.
type RunnerFactory func(shard Shard) (*Runner, error)

// RunShards runs every shard concurrently, one goroutine per shard. Summaries
// are returned in shard order. The first error is returned after all shards
// have stopped.
func RunShards(ctx context.Context, records []domain.CatalogRecord, shards []Shard, factory RunnerFactory, logger *zap.Logger) ([]Summary, error) {
	if len(shards) == 0 {
		return nil, nil
	}

	p := pool.New().WithErrors().WithMaxGoroutines(len(shards))
	summaries := make([]Summary, len(shards))

	for idx, shard := range shards {
		idx, shard := idx, shard
		p.Go(func() error {
			runner, err := factory(shard)
			if err != nil {
				return fmt.Errorf("shard %d: %w", shard.Index, err)
			}
			summary, err := runner.Run(ctx, records)
			summaries[idx] = summary
			if err != nil {
				return fmt.Errorf("shard %d: %w", shard.Index, err)
			}
			logger.Info("Shard finished",
				zap.Int("shard", shard.Index),
				zap.String("reason", string(summary.Reason)),
				zap.Int("processed", summary.Processed),
			)
			return nil
		})
	}

	err := p.Wait()
	return summaries, err
}
