package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/service/cache"
	"github.com/kapu/game-metadata-sync-go/internal/service/checkpoint"
	"github.com/kapu/game-metadata-sync-go/internal/service/resolver"
	"github.com/kapu/game-metadata-sync-go/internal/store"
	"github.com/kapu/game-metadata-sync-go/internal/util"
)

// RecordResolver resolves one catalog record. *resolver.Resolver implements it.
type RecordResolver interface {
	Resolve(ctx context.Context, rec domain.CatalogRecord) resolver.Result
}

// Meter reports the fetch session state. *fetch.Controller implements it.
type Meter interface {
	Halted() bool
	Operations() int
}

type Options struct {
	Key store.Key
	// Start and End bound the catalog slice [Start, End). End <= 0 means the
	// whole catalog.
	Start int
	End   int
	// Quota caps fetch operations for the run. Zero means unlimited.
	Quota     int
	SaveEvery int
	RunID     string
	Now       func() time.Time
}

// StopReason says why a run ended.
type StopReason string

const (
	StopCompleted StopReason = "completed"
	StopQuota     StopReason = "quota"
	StopHalted    StopReason = "halted"
	StopCancelled StopReason = "cancelled"
)

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Key        store.Key
	Reason     StopReason
	Processed  int
	Skipped    int
	Resolved   int
	Missed     int
	Failed     int
	Operations int
	NextIndex  int
	FullCycle  bool
	Duration   time.Duration
}

// Runner drives one resolver over a catalog slice and persists progress.
type Runner struct {
	resolver RecordResolver
	meter    Meter
	store    store.Store
	policy   *checkpoint.Policy
	runCache *cache.RunCache
	opts     Options
	logger   *zap.Logger
}

func NewRunner(res RecordResolver, meter Meter, st store.Store, policy *checkpoint.Policy, runCache *cache.RunCache, opts Options, logger *zap.Logger) *Runner {
	if opts.SaveEvery <= 0 {
		opts.SaveEvery = constants.RunConfig.SaveEvery
	}
	if opts.Now == nil {
		opts.Now = util.NowUTC
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if policy == nil {
		policy = checkpoint.NewPolicy(checkpoint.Windows{})
	}
	if runCache == nil {
		runCache = cache.NewRunCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		resolver: res,
		meter:    meter,
		store:    st,
		policy:   policy,
		runCache: runCache,
		opts:     opts,
		logger: logger.With(
			zap.String("run_id", opts.RunID),
			zap.String("checkpoint", opts.Key.String()),
		),
	}
}

// Run processes records[Start:End]. Only a store write failure is returned
// as an error; every per-record failure is persisted as a note.
func (r *Runner) Run(ctx context.Context, records []domain.CatalogRecord) (Summary, error) {
	started := r.opts.Now()
	summary := Summary{RunID: r.opts.RunID, Key: r.opts.Key}

	r.runCache.Reset()

	cp, err := r.store.Load(ctx, r.opts.Key)
	if err != nil {
		r.logger.Warn("Checkpoint load failed, starting from an empty document", zap.Error(err))
		cp = domain.NewCheckpoint(r.opts.Key.Provider, r.opts.Key.Shard)
	}
	cp.Ensure()
	cp.Provider = r.opts.Key.Provider
	cp.Shard = r.opts.Key.Shard

	start, end := r.bounds(len(records))

	resume := cp.LastProcessedIndex
	if resume < start || resume >= end {
		resume = start
	}
	progress := checkpoint.NewProgress(resume, r.opts.SaveEvery)

	r.logger.Info("Run started",
		zap.Int("start", start),
		zap.Int("end", end),
		zap.Int("resume", resume),
		zap.Int("known", len(cp.Games)),
		zap.Bool("full_cycle_complete", cp.FullCycleComplete),
		zap.Int("quota", r.opts.Quota),
	)

	finish := func(reason StopReason) (Summary, error) {
		if reason == StopCompleted {
			progress.Complete()
			cp.FullCycleComplete = cp.FullCycleComplete || progress.FullCycleComplete()
		}
		summary.Reason = reason
		summary.NextIndex = progress.Index()
		summary.FullCycle = cp.FullCycleComplete
		summary.Operations = r.meter.Operations()
		summary.Duration = r.opts.Now().Sub(started)

		// The final save must land even when ctx was cancelled.
		if err := r.save(context.WithoutCancel(ctx), cp, progress); err != nil {
			return summary, err
		}
		cacheStats := r.runCache.Stats()
		r.logger.Info("Run finished",
			zap.String("reason", string(reason)),
			zap.Int("processed", summary.Processed),
			zap.Int("skipped", summary.Skipped),
			zap.Int("resolved", summary.Resolved),
			zap.Int("missed", summary.Missed),
			zap.Int("failed", summary.Failed),
			zap.Int("operations", summary.Operations),
			zap.Int("next_index", summary.NextIndex),
			zap.Duration("duration", summary.Duration),
			zap.Int("cache_hits", cacheStats.Hits),
			zap.Int("cache_misses", cacheStats.Misses),
		)
		return summary, nil
	}

	for i := progress.Index(); i < end; i++ {
		switch {
		case ctx.Err() != nil:
			return finish(StopCancelled)
		case r.meter.Halted():
			return finish(StopHalted)
		case r.opts.Quota > 0 && r.meter.Operations() >= r.opts.Quota:
			return finish(StopQuota)
		}

		rec := records[i]
		key := rec.Key()
		prev := cp.Get(key)
		now := r.opts.Now()

		decision := r.policy.Evaluate(prev, rec, now, cp.FullCycleComplete)
		if !decision.Process {
			if decision.MarkNoMoreUpdates && !prev.NoMoreUpdates {
				cp.Put(key, checkpoint.MarkSettled(prev))
			}
			summary.Skipped++
			progress.Advance(i + 1)
			continue
		}

		if rec.ExternalID == "" && prev != nil {
			rec.ExternalID = prev.ExternalID
		}
		result := r.resolver.Resolve(ctx, rec)

		// An interrupted record is retried next run rather than stored half done.
		if ctx.Err() != nil {
			return finish(StopCancelled)
		}
		if r.meter.Halted() && result.Class != domain.ClassSuccess {
			return finish(StopHalted)
		}

		if result.Skipped || result.Record == nil {
			summary.Skipped++
			progress.Advance(i + 1)
			continue
		}

		if prev != nil && prev.ExternalID != "" && result.Record.ExternalID == "" {
			result.Record.ExternalID = prev.ExternalID
		}
		cp.Put(key, r.policy.Apply(prev, result.Record, now))

		summary.Processed++
		switch {
		case result.Record.Note == domain.NoteFetchFailed:
			summary.Failed++
		case result.Record.Note.CountsAsMiss():
			summary.Missed++
		default:
			summary.Resolved++
		}

		r.logger.Debug("Record processed",
			zap.Int("index", i),
			zap.String("id", key),
			zap.String("name", rec.Name),
			zap.String("reason", decision.Reason),
			zap.String("class", result.Class.String()),
			zap.String("tier", string(result.Tier)),
			zap.String("note", result.Record.Note.String()),
		)

		progress.Advance(i + 1)
		progress.MarkProcessed()
		if progress.ShouldSave() {
			if err := r.save(ctx, cp, progress); err != nil {
				return summary, err
			}
		}
	}

	return finish(StopCompleted)
}

func (r *Runner) bounds(total int) (int, int) {
	start, end := r.opts.Start, r.opts.End
	if end <= 0 || end > total {
		end = total
	}
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	return start, end
}

func (r *Runner) save(ctx context.Context, cp *domain.Checkpoint, progress *checkpoint.Progress) error {
	cp.LastProcessedIndex = progress.Index()
	cp.LastUpdated = r.opts.Now()
	cp.RunID = r.opts.RunID

	if err := r.store.Save(ctx, r.opts.Key, cp); err != nil {
		r.logger.Error("Checkpoint save failed", zap.Error(err))
		return err
	}
	r.logger.Debug("Checkpoint saved",
		zap.Int("index", cp.LastProcessedIndex),
		zap.Int("games", len(cp.Games)),
	)
	return nil
}
