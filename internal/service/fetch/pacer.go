package fetch

import (
	"context"
	"math/rand"
	"time"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"go.uber.org/zap"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomIn(rng *rand.Rand, r constants.DelayRange) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int63n(int64(r.Max-r.Min)+1))
}

// pacer spaces outbound attempts and inserts a long pause after a randomized
// stretch of activity.
type pacer struct {
	delay         constants.DelayRange
	breakInterval constants.DelayRange
	breakDuration constants.DelayRange
	rng           *rand.Rand
	now           func() time.Time
	sleep         SleepFunc
	logger        *zap.Logger

	nextBreak time.Time
	breaks    int
}

func (p *pacer) wait(ctx context.Context) error {
	now := p.now()
	if p.nextBreak.IsZero() {
		p.scheduleBreak(now)
	}

	if p.breakInterval.Max > 0 && !now.Before(p.nextBreak) {
		pause := randomIn(p.rng, p.breakDuration)
		p.breaks++
		p.logger.Info("Taking a long break",
			zap.Duration("duration", pause),
			zap.Int("breaks", p.breaks),
		)
		if err := p.sleep(ctx, pause); err != nil {
			return err
		}
		p.scheduleBreak(p.now())
	}

	return p.sleep(ctx, randomIn(p.rng, p.delay))
}

func (p *pacer) scheduleBreak(from time.Time) {
	p.nextBreak = from.Add(randomIn(p.rng, p.breakInterval))
}
