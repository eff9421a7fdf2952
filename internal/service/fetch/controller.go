package fetch

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/util"
	"github.com/kapu/game-metadata-sync-go/pkg/errors"
	"go.uber.org/zap"
)

const (
	minAttempts = 1
	maxAttempts = 5
)

// Options configures a Controller. Zero values fall back to constants.
type Options struct {
	MaxAttempts      int
	AttemptTimeouts  []time.Duration
	TimeoutStep      time.Duration
	BaseDelay        time.Duration
	Jitter           time.Duration
	Politeness       constants.DelayRange
	BreakInterval    constants.DelayRange
	BreakDuration    constants.DelayRange
	Escalation       []constants.DelayRange
	BreakerThreshold int
	BreakerReset     time.Duration
	Markers          *Markers

	Sleep SleepFunc
	Rand  *rand.Rand
	Now   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = constants.RetryConfig.MaxAttempts
	}
	if len(o.AttemptTimeouts) == 0 {
		o.AttemptTimeouts = constants.RetryConfig.AttemptTimeouts
	}
	if o.TimeoutStep <= 0 {
		o.TimeoutStep = constants.RetryConfig.TimeoutStep
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = constants.RetryConfig.BaseDelay
	}
	if o.Jitter <= 0 {
		o.Jitter = constants.RetryConfig.Jitter
	}
	if o.Politeness.Max <= 0 {
		o.Politeness = constants.PolitenessConfig.Delay
	}
	if o.BreakInterval.Max <= 0 {
		o.BreakInterval = constants.PolitenessConfig.BreakInterval
	}
	if o.BreakDuration.Max <= 0 {
		o.BreakDuration = constants.PolitenessConfig.BreakDuration
	}
	if len(o.Escalation) == 0 {
		o.Escalation = constants.EscalationDelays
	}
	if o.BreakerThreshold <= 0 {
		o.BreakerThreshold = constants.CircuitBreakerConfig.FailureThreshold
	}
	if o.BreakerReset <= 0 {
		o.BreakerReset = constants.CircuitBreakerConfig.ResetTimeout
	}
	if o.Markers == nil {
		m := DefaultMarkers()
		o.Markers = &m
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Controller runs fetch operations with bounded retries, escalating delays on
// anti-automation responses, pacing and a consecutive-defense circuit breaker.
// One Controller models one provider session and serializes its operations.
type Controller struct {
	fetcher Fetcher
	opts    Options
	pacer   *pacer
	breaker *util.CircuitBreaker
	logger  *zap.Logger

	mu         sync.Mutex
	escalation int
	operations int
}

func NewController(fetcher Fetcher, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	opts.MaxAttempts = util.Max(minAttempts, util.Min(opts.MaxAttempts, maxAttempts))

	return &Controller{
		fetcher: fetcher,
		opts:    opts,
		pacer: &pacer{
			delay:         opts.Politeness,
			breakInterval: opts.BreakInterval,
			breakDuration: opts.BreakDuration,
			rng:           opts.Rand,
			now:           opts.Now,
			sleep:         opts.Sleep,
			logger:        logger,
		},
		breaker: util.NewCircuitBreaker(opts.BreakerThreshold, opts.BreakerReset, logger).WithClock(opts.Now),
		logger:  logger,
	}
}

// Do executes one operation. It never returns a Go error: every ending,
// including exhaustion and cancellation, is reported through Outcome.
func (c *Controller) Do(ctx context.Context, op Operation) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations++

	if !c.breaker.CanExecute() {
		return Outcome{
			Class: domain.ClassBlocked,
			Err:   errors.NewFetchError("provider session halted", string(domain.ClassBlocked), op.URL, 0, 0, nil),
		}
	}

	var (
		last     domain.Classification
		lastResp *Response
		lastErr  error
		attempts int
	)

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if err := c.pacer.wait(ctx); err != nil {
			return c.cancelled(op, attempts, err)
		}

		attempts = attempt
		timeout := c.attemptTimeout(attempt)
		c.logger.Debug("Fetching",
			zap.String("kind", string(op.Kind)),
			zap.String("url", op.URL),
			zap.Int("attempt", attempt),
			zap.Duration("timeout", timeout),
		)

		resp, err := c.fetcher.Fetch(ctx, op.URL, timeout)
		if ctx.Err() != nil {
			return c.cancelled(op, attempts, ctx.Err())
		}

		last = c.opts.Markers.Classify(resp, err)
		lastResp = resp
		lastErr = err

		c.logger.Debug("Fetch classified",
			zap.String("kind", string(op.Kind)),
			zap.String("url", op.URL),
			zap.Int("attempt", attempt),
			zap.String("class", last.String()),
			zap.Int("status", statusOf(resp)),
		)

		switch {
		case last == domain.ClassSuccess:
			c.escalation = 0
			c.breaker.RecordSuccess()
			return Outcome{Class: last, Response: resp, Attempts: attempts}

		case !last.IsRetryable():
			c.breaker.RecordSuccess()
			return Outcome{
				Class:    last,
				Response: resp,
				Attempts: attempts,
				Err:      errors.NewFetchError("terminal response", last.String(), op.URL, attempts, statusOf(resp), err),
			}

		case last.IsDefense():
			if attempt < c.opts.MaxAttempts {
				delay := c.escalate()
				c.logger.Warn("Provider defense detected, backing off",
					zap.String("class", last.String()),
					zap.String("url", op.URL),
					zap.Int("attempt", attempt),
					zap.Int("level", c.escalation),
					zap.Duration("delay", delay),
				)
				if err := c.opts.Sleep(ctx, delay); err != nil {
					return c.cancelled(op, attempts, err)
				}
			}

		default:
			if attempt < c.opts.MaxAttempts {
				delay := c.computeDelay(attempt - 1)
				c.logger.Warn("Fetch failed, retrying",
					zap.String("class", last.String()),
					zap.String("url", op.URL),
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay),
					zap.Error(err),
				)
				if err := c.opts.Sleep(ctx, delay); err != nil {
					return c.cancelled(op, attempts, err)
				}
			}
		}
	}

	if last.IsDefense() {
		c.breaker.RecordFailure(0)
	}

	c.logger.Warn("Giving up",
		zap.String("kind", string(op.Kind)),
		zap.String("url", op.URL),
		zap.String("class", last.String()),
		zap.Int("attempts", attempts),
	)

	return Outcome{
		Class:    last,
		Response: lastResp,
		Attempts: attempts,
		Err: errors.NewFetchError(
			fmt.Sprintf("gave up after %d attempts", attempts),
			last.String(), op.URL, attempts, statusOf(lastResp), lastErr,
		),
	}
}

// Halted reports whether the breaker opened after consecutive defense give-ups.
func (c *Controller) Halted() bool {
	return !c.breaker.CanExecute()
}

// Operations returns how many operations have been issued, for quota checks.
func (c *Controller) Operations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.operations
}

func (c *Controller) EscalationLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.escalation
}

func (c *Controller) attemptTimeout(attempt int) time.Duration {
	table := c.opts.AttemptTimeouts
	if attempt <= len(table) {
		return table[attempt-1]
	}
	return table[len(table)-1] + time.Duration(attempt-len(table))*c.opts.TimeoutStep
}

// escalate returns the delay for the current level and raises the level.
// Must be called with c.mu held.
func (c *Controller) escalate() time.Duration {
	level := util.Min(c.escalation, len(c.opts.Escalation)-1)
	delay := randomIn(c.opts.Rand, c.opts.Escalation[level])
	if c.escalation < len(c.opts.Escalation) {
		c.escalation++
	}
	return delay
}

func (c *Controller) computeDelay(attempt int) time.Duration {
	base := c.opts.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	jitter := time.Duration(c.opts.Rand.Float64() * float64(c.opts.Jitter))
	return base + jitter
}

func (c *Controller) cancelled(op Operation, attempts int, cause error) Outcome {
	return Outcome{
		Class:    domain.ClassNetworkError,
		Attempts: attempts,
		Err:      errors.NewFetchError("operation cancelled", domain.ClassNetworkError.String(), op.URL, attempts, 0, cause),
	}
}

func statusOf(resp *Response) int {
	if resp == nil {
		return 0
	}
	return resp.Status
}
