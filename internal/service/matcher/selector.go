package matcher

import (
	"context"
	"sort"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/service/cache"
	"go.uber.org/zap"
)

// Tier names the selection rule that produced a match.
type Tier string

const (
	TierNone Tier = ""
	TierTop  Tier = "top"
	TierA    Tier = "A" // strong score, same year
	TierB    Tier = "B" // strong score, earliest year before target
	TierC    Tier = "C" // strong score with a known year
	TierD    Tier = "D" // weak score, same year
	TierE    Tier = "E" // highest score, year ignored
)

// YearResolver looks up the release year of a candidate, usually by fetching
// its detail page. A zero year with a nil error means the page had no year.
type YearResolver interface {
	ResolveYear(ctx context.Context, candidate *domain.Candidate) (int, error)
}

type Thresholds struct {
	Strong         float64
	Weak           float64
	TiedTop        float64
	YearLookupTopK int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Strong:         constants.MatchThresholds.Strong,
		Weak:           constants.MatchThresholds.Weak,
		TiedTop:        constants.MatchThresholds.TiedTop,
		YearLookupTopK: constants.MatchThresholds.YearLookupTopK,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.Strong <= 0 {
		t.Strong = def.Strong
	}
	if t.Weak <= 0 {
		t.Weak = def.Weak
	}
	if t.TiedTop <= 0 {
		t.TiedTop = def.TiedTop
	}
	if t.YearLookupTopK <= 0 {
		t.YearLookupTopK = def.YearLookupTopK
	}
	return t
}

// Selector picks one candidate out of a scored result list.
type Selector struct {
	years      YearResolver
	runCache   *cache.RunCache
	thresholds Thresholds
	logger     *zap.Logger
}

func NewSelector(years YearResolver, runCache *cache.RunCache, thresholds Thresholds, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runCache == nil {
		runCache = cache.NewRunCache()
	}
	return &Selector{
		years:      years,
		runCache:   runCache,
		thresholds: thresholds.withDefaults(),
		logger:     logger,
	}
}

// Select returns the best candidate and the tier that chose it. Candidates
// must already carry their similarity score. A zero targetYear disables the
// year-aware tiers.
func (s *Selector) Select(ctx context.Context, candidates []*domain.Candidate, targetYear int) (*domain.Candidate, Tier) {
	ranked := rankCandidates(candidates)
	if len(ranked) == 0 {
		return nil, TierNone
	}

	if targetYear <= 0 {
		return ranked[0], TierTop
	}

	s.resolveYears(ctx, ranked)

	strategies := []struct {
		tier Tier
		pick func([]*domain.Candidate, int) *domain.Candidate
	}{
		{TierA, s.trySameYearStrong},
		{TierB, s.tryEarliestStrong},
		{TierC, s.tryKnownYearStrong},
		{TierD, s.trySameYearWeak},
		{TierE, s.tryHighest},
	}

	for _, strategy := range strategies {
		if best := strategy.pick(ranked, targetYear); best != nil {
			s.logger.Debug("Candidate selected",
				zap.String("tier", string(strategy.tier)),
				zap.String("title", best.Title),
				zap.Float64("score", best.Score),
				zap.Int("year", best.Year),
				zap.Int("target_year", targetYear),
			)
			return best, strategy.tier
		}
	}

	return nil, TierNone
}

func rankCandidates(candidates []*domain.Candidate) []*domain.Candidate {
	ranked := make([]*domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c != nil {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// resolveYears fills in years for the top K candidates, or for every
// candidate tied near the top when there are more of those than K.
func (s *Selector) resolveYears(ctx context.Context, ranked []*domain.Candidate) {
	limit := s.thresholds.YearLookupTopK
	tied := 0
	for _, c := range ranked {
		if c.Score >= s.thresholds.TiedTop {
			tied++
		}
	}
	if tied > limit {
		limit = tied
	}
	if limit > len(ranked) {
		limit = len(ranked)
	}

	for _, c := range ranked[:limit] {
		if c.YearKnown {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		key := c.Key()
		if year, ok := s.runCache.Year(key); ok {
			c.SetYear(year)
			continue
		}
		if s.years == nil {
			continue
		}

		year, err := s.years.ResolveYear(ctx, c)
		if err != nil {
			s.logger.Debug("Year lookup failed",
				zap.String("candidate", c.Title),
				zap.String("key", key),
				zap.Error(err),
			)
			year = 0
		}
		s.runCache.StoreYear(key, year)
		c.SetYear(year)
	}
}

// trySameYearStrong: strong score released in the target year.
func (s *Selector) trySameYearStrong(ranked []*domain.Candidate, target int) *domain.Candidate {
	for _, c := range ranked {
		if c.Score >= s.thresholds.Strong && c.YearKnown && c.Year == target {
			return c
		}
	}
	return nil
}

// tryEarliestStrong: strong score released before the target, earliest first.
func (s *Selector) tryEarliestStrong(ranked []*domain.Candidate, target int) *domain.Candidate {
	var best *domain.Candidate
	for _, c := range ranked {
		if c.Score < s.thresholds.Strong || !c.YearKnown || c.Year >= target {
			continue
		}
		if best == nil || c.Year < best.Year {
			best = c
		}
	}
	return best
}

// tryKnownYearStrong: strong score with a known year that is not beaten by any
// candidate whose year stayed unknown.
func (s *Selector) tryKnownYearStrong(ranked []*domain.Candidate, _ int) *domain.Candidate {
	bestUnknown := 0.0
	for _, c := range ranked {
		if !c.YearKnown && c.Score > bestUnknown {
			bestUnknown = c.Score
		}
	}
	for _, c := range ranked {
		if c.Score >= s.thresholds.Strong && c.YearKnown && c.Score >= bestUnknown {
			return c
		}
	}
	return nil
}

func (s *Selector) trySameYearWeak(ranked []*domain.Candidate, target int) *domain.Candidate {
	for _, c := range ranked {
		if c.Score >= s.thresholds.Weak && c.YearKnown && c.Year == target {
			return c
		}
	}
	return nil
}

// tryHighest is the fallback: the top-ranked candidate whatever its year.
func (s *Selector) tryHighest(ranked []*domain.Candidate, _ int) *domain.Candidate {
	return ranked[0]
}
