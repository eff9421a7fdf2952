package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/service/cache"
	"github.com/kapu/game-metadata-sync-go/internal/service/extract"
	"github.com/kapu/game-metadata-sync-go/internal/service/fetch"
	"github.com/kapu/game-metadata-sync-go/internal/service/matcher"
	"github.com/kapu/game-metadata-sync-go/internal/service/platform"
	"github.com/kapu/game-metadata-sync-go/internal/service/provider"
	"github.com/kapu/game-metadata-sync-go/internal/service/query"
	"github.com/kapu/game-metadata-sync-go/internal/util"
	"go.uber.org/zap"
)

// Doer runs fetch operations. *fetch.Controller implements it.
type Doer interface {
	Do(ctx context.Context, op fetch.Operation) fetch.Outcome
	Halted() bool
}

type Options struct {
	Thresholds  matcher.Thresholds
	AcceptScore float64
	// URLOverrides maps a title to a provider path that bypasses search.
	URLOverrides map[string]string
	// Skip lists titles that are never queried.
	Skip []string
	Now  func() time.Time
}

// Result is the outcome of resolving one catalog record.
type Result struct {
	Record  *domain.ResolvedRecord
	Class   domain.Classification
	Tier    matcher.Tier
	Variant domain.QueryVariant
	Skipped bool
}

// Resolver turns one catalog record into a ResolvedRecord for one provider.
type Resolver struct {
	provider  provider.Provider
	doer      Doer
	generator *query.Generator
	selector  *matcher.Selector
	runCache  *cache.RunCache
	accept    float64
	urls      map[string]string
	skip      map[string]struct{}
	now       func() time.Time
	logger    *zap.Logger

	// pages holds detail bodies fetched while resolving the current record,
	// so a year lookup and the final detail fetch share one request.
	pages map[string][]byte
}

func New(p provider.Provider, doer Doer, generator *query.Generator, runCache *cache.RunCache, opts Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runCache == nil {
		runCache = cache.NewRunCache()
	}
	if opts.AcceptScore <= 0 {
		opts.AcceptScore = constants.MatchThresholds.Accept
	}
	if opts.Now == nil {
		opts.Now = util.NowUTC
	}

	r := &Resolver{
		provider:  p,
		doer:      doer,
		generator: generator,
		runCache:  runCache,
		accept:    opts.AcceptScore,
		urls:      make(map[string]string, len(opts.URLOverrides)),
		skip:      make(map[string]struct{}, len(opts.Skip)),
		now:       opts.Now,
		logger:    logger.With(zap.String("provider", p.Name())),
		pages:     make(map[string][]byte),
	}
	for title, path := range opts.URLOverrides {
		r.urls[util.NormalizeKey(title)] = path
	}
	for _, title := range opts.Skip {
		r.skip[util.NormalizeKey(title)] = struct{}{}
	}
	r.selector = matcher.NewSelector(r, runCache, opts.Thresholds, logger)
	return r
}

// Resolve never returns an error: every failure becomes a classified Result
// whose record carries the matching note.
func (r *Resolver) Resolve(ctx context.Context, rec domain.CatalogRecord) Result {
	clear(r.pages)

	key := util.NormalizeKey(rec.Name)
	if _, ok := r.skip[key]; ok {
		r.logger.Debug("Skipping title by override", zap.String("name", rec.Name))
		return Result{Skipped: true}
	}

	target := platform.Resolve(rec.Platforms)
	year := rec.ReleaseYear()

	if res, ok := r.tryDirect(ctx, rec, target, key); ok {
		return res
	}

	variants := r.generator.Generate(rec.Name)
	best, tier, variant, class := r.search(ctx, rec, variants, year)

	if best == nil && (class == domain.ClassNotFound || class == domain.ClassAmbiguous) {
		if res, ok := r.trySlug(ctx, rec, target); ok {
			return res
		}
	}

	if best == nil {
		note := domain.NoteNotFound
		detail := "no search results"
		switch {
		case class == domain.ClassAmbiguous:
			note = domain.NoteAmbiguous
			detail = "no candidate scored above the acceptance threshold"
		case class != domain.ClassNotFound:
			note = domain.NoteFetchFailed
			detail = "search failed: " + class.String()
		}
		return Result{Record: r.noteRecord(rec, target, note, detail), Class: class}
	}

	res := r.resolveDetail(ctx, rec, target, best, r.provider.DetailURL(best.Link))
	res.Tier = tier
	res.Variant = variant
	if res.Record != nil && variant.Provenance != "" && variant.Provenance != query.ProvOriginal && res.Record.NoteDetail == "" {
		res.Record.NoteDetail = "matched via " + variant.Provenance
	}
	return res
}

// ResolveYear implements matcher.YearResolver by fetching the candidate's
// detail page.
func (r *Resolver) ResolveYear(ctx context.Context, c *domain.Candidate) (int, error) {
	url := r.provider.DetailURL(c.Link)
	body, outcome := r.page(ctx, fetch.OpYear, url)
	if body == nil {
		return 0, outcome.Err
	}
	return r.provider.Extractor().ReleaseYear(body)
}

// tryDirect fetches a known page for the record: a configured URL override
// first, then the previously resolved external id.
func (r *Resolver) tryDirect(ctx context.Context, rec domain.CatalogRecord, target, key string) (Result, bool) {
	var url string
	if path, ok := r.urls[key]; ok {
		url = r.provider.DetailURL(path)
	} else if rec.ExternalID != "" {
		url = r.provider.RefreshURL(rec.ExternalID)
	}
	if url == "" {
		return Result{}, false
	}

	cand := &domain.Candidate{ID: rec.ExternalID, Link: url, Title: rec.Name, Score: 1}
	res := r.resolveDetail(ctx, rec, target, cand, url)
	if res.Class == domain.ClassNotFound {
		r.logger.Info("Direct page missing, falling back to search",
			zap.String("name", rec.Name),
			zap.String("url", url),
		)
		return Result{}, false
	}
	return res, true
}

// trySlug requests the provider's predictable slug URL and accepts it only
// when the page title matches the record.
func (r *Resolver) trySlug(ctx context.Context, rec domain.CatalogRecord, target string) (Result, bool) {
	url := r.provider.DirectURL(rec.Name)
	if url == "" {
		return Result{}, false
	}

	body, _ := r.page(ctx, fetch.OpDetail, url)
	if body == nil {
		return Result{}, false
	}
	d, err := r.provider.Extractor().Detail(body)
	if err != nil {
		return Result{}, false
	}
	score := matcher.BestOf([]string{rec.Name}, d.Title)
	if score < r.accept {
		r.logger.Debug("Slug page title does not match",
			zap.String("name", rec.Name),
			zap.String("page_title", d.Title),
			zap.Float64("score", score),
		)
		return Result{}, false
	}

	cand := &domain.Candidate{ID: provider.Slug(rec.Name), Link: url, Title: d.Title, Score: score}
	res := r.buildFromDetail(ctx, rec, target, cand, url, d)
	res.Record.NoteDetail = "matched via slug"
	return res, true
}

// search walks the variants in order and stops at the first one whose best
// candidate clears the acceptance score.
func (r *Resolver) search(ctx context.Context, rec domain.CatalogRecord, variants []domain.QueryVariant, year int) (*domain.Candidate, matcher.Tier, domain.QueryVariant, domain.Classification) {
	var (
		sawCandidates bool
		lastFailure   domain.Classification
	)

	for _, v := range variants {
		if ctx.Err() != nil {
			return nil, matcher.TierNone, domain.QueryVariant{}, domain.ClassNetworkError
		}
		if r.doer.Halted() {
			return nil, matcher.TierNone, domain.QueryVariant{}, domain.ClassBlocked
		}

		candidates, class := r.candidates(ctx, v.Query)
		if class != domain.ClassSuccess {
			lastFailure = class
			continue
		}
		if len(candidates) == 0 {
			continue
		}
		sawCandidates = true

		for _, c := range candidates {
			c.Query = v.Query
			c.Score = matcher.BestOf(scoringTitles(rec.Name, v), c.Title)
		}

		best, tier := r.selector.Select(ctx, candidates, year)
		if best == nil {
			continue
		}

		r.logger.Debug("Variant evaluated",
			zap.String("name", rec.Name),
			zap.String("query", v.Query),
			zap.String("provenance", v.Provenance),
			zap.String("best", best.Title),
			zap.Float64("score", best.Score),
			zap.String("tier", string(tier)),
		)

		if best.Score >= r.accept {
			return best, tier, v, domain.ClassSuccess
		}
	}

	switch {
	case sawCandidates:
		return nil, matcher.TierNone, domain.QueryVariant{}, domain.ClassAmbiguous
	case lastFailure != "" && lastFailure != domain.ClassNotFound:
		return nil, matcher.TierNone, domain.QueryVariant{}, lastFailure
	default:
		return nil, matcher.TierNone, domain.QueryVariant{}, domain.ClassNotFound
	}
}

// scoringTitles lists the titles a candidate is compared against. Shortened
// variants only widen the search; scoring against them would accept any
// candidate that happens to equal the shorter title.
func scoringTitles(name string, v domain.QueryVariant) []string {
	switch v.Provenance {
	case query.ProvLeadingWords, query.ProvSubtitleTruncated, query.ProvAmpersandClause:
		return []string{name}
	}
	return []string{name, v.Query}
}

// candidates runs one search, memoized per run by normalized query.
func (r *Resolver) candidates(ctx context.Context, q string) ([]*domain.Candidate, domain.Classification) {
	if cached, ok := r.runCache.Search(q); ok {
		return cached, domain.ClassSuccess
	}

	outcome := r.doer.Do(ctx, fetch.Operation{Kind: fetch.OpSearch, URL: r.provider.SearchURL(q)})
	switch {
	case outcome.Class == domain.ClassNotFound:
		r.runCache.StoreSearch(q, nil)
		return nil, domain.ClassSuccess
	case !outcome.OK():
		r.logger.Warn("Search failed",
			zap.String("query", q),
			zap.String("class", outcome.Class.String()),
			zap.Error(outcome.Err),
		)
		return nil, outcome.Class
	}

	found, err := r.provider.Extractor().Candidates(outcome.Response.Body)
	if err != nil {
		r.logger.Warn("Search page unreadable", zap.String("query", q), zap.Error(err))
		return nil, domain.ClassMalformedContent
	}

	r.runCache.StoreSearch(q, found)
	return found, domain.ClassSuccess
}

func (r *Resolver) resolveDetail(ctx context.Context, rec domain.CatalogRecord, target string, cand *domain.Candidate, url string) Result {
	body, outcome := r.page(ctx, fetch.OpDetail, url)
	if body == nil {
		note := domain.NoteFetchFailed
		if outcome.Class == domain.ClassNotFound {
			note = domain.NoteNotFound
		}
		return Result{
			Record: r.noteRecord(rec, target, note, "detail page: "+outcome.Class.String()),
			Class:  outcome.Class,
		}
	}

	d, err := r.provider.Extractor().Detail(body)
	if err != nil {
		r.logger.Warn("Detail page unreadable", zap.String("url", url), zap.Error(err))
		return Result{
			Record: r.noteRecord(rec, target, domain.NoteFetchFailed, "detail page: malformed content"),
			Class:  domain.ClassMalformedContent,
		}
	}

	return r.buildFromDetail(ctx, rec, target, cand, url, d)
}

func (r *Resolver) buildFromDetail(ctx context.Context, rec domain.CatalogRecord, target string, cand *domain.Candidate, url string, d *extract.Detail) Result {
	out := r.baseRecord(rec, target)
	out.ExternalID = cand.ID
	out.URL = url
	out.MatchedTitle = d.Title
	out.MatchScore = cand.Score
	out.ReleaseYear = firstNonZero(d.ReleaseYear, cand.Year, rec.ReleaseYear())

	if !d.HasMetrics() && !d.Unreleased {
		if prev, ok := r.previousGeneration(ctx, target, cand.ID); ok {
			d = prev.detail
			out.URL = prev.url
			out.NoteDetail = "scores for " + prev.platform
		}
	}

	applyDetail(out, d)

	switch {
	case d.HasMetrics():
	case d.Unreleased:
		out.Note = domain.NoteUnreleased
		out.NoteDetail = d.ReleaseText
	default:
		out.Note = domain.NoteNoScore
		out.NoteDetail = "page exists without scores"
	}

	r.logger.Info("Resolved",
		zap.String("name", rec.Name),
		zap.String("matched", d.Title),
		zap.Float64("score", cand.Score),
		zap.String("platform", target),
		zap.String("note", out.Note.String()),
	)

	return Result{Record: out, Class: domain.ClassSuccess}
}

type generationFallback struct {
	detail   *extract.Detail
	url      string
	platform string
}

// previousGeneration retries a score-less page on the prior console generation.
func (r *Resolver) previousGeneration(ctx context.Context, target, externalID string) (generationFallback, bool) {
	prev, ok := platform.PreviousGeneration(target)
	if !ok || externalID == "" {
		return generationFallback{}, false
	}
	url := r.provider.PlatformURL(externalID, platform.Slug(prev))
	if url == "" {
		return generationFallback{}, false
	}

	body, _ := r.page(ctx, fetch.OpPlatform, url)
	if body == nil {
		return generationFallback{}, false
	}
	d, err := r.provider.Extractor().Detail(body)
	if err != nil || !d.HasMetrics() {
		return generationFallback{}, false
	}

	r.logger.Info("Using previous generation scores",
		zap.String("platform", target),
		zap.String("fallback", prev),
	)
	return generationFallback{detail: d, url: url, platform: prev}, true
}

// page fetches a document once per record. A nil body means the fetch did not succeed.
func (r *Resolver) page(ctx context.Context, kind fetch.OpKind, url string) ([]byte, fetch.Outcome) {
	if body, ok := r.pages[url]; ok {
		return body, fetch.Outcome{Class: domain.ClassSuccess}
	}

	outcome := r.doer.Do(ctx, fetch.Operation{Kind: kind, URL: url})
	if !outcome.OK() {
		if outcome.Err == nil {
			outcome.Err = fmt.Errorf("%s fetch %s: %s", kind, url, outcome.Class)
		}
		return nil, outcome
	}
	r.pages[url] = outcome.Response.Body
	return outcome.Response.Body, outcome
}

func (r *Resolver) baseRecord(rec domain.CatalogRecord, target string) *domain.ResolvedRecord {
	return &domain.ResolvedRecord{
		Name:        rec.Name,
		ExternalID:  rec.ExternalID,
		Timestamp:   r.now(),
		Platform:    target,
		ReleaseYear: rec.ReleaseYear(),
	}
}

func (r *Resolver) noteRecord(rec domain.CatalogRecord, target string, note domain.Note, detail string) *domain.ResolvedRecord {
	out := r.baseRecord(rec, target)
	out.Note = note
	out.NoteDetail = detail
	return out
}

func applyDetail(out *domain.ResolvedRecord, d *extract.Detail) {
	for metric, v := range d.Scores {
		out.SetScore(metric, v)
	}
	for category, t := range d.Times {
		out.SetTime(category, t)
	}
	if len(d.Stores) > 0 {
		out.Stores = make(map[string]string, len(d.Stores))
		for k, v := range d.Stores {
			out.Stores[k] = v
		}
	}
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
