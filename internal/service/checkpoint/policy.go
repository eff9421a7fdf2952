package checkpoint

import (
	"time"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
)

// Windows are the recheck intervals. Zero fields take the defaults.
type Windows struct {
	Refresh          time.Duration
	Settled          time.Duration
	Unreleased       time.Duration
	NoScore          time.Duration
	NotFoundMaxCheck int
	NotFoundBackoff  []time.Duration
}

func DefaultWindows() Windows {
	return Windows{
		Refresh:          constants.RecheckWindows.Refresh,
		Settled:          constants.RecheckWindows.Settled,
		Unreleased:       constants.RecheckWindows.Unreleased,
		NoScore:          constants.RecheckWindows.NoScore,
		NotFoundMaxCheck: constants.RecheckWindows.NotFoundMaxCheck,
		NotFoundBackoff:  constants.RecheckWindows.NotFoundBackoff,
	}
}

func (w Windows) withDefaults() Windows {
	def := DefaultWindows()
	if w.Refresh <= 0 {
		w.Refresh = def.Refresh
	}
	if w.Settled <= 0 {
		w.Settled = def.Settled
	}
	if w.Unreleased <= 0 {
		w.Unreleased = def.Unreleased
	}
	if w.NoScore <= 0 {
		w.NoScore = def.NoScore
	}
	if w.NotFoundMaxCheck <= 0 {
		w.NotFoundMaxCheck = def.NotFoundMaxCheck
	}
	if len(w.NotFoundBackoff) == 0 {
		w.NotFoundBackoff = def.NotFoundBackoff
	}
	return w
}

// Reasons reported by Evaluate.
const (
	ReasonNew             = "new"
	ReasonFirstPass       = "first pass"
	ReasonNoMoreUpdates   = "no more updates"
	ReasonSettled         = "settled"
	ReasonFresh           = "recently refreshed"
	ReasonStale           = "refresh due"
	ReasonUnreleasedWait  = "unreleased, checked recently"
	ReasonUnreleasedDue   = "unreleased, recheck due"
	ReasonMissBackoff     = "not found, backing off"
	ReasonMissDue         = "not found, recheck due"
	ReasonMissExhausted   = "not found, checks exhausted"
	ReasonNoScoreWait     = "no score, checked recently"
	ReasonNoScoreDue      = "no score, recheck due"
	ReasonRetryFetch      = "previous fetch failed"
	ReasonUnknownPrevious = "no usable previous result"
)

// Decision says whether a record should be fetched this pass.
type Decision struct {
	Process bool
	Reason  string
	// MarkNoMoreUpdates asks the caller to persist the no_more_updates flag
	// on the previous record even though it is skipped.
	MarkNoMoreUpdates bool
}

// Policy decides which records to re-fetch and carries bookkeeping forward.
type Policy struct {
	windows Windows
}

func NewPolicy(w Windows) *Policy {
	return &Policy{windows: w.withDefaults()}
}

func (p *Policy) Windows() Windows {
	return p.windows
}

// Evaluate is pure: it reads prev and rec and never mutates them.
func (p *Policy) Evaluate(prev *domain.ResolvedRecord, rec domain.CatalogRecord, now time.Time, fullCycleComplete bool) Decision {
	if prev == nil {
		return Decision{Process: true, Reason: ReasonNew}
	}
	if prev.NoMoreUpdates {
		return Decision{Reason: ReasonNoMoreUpdates}
	}
	if !fullCycleComplete {
		return Decision{Process: true, Reason: ReasonFirstPass}
	}

	w := p.windows
	sinceChecked := now.Sub(prev.Timestamp)

	switch {
	case prev.HasScores():
		if rec.ReleaseDate != nil && now.Sub(*rec.ReleaseDate) >= w.Settled {
			return Decision{Reason: ReasonSettled, MarkNoMoreUpdates: true}
		}
		if sinceChecked < w.Refresh {
			return Decision{Reason: ReasonFresh}
		}
		return Decision{Process: true, Reason: ReasonStale}

	case prev.Note == domain.NoteUnreleased:
		if sinceChecked < w.Unreleased {
			return Decision{Reason: ReasonUnreleasedWait}
		}
		return Decision{Process: true, Reason: ReasonUnreleasedDue}

	case prev.Note.CountsAsMiss():
		if prev.CheckCount >= w.NotFoundMaxCheck {
			return Decision{Reason: ReasonMissExhausted, MarkNoMoreUpdates: true}
		}
		first := prev.Timestamp
		if prev.FirstUpdated != nil {
			first = *prev.FirstUpdated
		}
		if now.Sub(first) >= p.backoff(prev.CheckCount) {
			return Decision{Process: true, Reason: ReasonMissDue}
		}
		return Decision{Reason: ReasonMissBackoff}

	case prev.Note == domain.NoteNoScore:
		if sinceChecked < w.NoScore {
			return Decision{Reason: ReasonNoScoreWait}
		}
		return Decision{Process: true, Reason: ReasonNoScoreDue}

	case prev.Note == domain.NoteFetchFailed:
		return Decision{Process: true, Reason: ReasonRetryFetch}
	}

	return Decision{Process: true, Reason: ReasonUnknownPrevious}
}

func (p *Policy) backoff(checkCount int) time.Duration {
	table := p.windows.NotFoundBackoff
	if checkCount < 0 {
		checkCount = 0
	}
	if checkCount >= len(table) {
		return table[len(table)-1]
	}
	return table[checkCount]
}

// Apply merges a fresh result with the previous record for the same game and
// returns the record to persist. Neither input is modified.
func (p *Policy) Apply(prev, result *domain.ResolvedRecord, now time.Time) *domain.ResolvedRecord {
	if result == nil {
		return prev.Clone()
	}

	first := now
	if prev != nil && prev.FirstUpdated != nil {
		first = *prev.FirstUpdated
	}

	switch {
	case result.Note == domain.NoteFetchFailed:
		// A failed fetch says nothing about the game; keep what we had.
		if prev != nil {
			return prev.Clone()
		}
		out := result.Clone()
		out.FirstUpdated = &first
		return out

	case result.Note.CountsAsMiss():
		if prev.HasScores() {
			out := prev.Clone()
			out.Timestamp = now
			out.NoteDetail = "last refresh: " + result.Note.String()
			return out
		}
		out := result.Clone()
		out.FirstUpdated = &first
		if prev != nil {
			out.CheckCount = prev.CheckCount
		}
		out.CheckCount++
		if out.CheckCount >= p.windows.NotFoundMaxCheck {
			out.NoMoreUpdates = true
		}
		return out
	}

	out := result.Clone()
	out.FirstUpdated = &first
	out.CheckCount = 0
	out.NoMoreUpdates = false
	return out
}

// MarkSettled returns a copy of prev flagged so it is never fetched again.
func MarkSettled(prev *domain.ResolvedRecord) *domain.ResolvedRecord {
	out := prev.Clone()
	if out != nil {
		out.NoMoreUpdates = true
	}
	return out
}
