package domain

import "time"

type Note string

const (
	NoteNone        Note = ""
	NoteUnreleased  Note = "unreleased"
	NoteNoScore     Note = "no_score"
	NoteNotFound    Note = "not_found"
	NoteAmbiguous   Note = "ambiguous"
	NoteFetchFailed Note = "fetch_failed"
)

func (n Note) String() string {
	return string(n)
}

// CountsAsMiss reports whether the note consumes the bounded not-found recheck budget.
func (n Note) CountsAsMiss() bool {
	return n == NoteNotFound || n == NoteAmbiguous
}

// Metric names used in ResolvedRecord.Scores.
const (
	MetricMetascore = "metascore"
	MetricUserscore = "userscore"
)

// Completion categories used in ResolvedRecord.Times.
const (
	CategoryMainStory     = "ms"
	CategoryMainExtras    = "mpe"
	CategoryCompletionist = "comp"
	CategoryCoop          = "coop"
	CategoryVersus        = "vs"
)

// CompletionTime is one completion category in hours, rounded to the nearest half hour.
type CompletionTime struct {
	Hours   float64 `json:"t"`
	Polled  int     `json:"p,omitempty"`
	Rushed  float64 `json:"r,omitempty"`
	Leisure float64 `json:"l,omitempty"`
}

// ResolvedRecord is the persisted outcome of resolving one catalog record against a provider.
type ResolvedRecord struct {
	Name          string                     `json:"name"`
	ExternalID    string                     `json:"external_id,omitempty"`
	Scores        map[string]float64         `json:"scores,omitempty"`
	Times         map[string]*CompletionTime `json:"times,omitempty"`
	Stores        map[string]string          `json:"stores,omitempty"`
	URL           string                     `json:"url,omitempty"`
	Timestamp     time.Time                  `json:"timestamp"`
	Platform      string                     `json:"platform,omitempty"`
	ReleaseYear   int                        `json:"release_year,omitempty"`
	MatchedTitle  string                     `json:"matched_title,omitempty"`
	MatchScore    float64                    `json:"match_score,omitempty"`
	Note          Note                       `json:"note,omitempty"`
	NoteDetail    string                     `json:"note_detail,omitempty"`
	FirstUpdated  *time.Time                 `json:"first_updated,omitempty"`
	NoMoreUpdates bool                       `json:"no_more_updates,omitempty"`
	CheckCount    int                        `json:"check_count,omitempty"`
}

// HasScores reports whether any metric was resolved.
func (r *ResolvedRecord) HasScores() bool {
	if r == nil {
		return false
	}
	return len(r.Scores) > 0 || len(r.Times) > 0
}

func (r *ResolvedRecord) Score(metric string) (float64, bool) {
	if r == nil || r.Scores == nil {
		return 0, false
	}
	v, ok := r.Scores[metric]
	return v, ok
}

func (r *ResolvedRecord) SetScore(metric string, value float64) {
	if r.Scores == nil {
		r.Scores = make(map[string]float64)
	}
	r.Scores[metric] = value
}

func (r *ResolvedRecord) SetTime(category string, t *CompletionTime) {
	if t == nil {
		return
	}
	if r.Times == nil {
		r.Times = make(map[string]*CompletionTime)
	}
	r.Times[category] = t
}

// Clone returns a deep copy so policy code can mutate bookkeeping without aliasing the stored record.
func (r *ResolvedRecord) Clone() *ResolvedRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Scores != nil {
		out.Scores = make(map[string]float64, len(r.Scores))
		for k, v := range r.Scores {
			out.Scores[k] = v
		}
	}
	if r.Times != nil {
		out.Times = make(map[string]*CompletionTime, len(r.Times))
		for k, v := range r.Times {
			if v == nil {
				continue
			}
			t := *v
			out.Times[k] = &t
		}
	}
	if r.Stores != nil {
		out.Stores = make(map[string]string, len(r.Stores))
		for k, v := range r.Stores {
			out.Stores[k] = v
		}
	}
	if r.FirstUpdated != nil {
		t := *r.FirstUpdated
		out.FirstUpdated = &t
	}
	return &out
}
