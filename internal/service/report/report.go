package report

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/store"
)

// Stats counts the records of one checkpoint document.
type Stats struct {
	Key           store.Key
	Total         int
	WithMetascore int
	WithUserscore int
	WithTimes     int
	Unreleased    int
	NoScore       int
	NotFound      int
	Ambiguous     int
	FetchFailed   int
	Settled       int
	NextIndex     int
	FullCycle     bool
	LastUpdated   time.Time
}

func Compute(key store.Key, cp *domain.Checkpoint) Stats {
	s := Stats{Key: key}
	if cp == nil {
		return s
	}
	s.NextIndex = cp.LastProcessedIndex
	s.FullCycle = cp.FullCycleComplete
	s.LastUpdated = cp.LastUpdated

	for _, rec := range cp.Games {
		if rec == nil {
			continue
		}
		s.Total++
		if _, ok := rec.Score(domain.MetricMetascore); ok {
			s.WithMetascore++
		}
		if _, ok := rec.Score(domain.MetricUserscore); ok {
			s.WithUserscore++
		}
		if len(rec.Times) > 0 {
			s.WithTimes++
		}
		switch rec.Note {
		case domain.NoteUnreleased:
			s.Unreleased++
		case domain.NoteNoScore:
			s.NoScore++
		case domain.NoteNotFound:
			s.NotFound++
		case domain.NoteAmbiguous:
			s.Ambiguous++
		case domain.NoteFetchFailed:
			s.FetchFailed++
		}
		if rec.NoMoreUpdates && rec.HasScores() {
			s.Settled++
		}
	}
	return s
}

var columns = []string{
	"checkpoint", "total", "metascore", "userscore", "times",
	"unreleased", "no score", "not found", "ambiguous", "fetch failed",
	"settled", "next index", "full cycle", "last updated",
}

// Render prints one row per document as a rounded table.
func Render(stats []Stats) string {
	title := cases.Title(language.Und)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = title.String(c)
	}
	tw.AppendHeader(header)

	for _, s := range stats {
		updated := "-"
		if !s.LastUpdated.IsZero() {
			updated = s.LastUpdated.UTC().Format("2006-01-02 15:04")
		}
		tw.AppendRow(table.Row{
			s.Key.String(),
			s.Total,
			s.WithMetascore,
			s.WithUserscore,
			s.WithTimes,
			s.Unreleased,
			s.NoScore,
			s.NotFound,
			s.Ambiguous,
			s.FetchFailed,
			s.Settled,
			s.NextIndex,
			strconv.FormatBool(s.FullCycle),
			updated,
		})
	}

	configs := make([]table.ColumnConfig, 0, len(columns))
	for i := range columns {
		align := text.AlignRight
		if i == 0 || i >= len(columns)-2 {
			align = text.AlignLeft
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
