package extract

import (
	"bytes"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/pkg/errors"
)

// Extractor parses provider pages. Implementations are pure: the same bytes
// always give the same result.
type Extractor interface {
	Candidates(raw []byte) ([]*domain.Candidate, error)
	Detail(raw []byte) (*Detail, error)
	ReleaseYear(raw []byte) (int, error)
}

// Detail is everything a provider detail page yields for one game.
type Detail struct {
	Title       string
	Scores      map[string]float64
	Times       map[string]*domain.CompletionTime
	Stores      map[string]string
	ReleaseYear int
	ReleaseText string
	Unreleased  bool
}

func (d *Detail) HasMetrics() bool {
	return d != nil && (len(d.Scores) > 0 || len(d.Times) > 0)
}

var (
	monthDayYear = regexp.MustCompile(`(?:NA|EU|JP)?:?\s*[A-Z][a-z]+\.?\s+\d{1,2}(?:st|nd|rd|th)?,\s*((?:19|20)\d{2})`)
	bareYear     = regexp.MustCompile(`\b((?:19[7-9]|20[0-4])\d)\b`)
	spaces       = regexp.MustCompile(`\s+`)
)

// releaseLayouts are the date renderings seen on provider pages.
var releaseLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan. 2, 2006",
	"2 Jan 2006",
	"2006-01-02",
	"January 2006",
	"2006",
}

var ordinalSuffix = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)

func parseDocument(raw []byte, schema string) (*goquery.Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.NewExtractionError("empty document", schema)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		ee := errors.NewExtractionError("HTML parse failed", schema)
		ee.WithCause(err)
		return nil, ee
	}
	return doc, nil
}

func cleanText(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// parseReleaseDate understands the common date layouts and returns the zero
// time when nothing matches.
func parseReleaseDate(text string) time.Time {
	text = ordinalSuffix.ReplaceAllString(cleanText(text), "$1")
	for _, layout := range releaseLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return time.Time{}
}

// earliestYear returns the smallest plausible year on the page, preferring
// full dates over bare numbers.
func earliestYear(text string) int {
	for _, pattern := range []*regexp.Regexp{monthDayYear, bareYear} {
		matches := pattern.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		years := make([]int, 0, len(matches))
		for _, m := range matches {
			if y, err := strconv.Atoi(m[1]); err == nil {
				years = append(years, y)
			}
		}
		if len(years) > 0 {
			sort.Ints(years)
			return years[0]
		}
	}
	return 0
}

// unreleasedMarkers flag announced-but-not-released games.
var unreleasedMarkers = []string{"TBA", "Coming", "TBC", "Announced", "TBD"}

func looksUnreleased(releaseText string, released time.Time, now time.Time) bool {
	for _, m := range unreleasedMarkers {
		if strings.Contains(releaseText, m) {
			return true
		}
	}
	return !released.IsZero() && released.After(now)
}
