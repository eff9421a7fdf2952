package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/pkg/errors"
)

const criticSchema = "critic"

var (
	criticTitleSelectors = "div.c-productHero_title h1, h1.c-productHero_title, div.product_title h1, h1"

	metascoreSelectors = []string{
		"div.c-productHero_scoreInfo div.c-siteReviewScore_background-critic_medium span",
		"div.c-productHero_metascoreNumber, span.c-productHero_metascoreNumber",
		"div.c-productScoreInfo span.c-metascore, div.c-productScoreInfo div.c-metascore",
		"span.c-metascore, div.c-metascore",
		`div[class*="metascore"] span, span[class*="metascore"]`,
		"div.metascore_w.game span, div.metascore_w.xlarge span, div.metascore_w.large span",
	}

	userscoreSelectors = []string{
		"div.c-productHero_scoreInfo div.c-siteReviewScore_background-user span",
		"div.c-productHero_userscoreNumber, span.c-productHero_userscoreNumber",
		"div.c-productScoreInfo span.c-userscore, div.c-productScoreInfo div.c-userscore",
		"span.c-userscore, div.c-userscore",
		`div[class*="userscore"] span, span[class*="userscore"]`,
		"div.metascore_w.user.large.game, div.userscore_wrap div.metascore_w",
	}

	releaseSelectors = []string{
		`div.c-gameDetails_ReleaseDate span.g-outer-spacing-left-medium-fluid`,
		`div[class*="releaseDate"] span:last-child`,
		`div[class*="releaseDate"], span[class*="releaseDate"]`,
		"li.summary_detail.release_data span.data, li.summary_detail.release_data div.data",
		"div.release_data",
	}

	releaseTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`Released On:\s*([A-Za-z]{3,9}\.? \d{1,2}, \d{4}|TBA|TBC|Coming Soon|Announced)`),
		regexp.MustCompile(`Release Date:\s*([A-Za-z]{3,9}\.? \d{1,2}, \d{4}|TBA|TBC|Coming Soon|Announced)`),
	}

	criticSearchItems = `a[href^="/game/"]`
	twoOrThreeDigits  = regexp.MustCompile(`\b(\d{2,3})\b`)
	decimalScore      = regexp.MustCompile(`\b(\d{1,2}\.\d)\b`)
	nonNumeric        = regexp.MustCompile(`[^\d.]`)
)

// Metacritic parses critic-source search and detail pages.
type Metacritic struct {
	now func() time.Time
}

func NewMetacritic(now func() time.Time) *Metacritic {
	if now == nil {
		now = time.Now
	}
	return &Metacritic{now: now}
}

func (m *Metacritic) Candidates(raw []byte) ([]*domain.Candidate, error) {
	doc, err := parseDocument(raw, criticSchema)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]*domain.Candidate)
	var out []*domain.Candidate

	doc.Find(criticSearchItems).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		slug := gameSlug(href)
		if slug == "" {
			return
		}

		title := cleanText(sel.Find(`[data-testid="product-title"], p[class*="title"], h3`).First().Text())
		if title == "" {
			title = cleanText(sel.AttrOr("title", ""))
		}
		if title == "" {
			title = cleanText(sel.Text())
		}

		if existing, ok := seen[slug]; ok {
			if existing.Title == "" {
				existing.Title = title
			}
			return
		}

		cand := &domain.Candidate{ID: slug, Link: "/game/" + slug + "/", Title: title}
		if y := earliestYear(cleanText(sel.Find(`[class*="date"], [class*="Date"], span.u-text-uppercase`).Text())); y > 0 {
			cand.SetYear(y)
		}
		seen[slug] = cand
		out = append(out, cand)
	})

	filtered := out[:0]
	for _, c := range out {
		if c.Title != "" {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (m *Metacritic) Detail(raw []byte) (*Detail, error) {
	doc, err := parseDocument(raw, criticSchema)
	if err != nil {
		return nil, err
	}

	d := &Detail{Title: cleanText(doc.Find(criticTitleSelectors).First().Text())}
	if d.Title == "" {
		return nil, errors.NewExtractionError("missing product title", criticSchema, "title")
	}

	if score, ok := firstScore(doc, metascoreSelectors, parseMetascore); ok {
		d.setScore(domain.MetricMetascore, score)
	}
	if score, ok := firstScore(doc, userscoreSelectors, parseUserscore); ok {
		d.setScore(domain.MetricUserscore, score)
	}
	if len(d.Scores) < 2 {
		m.scanScoreBlocks(doc, d)
	}

	d.ReleaseText = releaseText(doc)
	released := parseReleaseDate(d.ReleaseText)
	if !released.IsZero() {
		d.ReleaseYear = released.Year()
	} else {
		d.ReleaseYear = earliestYear(d.ReleaseText)
	}
	d.Unreleased = !d.HasMetrics() && looksUnreleased(d.ReleaseText, released, m.now())

	return d, nil
}

func (m *Metacritic) ReleaseYear(raw []byte) (int, error) {
	doc, err := parseDocument(raw, criticSchema)
	if err != nil {
		return 0, err
	}

	text := releaseText(doc)
	if t := parseReleaseDate(text); !t.IsZero() {
		return t.Year(), nil
	}
	if y := earliestYear(text); y > 0 {
		return y, nil
	}
	if y := earliestYear(cleanText(doc.Find("div.c-gameDetails, div.c-productHero").Text())); y > 0 {
		return y, nil
	}
	return 0, nil
}

// scanScoreBlocks is the fallback for layouts where the score elements carry
// no stable class: it reads numbers out of blocks labelled with the metric.
func (m *Metacritic) scanScoreBlocks(doc *goquery.Document, d *Detail) {
	doc.Find(`div[class*="score"], div[class*="Score"]`).Each(func(_ int, block *goquery.Selection) {
		text := cleanText(block.Text())

		if _, ok := d.Scores[domain.MetricMetascore]; !ok && strings.Contains(text, "Metascore") {
			for _, match := range twoOrThreeDigits.FindAllString(text, -1) {
				if v, err := strconv.Atoi(match); err == nil && v <= 100 {
					d.setScore(domain.MetricMetascore, float64(v))
					break
				}
			}
		}

		if _, ok := d.Scores[domain.MetricUserscore]; !ok && strings.Contains(text, "User Score") {
			if match := decimalScore.FindString(text); match != "" {
				if v, err := strconv.ParseFloat(match, 64); err == nil && v <= 10 {
					d.setScore(domain.MetricUserscore, v)
				}
			}
		}
	})
}

func (d *Detail) setScore(metric string, v float64) {
	if d.Scores == nil {
		d.Scores = make(map[string]float64)
	}
	d.Scores[metric] = v
}

func firstScore(doc *goquery.Document, selectors []string, parse func(string) (float64, bool)) (float64, bool) {
	for _, selector := range selectors {
		var (
			value float64
			found bool
		)
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			value, found = parse(cleanText(sel.Text()))
			return !found
		})
		if found {
			return value, true
		}
	}
	return 0, false
}

// parseMetascore reads a 0-100 critic score. Decimal renderings such as "8.9"
// are scaled to 89 and out-of-range values are clamped.
func parseMetascore(text string) (float64, bool) {
	if text == "" || strings.EqualFold(text, "tbd") {
		return 0, false
	}

	cleaned := nonNumeric.ReplaceAllString(text, "")
	if cleaned == "" || cleaned == "." {
		return 0, false
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if strings.Contains(cleaned, ".") {
		v = float64(int(v * 10))
	}
	switch {
	case v < 10:
		v *= 10
	case v > 100:
		v = 100
	}
	return v, true
}

func parseUserscore(text string) (float64, bool) {
	if text == "" || strings.EqualFold(text, "tbd") {
		return 0, false
	}

	cleaned := nonNumeric.ReplaceAllString(text, "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 || v > 10 {
		return 0, false
	}
	return v, true
}

func releaseText(doc *goquery.Document) string {
	pageText := cleanText(doc.Text())
	for _, pattern := range releaseTextPatterns {
		if m := pattern.FindStringSubmatch(pageText); m != nil {
			return m[1]
		}
	}

	for _, selector := range releaseSelectors {
		if text := cleanText(doc.Find(selector).First().Text()); text != "" {
			return strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, "Released On:"), "Release Date:"))
		}
	}
	return ""
}

// gameSlug extracts "slug" from "/game/slug/" and its sub-pages.
func gameSlug(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	parts := strings.Split(strings.Trim(href, "/"), "/")
	if len(parts) < 2 || parts[0] != "game" {
		return ""
	}
	return parts[1]
}
