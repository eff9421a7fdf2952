package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/pkg/errors"
)

const completionSchema = "completion"

// rowCategories maps table row labels to completion categories.
var rowCategories = []struct {
	label    string
	category string
	single   bool
}{
	{"Main Story", domain.CategoryMainStory, true},
	{"Main + Extras", domain.CategoryMainExtras, true},
	{"Completionist", domain.CategoryCompletionist, true},
	{"Co-Op", domain.CategoryCoop, false},
	{"Competitive", domain.CategoryVersus, false},
}

// summaryCategories maps the header stat blocks, used when no table is present.
var summaryCategories = map[string]string{
	"Main Story":    domain.CategoryMainStory,
	"Single-Player": domain.CategoryMainStory,
	"Main + Extras": domain.CategoryMainExtras,
	"Main + Sides":  domain.CategoryMainExtras,
	"Completionist": domain.CategoryCompletionist,
	"Co-Op":         domain.CategoryCoop,
	"Vs.":           domain.CategoryVersus,
}

var storeSelectors = []struct {
	name     string
	selector string
}{
	{"steam", `a[href*="store.steampowered.com"]`},
	{"epic", `a[href*="epicgames.com"]`},
	{"gog", `a[href*="gog.com"]`},
	{"humble", `a[href*="humblebundle.com"]`},
	{"itch", `a[href*="itch.io"]`},
	{"origin", `a[href*="origin.com"]`},
	{"uplay", `a[href*="uplay.com"]`},
	{"battlenet", `a[href*="battle.net"]`},
	{"psn", `a[href*="playstation.com"]`},
	{"xbox", `a[href*="xbox.com"]`},
	{"nintendo", `a[href*="nintendo.com"]`},
}

// HLTB parses completion-source search and detail pages.
type HLTB struct{}

func NewHLTB() *HLTB {
	return &HLTB{}
}

func (h *HLTB) Candidates(raw []byte) ([]*domain.Candidate, error) {
	doc, err := parseDocument(raw, completionSchema)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]*domain.Candidate)
	var out []*domain.Candidate

	doc.Find(`a[href^="/game/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		id := gameSlug(href)
		if id == "" {
			return
		}

		title := cleanText(sel.AttrOr("title", ""))
		if title == "" {
			title = cleanText(sel.Text())
		}

		if existing, ok := seen[id]; ok {
			if existing.Title == "" {
				existing.Title = title
			}
			return
		}

		cand := &domain.Candidate{ID: id, Link: "/game/" + id, Title: title}
		seen[id] = cand
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

func (h *HLTB) Detail(raw []byte) (*Detail, error) {
	doc, err := parseDocument(raw, completionSchema)
	if err != nil {
		return nil, err
	}

	d := &Detail{
		Title: cleanText(doc.Find(`div[class*="GameHeader_profile_header"], h1`).First().Text()),
	}
	if d.Title == "" {
		return nil, errors.NewExtractionError("missing game title", completionSchema, "title")
	}

	h.readTables(doc, d)
	if len(d.Times) == 0 {
		h.readSummary(doc, d)
	}
	d.Stores = storeLinks(doc)
	d.ReleaseYear = earliestYear(cleanText(doc.Find(`div[class*="GameSummary"], div[class*="profile_info"]`).Text()))

	return d, nil
}

func (h *HLTB) ReleaseYear(raw []byte) (int, error) {
	doc, err := parseDocument(raw, completionSchema)
	if err != nil {
		return 0, err
	}

	if y := earliestYear(cleanText(doc.Find(`div[class*="GameSummary"], div[class*="profile_info"]`).Text())); y > 0 {
		return y, nil
	}
	return earliestYear(cleanText(doc.Find("body").Text())), nil
}

// readTables parses rows shaped as: label, polled, average, median, rushed, leisure.
func (h *HLTB) readTables(doc *goquery.Document, d *Detail) {
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		label := cleanText(cells.First().Text())
		for _, rc := range rowCategories {
			if !strings.HasPrefix(label, rc.label) {
				continue
			}
			if _, done := d.Times[rc.category]; done {
				return
			}
			if t := parseRow(cells); t != nil {
				setTime(d, rc.category, t)
			}
			return
		}
	})
}

func parseRow(cells *goquery.Selection) *domain.CompletionTime {
	texts := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		texts = append(texts, cleanText(c.Text()))
	})

	t := &domain.CompletionTime{}
	if polled, ok := parsePolled(texts[1]); ok {
		t.Polled = polled
	}

	var durations []float64
	var present []bool
	for _, text := range texts[2:] {
		v, ok := parseMinutes(text)
		durations = append(durations, v)
		present = append(present, ok)
	}
	if len(durations) == 0 || !present[0] {
		return nil
	}

	hasMedian := len(durations) > 1 && present[1]
	median := 0.0
	if hasMedian {
		median = durations[1]
	}
	t.Hours = roundHours(averageMinutes(durations[0], median, hasMedian))

	if len(durations) >= 4 {
		if present[2] {
			t.Rushed = roundHours(durations[2])
		}
		if present[3] {
			t.Leisure = roundHours(durations[3])
		}
	}
	return t
}

// readSummary reads the header blocks ("Main Story" / "12½ Hours").
func (h *HLTB) readSummary(doc *goquery.Document, d *Detail) {
	doc.Find(`div[class*="GameStats"] li, ul[class*="GameStats"] li`).Each(func(_ int, li *goquery.Selection) {
		label := cleanText(li.Find("h4").Text())
		category, ok := summaryCategories[label]
		if !ok {
			return
		}
		if _, done := d.Times[category]; done {
			return
		}
		if minutes, ok := parseMinutes(cleanText(li.Find("h5").Text())); ok {
			setTime(d, category, &domain.CompletionTime{Hours: roundHours(minutes)})
		}
	})
}

func setTime(d *Detail, category string, t *domain.CompletionTime) {
	if d.Times == nil {
		d.Times = make(map[string]*domain.CompletionTime)
	}
	d.Times[category] = t
}

func storeLinks(doc *goquery.Document) map[string]string {
	stores := make(map[string]string)
	for _, s := range storeSelectors {
		href, ok := doc.Find(s.selector).First().Attr("href")
		if !ok || href == "" {
			continue
		}
		stores[s.name] = unwrapAffiliate(href)
	}
	if len(stores) == 0 {
		return nil
	}
	return stores
}

// unwrapAffiliate returns the target of redirect links that carry it in a
// url= query parameter.
func unwrapAffiliate(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("url"); target != "" {
		if _, err := url.Parse(target); err == nil {
			return target
		}
	}
	return href
}
