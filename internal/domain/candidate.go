package domain

// QueryVariant is one search string generated from a catalog title.
type QueryVariant struct {
	Query      string `json:"query"`
	Provenance string `json:"provenance"`
}

// Candidate is an external search result that may match a catalog record.
type Candidate struct {
	ID        string  `json:"id"`
	Link      string  `json:"link"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
	Year      int     `json:"year,omitempty"`
	YearKnown bool    `json:"year_known,omitempty"`
	Query     string  `json:"query,omitempty"`
}

// SetYear records a lazily resolved release year. Zero means the lookup found nothing.
func (c *Candidate) SetYear(year int) {
	if c == nil {
		return
	}
	c.Year = year
	c.YearKnown = year > 0
}

// Key identifies the candidate across queries. The link is used when the extractor had no id.
func (c *Candidate) Key() string {
	if c == nil {
		return ""
	}
	if c.ID != "" {
		return c.ID
	}
	return c.Link
}
