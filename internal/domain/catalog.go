package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PlatformRef is one entry of a catalog record's platform list. Catalog dumps carry
// either a bare string or an object with any of name/abbreviation/slug/id.
type PlatformRef struct {
	Name         string `json:"name,omitempty"`
	Abbreviation string `json:"abbreviation,omitempty"`
	Slug         string `json:"slug,omitempty"`
	ID           int    `json:"id,omitempty"`
}

func (p *PlatformRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &p.Name)
	case '{':
		type plain PlatformRef
		var v plain
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = PlatformRef(v)
		return nil
	default:
		id, err := strconv.Atoi(string(data))
		if err != nil {
			return fmt.Errorf("unsupported platform entry %s", string(data))
		}
		p.ID = id
		return nil
	}
}

func (p PlatformRef) IsZero() bool {
	return p.Name == "" && p.Abbreviation == "" && p.Slug == "" && p.ID == 0
}

// CatalogRecord is one game from the local catalog.
type CatalogRecord struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Platforms   []PlatformRef `json:"platforms,omitempty"`
	ReleaseDate *time.Time    `json:"release_date,omitempty"`
	Year        int           `json:"year,omitempty"`
	ExternalID  string        `json:"external_id,omitempty"`
}

type rawCatalogRecord struct {
	ID               json.RawMessage `json:"id"`
	Name             string          `json:"name"`
	Platforms        []PlatformRef   `json:"platforms"`
	ReleaseDate      json.RawMessage `json:"release_date"`
	FirstReleaseDate json.RawMessage `json:"first_release_date"`
	Year             int             `json:"year"`
	ExternalID       string          `json:"external_id"`
}

func (r *CatalogRecord) UnmarshalJSON(data []byte) error {
	var raw rawCatalogRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := parseFlexibleID(raw.ID)
	if err != nil {
		return err
	}

	date, err := parseReleaseDate(raw.ReleaseDate)
	if err != nil {
		return err
	}
	if date == nil {
		if date, err = parseReleaseDate(raw.FirstReleaseDate); err != nil {
			return err
		}
	}

	*r = CatalogRecord{
		ID:          id,
		Name:        strings.TrimSpace(raw.Name),
		Platforms:   raw.Platforms,
		ReleaseDate: date,
		Year:        raw.Year,
		ExternalID:  raw.ExternalID,
	}
	return nil
}

// Key identifies the record in checkpoint documents.
func (r *CatalogRecord) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// ReleaseYear returns the year from the release date, falling back to the explicit year field.
// Zero means unknown.
func (r *CatalogRecord) ReleaseYear() int {
	if r == nil {
		return 0
	}
	if r.ReleaseDate != nil {
		return r.ReleaseDate.Year()
	}
	return r.Year
}

func parseFlexibleID(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("invalid record id %s: %w", string(data), err)
	}
	return n.String(), nil
}

var releaseDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006",
}

func parseReleaseDate(data json.RawMessage) (*time.Time, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		for _, layout := range releaseDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t, nil
			}
		}
		// Unparseable strings ("TBA", "Q3 2025") mean the date is unknown, not that the record is bad.
		return nil, nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("invalid release date %s: %w", string(data), err)
	}
	secs, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return nil, fmt.Errorf("invalid release date %s: %w", string(data), err)
		}
		secs = int64(f)
	}
	if secs > 1e11 {
		secs /= 1000
	}
	t := time.Unix(secs, 0).UTC()
	return &t, nil
}
