package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize performs basic string normalization (lowercase + trim)
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CollapseSpaces trims s and replaces every whitespace run with a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FoldDiacritics strips combining marks after NFD decomposition ("Pokémon" -> "Pokemon").
func FoldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeKey builds a lookup key: folded, lowercased, whitespace collapsed.
func NormalizeKey(s string) string {
	return CollapseSpaces(Normalize(FoldDiacritics(s)))
}

// Slugify converts a title to the lowercase, dash separated form provider URLs use.
func Slugify(name string) string {
	name = Normalize(FoldDiacritics(name))
	name = strings.ReplaceAll(name, "&", " and ")

	var builder strings.Builder
	lastDash := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
			lastDash = false
		case r == '\'' || r == '’' || r == '.':
			continue
		default:
			if !lastDash {
				builder.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(builder.String(), "-")
}

// ContainsFold reports whether haystack contains any of the needles, case-insensitively.
func ContainsFold(haystack string, needles ...string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
