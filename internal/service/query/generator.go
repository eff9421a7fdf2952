package query

import (
	"regexp"
	"strings"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/util"
)

// Provenance tags attached to generated variants.
const (
	ProvOriginal             = "original"
	ProvOverride             = "override"
	ProvDiacriticsFolded     = "diacritics folded"
	ProvPrefixStripped       = "prefix stripped"
	ProvRomanToArabic        = "roman-to-arabic"
	ProvArabicToRoman        = "arabic-to-roman"
	ProvAmpersandToAnd       = "ampersand to and"
	ProvAndToAmpersand       = "and to ampersand"
	ProvParentheticalRemoved = "parenthetical removed"
	ProvParentheticalInlined = "parenthetical inlined"
	ProvJointTitlePart       = "joint title part"
	ProvSlashEnumeration     = "slash enumeration"
	ProvEditionStripped      = "edition qualifier stripped"
	ProvDLCBaseTitle         = "dlc base title"
	ProvSubtitleTruncated    = "subtitle truncated"
	ProvAbbreviation         = "abbreviation"
	ProvAmpersandClause      = "ampersand clause removed"
	ProvFillerStripped       = "filler words stripped"
	ProvLeadingWords         = "leading words"
)

// DefaultPrefixes are franchise-owner prefixes providers often drop from listings.
var DefaultPrefixes = []string{
	"Marvel's",
	"Tom Clancy's",
	"Sid Meier's",
	"Disney's",
	"Disney Pixar",
	"Disney•Pixar",
	"Clive Barker's",
	"American McGee's",
}

var (
	parenthetical       = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	ampersandParen      = regexp.MustCompile(`\(\s*&\s*([^)]*)\)`)
	leadingAbbreviation = regexp.MustCompile(`^((?:[A-Za-z]\.){2,})\s*(.*)$`)
	andWord             = regexp.MustCompile(`(?i)\s+and\s+`)
	fillerWords         = map[string]struct{}{"the": {}, "of": {}, "and": {}}
)

type Options struct {
	Prefixes    []string
	Overrides   map[string][]string
	MaxVariants int
}

// Generator turns a raw catalog title into ordered search variants. It is
// stateless after construction and safe for concurrent use.
type Generator struct {
	prefixes    []string
	overrides   map[string][]string
	maxVariants int
}

func NewGenerator(opts Options) *Generator {
	prefixes := opts.Prefixes
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}
	maxVariants := opts.MaxVariants
	if maxVariants <= 0 {
		maxVariants = constants.RunConfig.MaxVariants
	}

	overrides := make(map[string][]string, len(opts.Overrides))
	for title, queries := range opts.Overrides {
		overrides[util.NormalizeKey(title)] = queries
	}

	return &Generator{
		prefixes:    prefixes,
		overrides:   overrides,
		maxVariants: maxVariants,
	}
}

type variantSet struct {
	out  []domain.QueryVariant
	seen map[string]struct{}
}

func (s *variantSet) add(query, provenance string) {
	query = strings.Trim(util.CollapseSpaces(query), trailingJunk)
	if query == "" {
		return
	}
	k := strings.ToLower(query)
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = struct{}{}
	s.out = append(s.out, domain.QueryVariant{Query: query, Provenance: provenance})
}

// Generate returns de-duplicated variants, most confident first. The identity
// variant is always first. The same title always yields the same list.
func (g *Generator) Generate(title string) []domain.QueryVariant {
	original := util.CollapseSpaces(title)
	if original == "" {
		return nil
	}

	set := &variantSet{seen: make(map[string]struct{})}
	set.add(original, ProvOriginal)

	for _, q := range g.overrides[util.NormalizeKey(original)] {
		set.add(q, ProvOverride)
	}

	folded := util.FoldDiacritics(original)
	set.add(folded, ProvDiacriticsFolded)

	stripped, hasPrefix := g.stripPrefix(folded)
	if hasPrefix {
		set.add(stripped, ProvPrefixStripped)
	}

	primaries := []string{folded}
	if hasPrefix {
		primaries = append(primaries, stripped)
	}
	for _, p := range primaries {
		if v, ok := convertRomanTokens(p); ok {
			set.add(v, ProvRomanToArabic)
		}
		if v, ok := convertArabicTokens(p); ok {
			set.add(v, ProvArabicToRoman)
		}
	}

	base := folded
	if hasPrefix {
		base = stripped
	}

	if strings.Contains(base, " & ") {
		set.add(strings.ReplaceAll(base, " & ", " and "), ProvAmpersandToAnd)
	} else if andWord.MatchString(base) {
		set.add(andWord.ReplaceAllString(base, " & "), ProvAndToAmpersand)
	}

	if parenthetical.MatchString(base) {
		if m := ampersandParen.FindStringSubmatch(base); m != nil {
			set.add(ampersandParen.ReplaceAllString(base, "& "+m[1]), ProvParentheticalInlined)
			set.add(ampersandParen.ReplaceAllString(base, "and "+m[1]), ProvParentheticalInlined)
		}
		set.add(parenthetical.ReplaceAllString(base, ""), ProvParentheticalRemoved)
	}

	addSlashVariants(set, base)

	intent := ClassifyIntent(base)
	if intent.HasAlternate() {
		prov := ProvEditionStripped
		if intent.Kind == domain.IntentDLC {
			prov = ProvDLCBaseTitle
		}
		set.add(intent.BaseTitle, prov)
	}

	if sub := truncateSubtitle(base); sub != "" {
		set.add(sub, ProvSubtitleTruncated)
	}

	if m := leadingAbbreviation.FindStringSubmatch(base); m != nil {
		letters := strings.Split(strings.TrimSuffix(m[1], "."), ".")
		set.add(m[1], ProvAbbreviation)
		set.add(strings.Join(letters, ""), ProvAbbreviation)
		set.add(strings.Join(letters, " "), ProvAbbreviation)
		if m[2] != "" {
			set.add(strings.Join(letters, "")+" "+m[2], ProvAbbreviation)
		}
	}

	if idx := strings.Index(base, " & "); idx > 0 {
		set.add(base[:idx], ProvAmpersandClause)
	}

	if v, ok := stripFillerWords(base); ok {
		set.add(v, ProvFillerStripped)
	}

	words := strings.Fields(parenthetical.ReplaceAllString(base, ""))
	if len(words) > 3 {
		set.add(strings.Join(words[:3], " "), ProvLeadingWords)
		set.add(strings.Join(words[:2], " "), ProvLeadingWords)
	}

	if len(set.out) > g.maxVariants {
		return set.out[:g.maxVariants]
	}
	return set.out
}

func (g *Generator) stripPrefix(title string) (string, bool) {
	normalized := strings.ReplaceAll(title, "’", "'")
	lower := strings.ToLower(normalized)
	for _, prefix := range g.prefixes {
		p := strings.ToLower(strings.ReplaceAll(prefix, "’", "'"))
		if strings.HasPrefix(lower, p+" ") {
			return strings.TrimSpace(normalized[len(p):]), true
		}
	}
	return title, false
}

func truncateSubtitle(title string) string {
	loc := subtitleSeparator.FindStringIndex(title)
	if loc == nil || loc[0] == 0 {
		return ""
	}
	return title[:loc[0]]
}

// addSlashVariants distinguishes spaced "A / B" (two complete titles) from
// unspaced "Red/Blue" (an enumeration bound inside one token).
func addSlashVariants(set *variantSet, title string) {
	if !strings.Contains(title, "/") {
		return
	}

	if strings.Contains(title, " / ") {
		for _, part := range strings.Split(title, " / ") {
			set.add(part, ProvJointTitlePart)
		}
		return
	}

	tokens := strings.Fields(title)
	for i, tok := range tokens {
		if !strings.Contains(tok, "/") {
			continue
		}
		parts := strings.Split(tok, "/")
		for _, p := range parts {
			if p == "" {
				return
			}
		}
		prefix := strings.Join(tokens[:i], " ")
		suffix := strings.Join(tokens[i+1:], " ")
		join := func(mid string) string {
			return strings.TrimSpace(prefix + " " + mid + " " + suffix)
		}
		set.add(join(parts[0]+" and "+parts[1]), ProvSlashEnumeration)
		set.add(join(parts[0]+" & "+parts[1]), ProvSlashEnumeration)
		for _, p := range parts {
			set.add(join(p), ProvSlashEnumeration)
		}
		return
	}
}

func stripFillerWords(title string) (string, bool) {
	tokens := strings.Fields(title)
	kept := tokens[:0:0]
	for _, tok := range tokens {
		core, _ := splitToken(strings.ToLower(tok))
		if _, filler := fillerWords[core]; filler {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == len(tokens) || len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}
