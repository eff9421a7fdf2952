package query

import (
	"regexp"
	"strings"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
)

type intentRule struct {
	kind    domain.IntentKind
	pattern *regexp.Regexp
}

func phrasePattern(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)(?:^|[\s:(\-–])(` + strings.Join(quoted, "|") + `)(?:$|[\s:)\-–,])`)
}

// Checked in order: a DLC of a remaster is still DLC.
var intentRules = []intentRule{
	{domain.IntentDLC, phrasePattern(
		"dlc", "expansion pass", "expansion", "add-on", "addon", "season pass", "story pack",
		"downloadable content",
	)},
	{domain.IntentCompilation, phrasePattern(
		"the collection", "collection", "trilogy", "anthology", "compilation", "bundle", "double pack",
	)},
	{domain.IntentRemaster, phrasePattern(
		"remastered", "hd remaster", "remaster", "remake", "definitive edition", "game of the year edition",
		"goty edition", "complete edition", "deluxe edition", "enhanced edition", "director's cut",
		"anniversary edition", "special edition", "ultimate edition", "gold edition", "legendary edition",
		"royal edition", "goty",
	)},
}

var (
	subtitleSeparator = regexp.MustCompile(`\s*(?::|\s[-–—]\s)\s*`)
	trailingJunk      = " -–—:,;/"
)

// ClassifyIntent decides whether a title names a base game, a DLC, a remaster or a compilation,
// and derives the base title the alternate-query step should fall back to.
func ClassifyIntent(title string) domain.TitleIntent {
	clean := strings.TrimSpace(title)
	for _, rule := range intentRules {
		loc := rule.pattern.FindStringSubmatchIndex(clean)
		if loc == nil {
			continue
		}
		qualifier := clean[loc[2]:loc[3]]
		return domain.TitleIntent{
			Kind:      rule.kind,
			Qualifier: qualifier,
			BaseTitle: baseTitleFor(rule.kind, clean, loc[2], loc[3]),
		}
	}
	return domain.TitleIntent{Kind: domain.IntentBase}
}

func baseTitleFor(kind domain.IntentKind, title string, start, end int) string {
	var base string
	switch kind {
	case domain.IntentDLC:
		// DLC titles are "<Base>: <Expansion>"; without a separator drop the marker itself.
		if sep := subtitleSeparator.FindStringIndex(title); sep != nil && sep[0] > 0 {
			base = title[:sep[0]]
		} else {
			base = title[:start] + " " + title[end:]
		}
	default:
		base = title[:start] + " " + title[end:]
		base = strings.TrimSuffix(strings.TrimSpace(base), " The")
		base = strings.TrimSuffix(base, " the")
	}

	base = strings.Trim(strings.Join(strings.Fields(base), " "), trailingJunk)
	base = strings.TrimSpace(strings.ReplaceAll(base, "()", ""))
	if strings.EqualFold(base, title) {
		return ""
	}
	return base
}
