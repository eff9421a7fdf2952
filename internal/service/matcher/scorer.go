package matcher

import (
	"strconv"
	"strings"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/service/query"
	"github.com/kapu/game-metadata-sync-go/internal/util"
)

const (
	winklerPrefixCap   = 4
	winklerScaling     = 0.1
	maxYearPenalty     = 0.2
	unknownYear        = 0
	exactMatchScore    = 1.0
	defaultLengthRatio = 0.7
)

// NormalizeTitle folds a title for comparison: diacritics removed, lowercase,
// "&" spelled out, Roman numerals as digits, punctuation collapsed to spaces.
func NormalizeTitle(title string) string {
	s := strings.ToLower(util.FoldDiacritics(title))
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127 {
			b.WriteRune(r)
			continue
		}
		if r == '\'' || r == '’' {
			continue
		}
		b.WriteByte(' ')
	}

	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		if i == 0 && tok == "i" {
			continue
		}
		if v, ok := query.RomanToArabic(strings.ToUpper(tok)); ok {
			tokens[i] = strconv.Itoa(v)
		}
	}
	return strings.Join(tokens, " ")
}

// Similarity scores two titles in [0,1]. Identical normalized titles score exactly 1.
func Similarity(a, b string) float64 {
	return similarityNormalized(NormalizeTitle(a), NormalizeTitle(b), constants.MatchThresholds.LengthRatio)
}

func similarityNormalized(a, b string, lengthRatio float64) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return exactMatchScore
	}

	ra, rb := []rune(a), []rune(b)
	score := jaroWinkler(ra, rb)

	shorter, longer := len(ra), len(rb)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if lengthRatio <= 0 {
		lengthRatio = defaultLengthRatio
	}
	if ratio := float64(shorter) / float64(longer); ratio < lengthRatio {
		score *= ratio
	}

	return util.Clamp01(score)
}

// Score compares a query title to a candidate title and subtracts a release-year
// penalty when both years are known (zero means unknown).
func Score(queryTitle, candidateTitle string, queryYear, candidateYear int) float64 {
	return util.Clamp01(Similarity(queryTitle, candidateTitle) - YearPenalty(queryYear, candidateYear))
}

// BestOf returns the highest similarity of candidate against any of the titles.
func BestOf(titles []string, candidate string) float64 {
	best := 0.0
	for _, t := range titles {
		if s := Similarity(t, candidate); s > best {
			best = s
		}
	}
	return best
}

// YearPenalty grows with the distance between two known release years.
func YearPenalty(a, b int) float64 {
	if a == unknownYear || b == unknownYear {
		return 0
	}
	switch diff := util.Abs(a - b); {
	case diff == 0:
		return 0
	case diff == 1:
		return 0.01
	case diff == 2:
		return 0.05
	case diff <= 5:
		return 0.1
	default:
		return maxYearPenalty
	}
}

func jaroWinkler(a, b []rune) float64 {
	j := jaro(a, b)
	if j <= constants.MatchThresholds.PrefixBoostMin {
		return j
	}

	prefix := 0
	for prefix < len(a) && prefix < len(b) && prefix < winklerPrefixCap && a[prefix] == b[prefix] {
		prefix++
	}
	return j + float64(prefix)*winklerScaling*(1-j)
}

func jaro(a, b []rune) float64 {
	la, lb := len(a), len(b)
	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}

	// Matches count within half the longer length.
	window := util.Max(la, lb) / 2

	aMatched := make([]bool, la)
	bMatched := make([]bool, lb)
	matches := 0

	for i := 0; i < la; i++ {
		lo := util.Max(0, i-window)
		hi := util.Min(lb-1, i+window)
		for j := lo; j <= hi; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(la) + m/float64(lb) + (m-t)/m) / 3
}
