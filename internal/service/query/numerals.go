package query

import (
	"strconv"
	"strings"
)

var romanNumerals = []string{
	"", "I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X",
	"XI", "XII", "XIII", "XIV", "XV", "XVI", "XVII", "XVIII", "XIX", "XX",
}

var romanValues = func() map[string]int {
	m := make(map[string]int, len(romanNumerals))
	for i, r := range romanNumerals {
		if r != "" {
			m[r] = i
		}
	}
	return m
}()

// RomanToArabic returns the value of an uppercase Roman numeral in I..XX.
func RomanToArabic(token string) (int, bool) {
	v, ok := romanValues[token]
	return v, ok
}

// ArabicToRoman returns the Roman form of n for 1..20.
func ArabicToRoman(n int) (string, bool) {
	if n < 1 || n >= len(romanNumerals) {
		return "", false
	}
	return romanNumerals[n], true
}

// splitToken separates trailing punctuation so "VII:" converts as "VII" + ":".
func splitToken(tok string) (core, tail string) {
	end := len(tok)
	for end > 0 && strings.ContainsRune(":,;!?.", rune(tok[end-1])) {
		end--
	}
	return tok[:end], tok[end:]
}

// convertRomanTokens rewrites every standalone Roman numeral token as Arabic.
// A leading "I" is kept since it is usually the pronoun ("I Am Setsuna").
func convertRomanTokens(title string) (string, bool) {
	tokens := strings.Fields(title)
	changed := false
	for i, tok := range tokens {
		core, tail := splitToken(tok)
		if i == 0 && core == "I" {
			continue
		}
		if v, ok := RomanToArabic(core); ok {
			tokens[i] = strconv.Itoa(v) + tail
			changed = true
		}
	}
	return strings.Join(tokens, " "), changed
}

// convertArabicTokens rewrites every standalone number in 1..20 as a Roman numeral.
func convertArabicTokens(title string) (string, bool) {
	tokens := strings.Fields(title)
	changed := false
	for i, tok := range tokens {
		core, tail := splitToken(tok)
		n, err := strconv.Atoi(core)
		if err != nil || strings.HasPrefix(core, "0") {
			continue
		}
		if r, ok := ArabicToRoman(n); ok {
			tokens[i] = r + tail
			changed = true
		}
	}
	return strings.Join(tokens, " "), changed
}
