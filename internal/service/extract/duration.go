package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	hoursMinutes = regexp.MustCompile(`(\d+)h\s*(\d+)m`)
	hoursOnly    = regexp.MustCompile(`(\d+(?:\.\d+)?)h\b`)
	minutesOnly  = regexp.MustCompile(`^(\d+)m\b`)
	hoursWord    = regexp.MustCompile(`(\d+(?:\.\d+)?)(½)?\s*Hours?`)
	polledCount  = regexp.MustCompile(`^(\d+(?:\.\d+)?)([Kk])?$`)
)

// parseMinutes reads "12h 30m", "12h", "45m", "12½ Hours" or "12.5 Hours".
func parseMinutes(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text == "--" || strings.EqualFold(text, "n/a") {
		return 0, false
	}

	if m := hoursMinutes.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return float64(h*60 + mins), true
	}
	if m := hoursWord.FindStringSubmatch(text); m != nil {
		h, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		if m[2] != "" {
			h += 0.5
		}
		return h * 60, true
	}
	if m := hoursOnly.FindStringSubmatch(text); m != nil {
		h, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return h * 60, true
	}
	if m := minutesOnly.FindStringSubmatch(text); m != nil {
		mins, _ := strconv.Atoi(m[1])
		return float64(mins), true
	}
	return 0, false
}

// roundHours rounds minutes to whole or half hours: up to 14 minutes past the
// hour rounds down, 15 to 44 gives a half hour, 45 and more rounds up.
func roundHours(minutes float64) float64 {
	total := int(math.Floor(minutes))
	h, m := total/60, total%60
	switch {
	case m <= 14:
		return float64(h)
	case m <= 44:
		return float64(h) + 0.5
	default:
		return float64(h + 1)
	}
}

// averageMinutes combines the average and median columns. A missing median
// leaves the average unchanged.
func averageMinutes(average, median float64, hasMedian bool) float64 {
	if !hasMedian || median == 0 {
		return average
	}
	if average == 0 {
		return median
	}
	return (average + median) / 2
}

// parsePolled reads vote counts such as "356" or "1.2K".
func parsePolled(text string) (int, bool) {
	m := polledCount.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] != "" {
		v *= 1000
	}
	return int(math.Round(v)), true
}
