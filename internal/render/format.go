package render

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Money formats v with thousands separators and up to two decimals:
// 5000 -> "5,000", 1234.5 -> "1,234.5".
func Money(v float64) string {
	s := strconv.FormatFloat(round2(v), 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return group(s)
}

// Money2 formats v with thousands separators and exactly two decimals.
func Money2(v float64) string {
	return group(strconv.FormatFloat(round2(v), 'f', 2, 64))
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}

func formatHours(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename builds "<name>_Export_<yyyy-mm-dd>.<ext>". An empty name gives
// "Export_<date>.<ext>".
func Filename(name, ext string, now time.Time) string {
	base := strings.Trim(unsafeFilename.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	stamp := "Export_" + now.Format("2006-01-02")
	if base != "" {
		stamp = base + "_" + stamp
	}
	return stamp + "." + strings.TrimPrefix(ext, ".")
}
