// Package matching aligns predicted deal lists against ground truth and
// scores the alignment. The algorithm behaves identically regardless of
// which backend produced the prediction.
package matching

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	punctPattern      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	numberPattern     = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	pureNumberPattern = regexp.MustCompile(`^[0-9]+([.,][0-9]+)?$`)
	tokenPattern      = regexp.MustCompile(`[a-z0-9]+`)
	digitLetterSplit  = regexp.MustCompile(`(\d)(\p{L})`)
	letterDigitSplit  = regexp.MustCompile(`(\p{L})(\d)`)

	// Legal price-per-unit annotations are not package units and are
	// stripped before unit comparison.
	kgPricePattern = regexp.MustCompile(`(kg[- ]?preis|price per kg|preis/kg|€/kg|eur/kg|/kg)\s*[-:]?\s*[0-9]+([.,][0-9]+)?`)
	lPricePattern  = regexp.MustCompile(`(l[- ]?preis|price per l|preis/l|€/l|eur/l|/l)\s*[-:]?\s*[0-9]+([.,][0-9]+)?`)
)

// unitReplacements maps abbreviation variants to a canonical form.
// Order matters: longer variants first.
var unitReplacements = []struct{ from, to string }{
	{"stück", "stk"},
	{"stueck", "stk"},
	{"stuck", "stk"},
	{"piece", "stk"},
	{"packung", "pack"},
	{"pk", "pack"},
	{"milliliter", "ml"},
	{"kilogramm", "kg"},
	{"liter", "l"},
	{"gramm", "g"},
}

// NormalizeName lowercases, strips currency and punctuation, and
// collapses whitespace.
func NormalizeName(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "€", " ")
	s = strings.ReplaceAll(s, "$", " ")
	s = punctPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizePrice strips currency symbols and separators and renders the
// value as a two-decimal string. Unparsable input yields nil.
func NormalizePrice(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	s = strings.NewReplacer("€", "", "$", "", " ", "").Replace(s)

	// When both separators appear the rightmost one is the decimal
	// mark; the other is a thousands separator.
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	m := numberPattern.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}

	out := strconv.FormatFloat(v, 'f', 2, 64)
	return &out
}

// ParsePrice returns the numeric value of a price string, false when it
// holds none.
func ParsePrice(raw string) (float64, bool) {
	p := NormalizePrice(raw)
	if p == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(*p, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizeUnit canonicalizes a package-unit string. Purely numeric
// strings and price annotations carry no unit information and normalize
// to "". Digit-letter runs are split ("450g" -> "450 g") so spacing
// variants compare equal.
func NormalizeUnit(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if pureNumberPattern.MatchString(s) {
		return ""
	}
	if strings.Contains(s, "€") || strings.Contains(s, "eur") {
		return ""
	}

	s = kgPricePattern.ReplaceAllString(s, "")
	s = lPricePattern.ReplaceAllString(s, "")
	for _, r := range unitReplacements {
		s = strings.ReplaceAll(s, r.from, r.to)
	}
	s = digitLetterSplit.ReplaceAllString(s, "$1 $2")
	s = letterDigitSplit.ReplaceAllString(s, "$1 $2")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// TokenSetSimilarity is the Jaccard index over alphanumeric tokens.
func TokenSetSimilarity(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1.0
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	inter := 0
	for t := range tokensA {
		if tokensB[t] {
			inter++
		}
	}
	union := len(tokensA) + len(tokensB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenPattern.FindAllString(strings.ToLower(s), -1) {
		set[t] = true
	}
	return set
}

// NameSimilarity scores two normalized product names in [0,1] using the
// ratio of the longest common subsequence to the mean length.
func NameSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ra, rb := []rune(a), []rune(b)
	lcs := lcsLength(ra, rb)
	return 2.0 * float64(lcs) / float64(len(ra)+len(rb))
}

// lcsLength computes LCS length with a two-row table.
func lcsLength(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
		for j := range curr {
			curr[j] = 0
		}
	}
	return prev[len(b)]
}
