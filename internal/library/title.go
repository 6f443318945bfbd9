package library

import (
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle reduces a series title to a comparable form: lower case,
// accents and punctuation removed, leading articles dropped.
func NormalizeTitle(title string) string {
	s := strings.ToLower(title)
	s = stripAccents(s)

	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, ".", " ")

	// "Star Trek: The Next Generation" keeps both halves comparable
	parts := strings.Split(s, ":")
	for i, part := range parts {
		parts[i] = stripLeadingArticle(strings.TrimSpace(part))
	}
	s = strings.Join(parts, " ")

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func stripLeadingArticle(s string) string {
	for _, art := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(s, art) {
			return strings.TrimPrefix(s, art)
		}
	}
	return s
}

// MatchTitle picks the series whose title matches. Exact normalized
// equality wins, first in candidate order. Otherwise, when threshold is
// positive, the best Jaro-Winkler match at or above threshold wins; ties
// keep the earlier candidate.
func MatchTitle(candidates []Series, title string, threshold float64) (*Series, bool) {
	want := NormalizeTitle(title)
	if want == "" {
		return nil, false
	}

	for i := range candidates {
		if NormalizeTitle(candidates[i].Title) == want {
			return &candidates[i], true
		}
	}

	if threshold <= 0 {
		return nil, false
	}

	best, bestScore := -1, 0.0
	for i := range candidates {
		score := float64(edlib.JaroWinklerSimilarity(want, NormalizeTitle(candidates[i].Title)))
		if score >= threshold && score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil, false
	}
	return &candidates[best], true
}
