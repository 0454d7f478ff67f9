package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

// NormalizeTitle lower-cases s, strips accents and collapses every run of
// non alphanumeric characters into one space.
func NormalizeTitle(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// Dedup drops repeated (source, external_id) pairs, then repeated normalized
// titles. Input order decides: the first occurrence wins. Candidates whose
// title normalizes to nothing are only deduplicated by key.
func Dedup(candidates []domain.Candidate) []domain.Candidate {
	keys := make(map[string]struct{}, len(candidates))
	titles := make(map[string]struct{}, len(candidates))
	out := make([]domain.Candidate, 0, len(candidates))

	for _, c := range candidates {
		key := c.Key()
		if _, dup := keys[key]; dup {
			continue
		}
		title := NormalizeTitle(c.Name)
		if title != "" {
			if _, dup := titles[title]; dup {
				continue
			}
			titles[title] = struct{}{}
		}
		keys[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
