package graph

import (
	"strings"
	"unicode"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Corporate designators are dropped from the end of normalized mentions so
// that "Acme Corp." and "Acme" resolve to the same entity.
var corporateDesignators = mapset.NewSet[string](
	"corp", "corporation", "inc", "incorporated",
	"ltd", "limited", "llc", "co", "company",
	"gmbh", "ag", "plc", "sa",
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize maps an entity mention to its canonical form: lower-cased,
// trimmed, diacritics and punctuation stripped, whitespace collapsed and
// trailing corporate designators removed. The result is used both as the
// canonical entity id and as the match key during alias resolution.
func Normalize(mention string) string {
	s := strings.ToLower(strings.TrimSpace(mention))

	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)

	fields := strings.Fields(s)
	for len(fields) > 1 && corporateDesignators.Contains(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}

	return strings.Join(fields, " ")
}

// NormalizeRelation turns a predicate label into a relation type label,
// e.g. "works for" becomes "works_for".
func NormalizeRelation(label string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(label)))
	return strings.Join(fields, "_")
}
