package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CanonicalID normalizes an event or volunteer identifier so that the same ID
// typed on different devices compares equal: NFKC, control characters removed,
// surrounding whitespace trimmed. Case is preserved.
func CanonicalID(id string) string {
	t := transform.Chain(norm.NFKC, runes.Remove(runes.In(unicode.Cc)))
	result, _, err := transform.String(t, id)
	if err != nil {
		result = id
	}
	return strings.TrimSpace(result)
}
