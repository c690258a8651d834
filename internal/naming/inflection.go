package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize converts a singular word to its plural form. For snake_case
// names only the last segment is inflected.
// Checks custom overrides first, then falls back to the inflection library.
func (n *Namer) Pluralize(word string) string {
	if override, ok := n.config.PluralOverrides[word]; ok {
		return override
	}
	if i := strings.LastIndex(word, "_"); i >= 0 && i < len(word)-1 {
		return word[:i+1] + n.Pluralize(word[i+1:])
	}
	return inflection.Plural(word)
}
