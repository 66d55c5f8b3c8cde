// Package textnorm provides the accent- and case-insensitive string handling
// shared by every comparison site that works on work item types, board
// columns and client names.
package textnorm

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold trims s, lowercases it and strips diacritics, so "Línea", " LINEA "
// and "linea" all fold to "linea".
func Fold(s string) string {
	lowered := strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lowered)
	if err != nil {
		return lowered
	}
	return out
}

// Equal reports whether a and b are the same after folding.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Contains reports whether the folded s contains the folded sub.
func Contains(s, sub string) bool {
	return strings.Contains(Fold(s), Fold(sub))
}

// Key trims and lowercases s without touching accents. Budget sources are
// matched to client names with this key.
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Spanish)
)

// Compare orders a and b using Spanish collation rules. It returns -1, 0 or 1.
func Compare(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}
