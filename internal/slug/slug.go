// Package slug turns free text into URL-safe identifiers and picks a free
// variant when the preferred one is already taken.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letters that do not decompose into a base letter plus a mark.
var foldRunes = strings.NewReplacer(
	"đ", "d", "Đ", "d",
	"ß", "ss",
	"æ", "ae", "Æ", "ae",
	"ø", "o", "Ø", "o",
	"ł", "l", "Ł", "l",
)

// Generate normalizes s into a lowercase, ASCII, hyphen separated token.
//
//	Generate("Hello, World!") == "hello-world"
//	Generate("Cà phê sữa đá") == "ca-phe-sua-da"
func Generate(s string) string {
	// Decompose accented letters and drop the combining marks ("é" -> "e").
	// Chained transformers keep state, so build one per call.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, foldRunes.Replace(s))
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// Base is Generate(candidate), or Generate(fallback) when that is empty.
func Base(candidate, fallback string) string {
	if base := Generate(candidate); base != "" {
		return base
	}
	return Generate(fallback)
}

// Resolve returns the normalized candidate when it is not in existing, and
// otherwise the first of candidate-2, candidate-3, ... that is free.
// Candidates that normalize to nothing use fallback instead.
func Resolve(candidate, fallback string, existing []string) string {
	base := Base(candidate, fallback)

	taken := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		taken[s] = struct{}{}
	}

	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		next := base + "-" + strconv.Itoa(n)
		if _, ok := taken[next]; !ok {
			return next
		}
	}
}
