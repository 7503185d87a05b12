package predicate

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Stop words to drop from free-text queries and indexed labels
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "or": true,
}

// Normalize folds case and strips diacritics, so "Pleural Effusión" and
// "pleural effusion" normalise to the same string.
// Transformers are stateful, so a fresh chain is built per call.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

// Tokenize normalises text and splits it into words, removing stop words
// and punctuation.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		if !stopWords[word] {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// IndexText builds the space separated word list stored for a document's
// preferred labels. TextMatch words are matched against it word by word.
func IndexText(labels []string) string {
	seen := make(map[string]bool)
	var words []string
	for _, label := range labels {
		for _, w := range Tokenize(label) {
			if !seen[w] {
				seen[w] = true
				words = append(words, w)
			}
		}
	}
	return strings.Join(words, " ")
}

// NewTextMatch builds a TextMatch for free text.
func NewTextMatch(text string) TextMatch {
	return TextMatch{Query: text, Words: Tokenize(text)}
}
