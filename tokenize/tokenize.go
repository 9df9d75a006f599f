// Package tokenize splits text into normalized search terms.
//
// The same rules feed the local embedding fallback, the full-text index and
// keyword matching, so a term produced at index time always matches the
// term produced for a query.
package tokenize

import (
	"strings"
	"unicode"
)

// Stop words dropped by Terms.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "were": true, "to": true, "of": true, "and": true, "in": true,
	"that": true, "have": true, "has": true, "it": true, "its": true, "for": true,
	"not": true, "on": true, "with": true, "as": true, "you": true, "do": true,
	"at": true, "this": true, "but": true, "by": true, "from": true, "or": true,
	"what": true, "which": true, "who": true, "how": true, "i": true, "me": true,
	"my": true, "we": true, "our": true, "they": true, "their": true, "there": true,
	"about": true, "can": true, "will": true, "would": true, "should": true,
	"if": true, "so": true, "than": true, "then": true, "into": true, "does": true,
}

// IsStopWord reports whether word (already lowercased) is a stop word.
func IsStopWord(word string) bool {
	return stopWords[word]
}

// Words splits text on anything that is not a letter or digit and lowercases the pieces.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Terms returns Words with stop words removed.
func Terms(text string) []string {
	words := Words(text)
	filtered := words[:0]
	for _, w := range words {
		if !IsStopWord(w) {
			filtered = append(filtered, w)
		}
	}
	return filtered
}

// UniqueTerms returns Terms with duplicates removed, in first-seen order.
func UniqueTerms(text string) []string {
	terms := Terms(text)
	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Bigrams joins adjacent terms with a space.
func Bigrams(terms []string) []string {
	if len(terms) < 2 {
		return nil
	}
	out := make([]string, 0, len(terms)-1)
	for i := 1; i < len(terms); i++ {
		out = append(out, terms[i-1]+" "+terms[i])
	}
	return out
}
