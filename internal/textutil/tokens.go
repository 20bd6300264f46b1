package textutil

import (
	"regexp"
	"strings"
)

// tokenSplitPattern matches non-alphanumeric character sequences for tokenization.
var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {},
	"that": {}, "this": {}, "are": {}, "was": {}, "were": {}, "has": {},
	"have": {}, "had": {}, "but": {}, "not": {}, "you": {}, "your": {},
	"its": {}, "our": {}, "out": {}, "over": {}, "after": {}, "amid": {},
	"about": {}, "than": {}, "then": {}, "will": {}, "what": {}, "how": {},
	"why": {}, "who": {}, "new": {}, "more": {}, "can": {}, "says": {},
}

// Tokenize splits text into lowercase tokens, filtering short tokens and
// stopwords. Accents are folded before splitting.
func Tokenize(text string) []string {
	lowered := strings.ToLower(foldAccents(text))
	raw := tokenSplitPattern.Split(lowered, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len(token) < 3 {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenSet is the distinct tokens of a text.
type TokenSet map[string]struct{}

// NewTokenSet tokenizes text into a set.
func NewTokenSet(text string) TokenSet {
	tokens := Tokenize(text)
	set := make(TokenSet, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// Len returns the number of distinct tokens.
func (s TokenSet) Len() int {
	return len(s)
}

// Shared counts the tokens present in both sets.
func (s TokenSet) Shared(other TokenSet) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for token := range small {
		if _, ok := large[token]; ok {
			n++
		}
	}
	return n
}
