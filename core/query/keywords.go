package query

import "strings"

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"of": true, "at": true, "by": true, "for": true, "with": true,
	"about": true, "against": true, "between": true, "into": true,
	"through": true, "during": true, "before": true, "after": true,
	"to": true, "from": true, "in": true, "on": true, "and": true,
	"or": true, "what": true, "which": true, "how": true, "why": true,
	"who": true, "when": true, "where": true, "this": true, "that": true,
	"it": true, "its": true, "me": true, "my": true, "we": true,
	"our": true, "you": true, "your": true, "can": true, "tell": true,
	"explain": true, "describe": true,
}

// Tokenize lowercases text, strips punctuation and drops stop words
// and single character tokens.
func Tokenize(text string) []string {
	text = removePunctuation(strings.ToLower(text))

	tokens := []string{}
	for word := range strings.FieldsSeq(text) {
		if !stopWords[word] && len(word) > 1 {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// Keywords returns the unique tokens of text in first-seen order.
func Keywords(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]bool, len(tokens))
	keywords := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		keywords = append(keywords, t)
	}
	return keywords
}

// TokenSet returns the tokens of text as a set.
func TokenSet(text string) map[string]bool {
	tokens := Tokenize(text)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func removePunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(".,!?;:()[]{}\"'`*#", r) {
			return ' '
		}
		return r
	}, s)
}
