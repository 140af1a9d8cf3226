package prompt

import (
	"regexp"
	"strings"
)

const (
	scoreWords = `(?:relevance|match|similarity)`
	percent    = `\d{1,3}(?:\.\d+)?\s?%`
)

// Each pattern swallows the whitespace before the claim, and a trailing
// comma or semicolon so that lists stay well formed.
var percentageClaims = []*regexp.Regexp{
	// (relevance: 85%) [match 90%] (confidence 75 %)
	regexp.MustCompile(`(?i)[ \t]*[\(\[]\s*(?:` + scoreWords + `|confidence)(?:\s+score)?\s*[:=]?\s*(?:of\s+)?` + percent + `\s*[\)\]]`),
	// (85% relevance) [92% match]
	regexp.MustCompile(`(?i)[ \t]*[\(\[]\s*` + percent + `\s*` + scoreWords + `\s*[\)\]]`),
	// relevance: 85%, similarity score of 80%, confidence: 75%
	regexp.MustCompile(`(?i)[ \t]*\b(?:` + scoreWords + `(?:\s+score)?\s*[:=]|` + scoreWords + `\s+score\s+(?:of|is)|confidence(?:\s+score)?\s*:)\s*` + percent + `(?:[ \t]*[,;])?`),
}

// 92% match, only where the claim closes a clause
var trailingClaim = regexp.MustCompile(`(?i)[ \t]*\b` + percent + `\s*` + scoreWords + `\b(?:[ \t]*[,;])?`)

var (
	emptyBrackets  = regexp.MustCompile(`[ \t]*(?:\(\s*\)|\[\s*\])`)
	spaceBeforeEnd = regexp.MustCompile(`[ \t]+([.,;:!?])`)
	danglingComma  = regexp.MustCompile(`[,;]+([.!?])`)
)

// StripPercentageClaims removes percentages that attribute a relevance,
// match or similarity score to a source. Other percentages are kept.
// Applying it twice gives the same result as applying it once.
func StripPercentageClaims(text string) string {
	// every changing pass shortens the text, so this terminates
	for {
		next := stripOnce(text)
		if next == text {
			return text
		}
		text = next
	}
}

func stripOnce(text string) string {
	changed := false
	for _, p := range percentageClaims {
		if p.MatchString(text) {
			text = p.ReplaceAllString(text, "")
			changed = true
		}
	}
	if stripped := stripTrailingClaims(text); stripped != text {
		text = stripped
		changed = true
	}
	if !changed {
		return text
	}

	text = emptyBrackets.ReplaceAllString(text, "")
	text = spaceBeforeEnd.ReplaceAllString(text, "$1")
	text = danglingComma.ReplaceAllString(text, "$1")
	return strings.TrimLeft(text, " \t")
}

// stripTrailingClaims removes "N% match" phrases followed by punctuation
// or the end of a line. "a 100% match rate" is left alone.
func stripTrailingClaims(text string) string {
	matches := trailingClaim.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		if !closesClause(text, m[0], m[1]) {
			continue
		}
		b.WriteString(text[last:m[0]])
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

func closesClause(text string, start int, end int) bool {
	if strings.ContainsAny(text[start:end], ",;") {
		return true
	}
	rest := strings.TrimLeft(text[end:], " \t")
	return rest == "" || strings.ContainsRune(".!?)]\n\r", rune(rest[0]))
}
