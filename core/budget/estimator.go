package budget

import (
	"math"
	"unicode/utf8"
)

// Estimator approximates token counts from character counts.
// The same ratio must be used for planning and validation.
type Estimator struct {
	CharsPerToken float64
}

// NewEstimator creates an estimator, falling back to 4 chars per token.
func NewEstimator(charsPerToken float64) Estimator {
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	return Estimator{CharsPerToken: charsPerToken}
}

// Tokens returns the estimated token count of text.
func (e Estimator) Tokens(text string) int {
	if text == "" {
		return 0
	}
	ratio := e.CharsPerToken
	if ratio <= 0 {
		ratio = 4
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / ratio))
}
