// Package tokens provides heuristic token estimators. No real tokenizer is
// involved; budgeting and usage fallbacks only need approximations that are
// cheap and stable.
package tokens

import (
	"strings"

	"github.com/papercomputeco/patchbay/pkg/openai"
)

// Estimator approximates the token count of a single message.
type Estimator interface {
	Estimate(msg openai.Message) int
}

// Words estimates roughly 1.3 tokens per whitespace-delimited word. Used for
// context-window budgeting.
type Words struct{}

func NewWords() *Words { return &Words{} }

const wordRatio = 1.3

func (e *Words) Estimate(msg openai.Message) int {
	count := len(strings.Fields(msg.GetText()))
	estimate := int(float64(count) * wordRatio)
	if msg.Role != "" {
		estimate++
	}
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

// Chars estimates roughly 4 characters per token. Used as the usage fallback
// when the backend reports no token counts.
type Chars struct{}

func NewChars() *Chars { return &Chars{} }

const charsPerToken = 4

func (e *Chars) Estimate(msg openai.Message) int {
	return e.EstimateText(msg.GetText())
}

// EstimateText estimates tokens for a raw text string.
func (e *Chars) EstimateText(text string) int {
	estimate := len(text) / charsPerToken
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

// Sum totals the estimate across messages.
func Sum(e Estimator, messages []openai.Message) int {
	total := 0
	for _, msg := range messages {
		total += e.Estimate(msg)
	}
	return total
}
