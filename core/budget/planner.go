package budget

import (
	"github.com/siherrmann/controlrag/model"
)

// Planner computes how many context tokens are left for retrieved chunks.
type Planner struct {
	config    model.RagConfig
	estimator Estimator
}

// NewPlanner creates a planner for the configured context window.
func NewPlanner(config model.RagConfig) *Planner {
	return &Planner{
		config:    config,
		estimator: NewEstimator(config.CharsPerToken),
	}
}

// Estimator returns the token estimator shared by planning and filtering.
func (p *Planner) Estimator() Estimator {
	return p.estimator
}

// Overhead estimates the prompt tokens not taken by chunk text.
func (p *Planner) Overhead(query string, chunkCount int) int {
	separators := chunkCount - 1
	if separators < 0 {
		separators = 0
	}
	return p.config.FixedPreambleTokens +
		p.estimator.Tokens(query) +
		p.config.PerChunkOverheadTokens*chunkCount +
		p.config.SeparatorOverheadTokens*separators +
		p.config.InstructionOverheadTokens
}

// Available returns the chunk budget for a prompt with chunkCount references.
// It never drops below the configured minimum.
func (p *Planner) Available(query string, chunkCount int) int {
	available := p.config.ContextWindowTokens - p.Overhead(query, chunkCount) - p.config.ResponseReserveTokens
	if available < p.config.MinimumChunkTokens {
		return p.config.MinimumChunkTokens
	}
	return available
}

// TokenFilter drops chunks that do not fit a token budget.
type TokenFilter interface {
	FilterByTokenBudget(chunks []model.ExpandedChunk, budget int) []model.ExpandedChunk
}

// Fit plans the budget for chunks and filters them with f in one step.
// It returns the surviving chunks and the budget they were fitted to.
func (p *Planner) Fit(query string, chunks []model.ExpandedChunk, f TokenFilter) ([]model.ExpandedChunk, int) {
	available := p.Available(query, len(chunks))
	return f.FilterByTokenBudget(chunks, available), available
}

// Select keeps chunks in the given order while the running parent token
// total stays within budget. Chunks that do not fit are skipped. A single
// input chunk is always kept, even when it alone exceeds the budget.
func Select(chunks []model.ExpandedChunk, budget int) []model.ExpandedChunk {
	if len(chunks) == 1 {
		return []model.ExpandedChunk{chunks[0]}
	}

	selected := make([]model.ExpandedChunk, 0, len(chunks))
	used := 0
	for _, c := range chunks {
		if used+c.ParentTokenCount > budget {
			continue
		}
		used += c.ParentTokenCount
		selected = append(selected, c)
	}
	return selected
}

// TotalTokens sums the parent token counts of chunks.
func TotalTokens(chunks []model.ExpandedChunk) int {
	total := 0
	for _, c := range chunks {
		total += c.ParentTokenCount
	}
	return total
}
