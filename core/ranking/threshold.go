package ranking

import "github.com/siherrmann/controlrag/model"

// ThresholdFilter drops weak candidates while always keeping some context.
type ThresholdFilter struct {
	BaseMinScore         float64
	ControlMatchMinScore float64
}

// NewThresholdFilter creates a filter from the configured thresholds.
func NewThresholdFilter(config model.RagConfig) *ThresholdFilter {
	return &ThresholdFilter{
		BaseMinScore:         config.BaseMinScore,
		ControlMatchMinScore: config.ControlMatchMinScore,
	}
}

// Filter keeps the chunks whose adjusted score meets their threshold, in input order.
// If none would survive, the single highest scoring chunk is kept.
func (f *ThresholdFilter) Filter(chunks []model.RerankedChunk) []model.RerankedChunk {
	if len(chunks) == 0 {
		return []model.RerankedChunk{}
	}

	kept := make([]model.RerankedChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.AdjustedScore >= f.thresholdFor(c) {
			kept = append(kept, c)
		}
	}
	if len(kept) > 0 {
		return kept
	}

	best := 0
	for i := 1; i < len(chunks); i++ {
		if chunks[i].AdjustedScore > chunks[best].AdjustedScore {
			best = i
		}
	}
	return []model.RerankedChunk{chunks[best]}
}

func (f *ThresholdFilter) thresholdFor(c model.RerankedChunk) float64 {
	if c.Metadata.ControlID != "" {
		return f.ControlMatchMinScore
	}
	return f.BaseMinScore
}
