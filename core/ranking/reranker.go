package ranking

import (
	"sort"
	"strings"

	"github.com/siherrmann/controlrag/core/query"
	"github.com/siherrmann/controlrag/model"
)

// Reranker adjusts raw similarity scores by exact control match and keyword overlap.
type Reranker struct {
	ExactMatchBoost float64
	KeywordBoostMax float64
}

// NewReranker creates a reranker from the configured boosts.
func NewReranker(config model.RagConfig) *Reranker {
	return &Reranker{
		ExactMatchBoost: config.ExactMatchBoost,
		KeywordBoostMax: config.KeywordBoostMax,
	}
}

// Rerank scores the candidates and returns them ordered by descending adjusted score.
// Ties keep their input order.
func (r *Reranker) Rerank(queryText string, controlIDs []string, candidates []model.ChunkCandidate) []model.RerankedChunk {
	ids := make(map[string]bool, len(controlIDs))
	for _, id := range controlIDs {
		ids[strings.ToUpper(id)] = true
	}
	keywords := query.Keywords(queryText)

	reranked := make([]model.RerankedChunk, 0, len(candidates))
	for _, c := range candidates {
		adjusted := c.RawScore
		if c.Metadata.ControlID != "" && ids[strings.ToUpper(c.Metadata.ControlID)] {
			adjusted += r.ExactMatchBoost
		}
		adjusted += r.keywordBoost(keywords, c.SmallText)

		reranked = append(reranked, model.RerankedChunk{
			ChunkCandidate: c,
			AdjustedScore:  adjusted,
			OriginalScore:  c.RawScore,
		})
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].AdjustedScore > reranked[j].AdjustedScore
	})

	return reranked
}

// keywordBoost is proportional to the share of keywords found in text and
// saturates at KeywordBoostMax when all of them are present.
func (r *Reranker) keywordBoost(keywords []string, text string) float64 {
	if len(keywords) == 0 || r.KeywordBoostMax <= 0 {
		return 0
	}

	tokens := query.TokenSet(text)
	matched := 0
	for _, k := range keywords {
		if tokens[k] {
			matched++
		}
	}

	return r.KeywordBoostMax * float64(matched) / float64(len(keywords))
}
