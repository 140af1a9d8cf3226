package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/siherrmann/controlrag/core/budget"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
)

// VectorStore is the shared corpus of small chunks.
type VectorStore interface {
	QuerySmallChunks(ctx context.Context, embedding []float32, filters model.SearchFilters, topK int) ([]model.ChunkCandidate, error)
	CheckHealth(ctx context.Context) error
}

// PrivateCorpus is an optional per-tenant corpus queried by cosine distance.
type PrivateCorpus interface {
	QueryPrivate(ctx context.Context, embedding []float32, topK int) ([]model.PrivateRecord, error)
}

// Gateway wraps a vector store with parent expansion and budget filtering.
type Gateway struct {
	store     VectorStore
	estimator budget.Estimator
}

// NewGateway creates a gateway. The estimator is used for parents
// that carry no stored token count.
func NewGateway(store VectorStore, estimator budget.Estimator) *Gateway {
	return &Gateway{
		store:     store,
		estimator: estimator,
	}
}

// QuerySmallChunks runs one similarity search and returns at most topK
// candidates ordered by descending raw score.
func (g *Gateway) QuerySmallChunks(ctx context.Context, embedding []float32, filters model.SearchFilters, topK int) ([]model.ChunkCandidate, error) {
	candidates, err := g.store.QuerySmallChunks(ctx, embedding, filters, topK)
	if err != nil {
		return nil, helper.NewError("query small chunks", fmt.Errorf("%w: %w", model.ErrCollaboratorUnavailable, err))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RawScore > candidates[j].RawScore
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// ExpandToParentChunks maps every hit to its parent block. Hits sharing a
// parent are collapsed into the one with the higher score.
func (g *Gateway) ExpandToParentChunks(candidates []model.RerankedChunk) []model.ExpandedChunk {
	byParent := map[string]int{}
	expanded := make([]model.ExpandedChunk, 0, len(candidates))

	for _, c := range candidates {
		key := c.ParentKey()
		if i, ok := byParent[key]; ok {
			if c.AdjustedScore > expanded[i].Score {
				expanded[i] = g.expand(c)
			}
			continue
		}
		byParent[key] = len(expanded)
		expanded = append(expanded, g.expand(c))
	}

	sort.SliceStable(expanded, func(i, j int) bool {
		return expanded[i].Score > expanded[j].Score
	})
	return expanded
}

func (g *Gateway) expand(c model.RerankedChunk) model.ExpandedChunk {
	parentText := c.Metadata.ParentText
	if parentText == "" {
		parentText = c.SmallText
	}
	tokens := c.Metadata.ParentTokenCount
	if tokens <= 0 {
		tokens = g.estimator.Tokens(parentText)
	}

	return model.ExpandedChunk{
		ParentText:       parentText,
		ParentTokenCount: tokens,
		SmallChunkID:     c.ID,
		SmallChunkText:   c.SmallText,
		Metadata:         c.Metadata,
		Score:            c.AdjustedScore,
	}
}

// FilterByTokenBudget keeps chunks in score order while they fit the budget.
func (g *Gateway) FilterByTokenBudget(chunks []model.ExpandedChunk, tokenBudget int) []model.ExpandedChunk {
	return budget.Select(chunks, tokenBudget)
}

// CheckHealth checks the underlying vector store.
func (g *Gateway) CheckHealth(ctx context.Context) error {
	if err := g.store.CheckHealth(ctx); err != nil {
		return helper.NewError("check health", fmt.Errorf("%w: %w", model.ErrCollaboratorUnavailable, err))
	}
	return nil
}
