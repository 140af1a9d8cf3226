package retrieval

import (
	"context"
	"fmt"

	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
)

// Phase tells which query of a retrieval produced the candidates.
type Phase int

const (
	// PhaseControlFiltered is a query constrained to control IDs.
	PhaseControlFiltered Phase = iota + 1
	// PhaseSemantic is a pure similarity query.
	PhaseSemantic
)

func (p Phase) String() string {
	switch p {
	case PhaseControlFiltered:
		return "control_filtered"
	case PhaseSemantic:
		return "semantic"
	}
	return "unknown"
}

// Result holds the candidates of a retrieval and the phase that produced them.
type Result struct {
	Candidates []model.ChunkCandidate
	Phase      Phase
}

// Retrieve runs the two phase strategy on the shared corpus.
//
// Control IDs set in filters are a hard constraint and are queried once.
// Otherwise, with extracted ids, the first query is constrained to those
// controls and, if it yields nothing, a second query drops the control
// constraint while keeping the other filters.
func (g *Gateway) Retrieve(ctx context.Context, embedding []float32, ids []string, filters model.SearchFilters, topK int) (*Result, error) {
	if len(filters.ControlIDs) > 0 {
		candidates, err := g.QuerySmallChunks(ctx, embedding, filters, topK)
		if err != nil {
			return nil, err
		}
		return &Result{Candidates: candidates, Phase: PhaseControlFiltered}, nil
	}

	if len(ids) > 0 {
		candidates, err := g.QuerySmallChunks(ctx, embedding, filters.WithControlIDs(ids), topK)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			return &Result{Candidates: candidates, Phase: PhaseControlFiltered}, nil
		}
	}

	candidates, err := g.QuerySmallChunks(ctx, embedding, filters.WithControlIDs(nil), topK)
	if err != nil {
		return nil, err
	}
	return &Result{Candidates: candidates, Phase: PhaseSemantic}, nil
}

// ScopedStrategy routes a retrieval to the shared corpus, the private
// corpus or both.
type ScopedStrategy struct {
	gateway *Gateway
	private PrivateCorpus
	merger  *DualSourceMerger
}

// NewScopedStrategy creates a scoped strategy. private may be nil when
// no private corpus is configured.
func NewScopedStrategy(gateway *Gateway, private PrivateCorpus) *ScopedStrategy {
	return &ScopedStrategy{
		gateway: gateway,
		private: private,
		merger:  NewDualSourceMerger(),
	}
}

// HasPrivateCorpus reports whether a private corpus is configured.
func (s *ScopedStrategy) HasPrivateCorpus() bool {
	return s.private != nil
}

// Retrieve queries the corpora named by scope. Filters apply to private
// records as well, by their metadata.
func (s *ScopedStrategy) Retrieve(ctx context.Context, scope model.SearchScope, embedding []float32, ids []string, filters model.SearchFilters, topK int) (*Result, error) {
	if scope.IncludesPrivate() && s.private == nil {
		return nil, helper.NewError("retrieve", fmt.Errorf("%w: scope %q needs a private corpus", model.ErrInvalidRequest, scope))
	}

	result := &Result{Phase: PhaseSemantic}
	if scope.IncludesShared() {
		shared, err := s.gateway.Retrieve(ctx, embedding, ids, filters, topK)
		if err != nil {
			return nil, err
		}
		result = shared
	}
	if !scope.IncludesPrivate() {
		return result, nil
	}

	private, err := s.private.QueryPrivate(ctx, embedding, topK)
	if err != nil {
		return nil, helper.NewError("query private corpus", fmt.Errorf("%w: %w", model.ErrCollaboratorUnavailable, err))
	}
	result.Candidates = s.merger.Merge(result.Candidates, filterPrivate(private, filters), topK)
	return result, nil
}

func filterPrivate(records []model.PrivateRecord, filters model.SearchFilters) []model.PrivateRecord {
	kept := make([]model.PrivateRecord, 0, len(records))
	for _, r := range records {
		if filters.Matches(PrivateCandidate(r).Metadata) {
			kept = append(kept, r)
		}
	}
	return kept
}
