package retrieval

import (
	"context"
	"errors"

	"github.com/siherrmann/controlrag/model"
)

var errStoreDown = errors.New("connection refused")

// fakeStore answers queries from a list of responses, one per call.
type fakeStore struct {
	responses [][]model.ChunkCandidate
	err       error
	healthErr error
	filters   []model.SearchFilters
	topKs     []int
}

func (s *fakeStore) QuerySmallChunks(ctx context.Context, embedding []float32, filters model.SearchFilters, topK int) ([]model.ChunkCandidate, error) {
	s.filters = append(s.filters, filters)
	s.topKs = append(s.topKs, topK)
	if s.err != nil {
		return nil, s.err
	}
	call := len(s.filters) - 1
	if call >= len(s.responses) {
		return []model.ChunkCandidate{}, nil
	}
	return s.responses[call], nil
}

func (s *fakeStore) CheckHealth(ctx context.Context) error {
	return s.healthErr
}

type fakePrivate struct {
	records []model.PrivateRecord
	err     error
	calls   int
}

func (p *fakePrivate) QueryPrivate(ctx context.Context, embedding []float32, topK int) ([]model.PrivateRecord, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.records, nil
}

func candidate(id string, controlID string, parentID string, score float64) model.ChunkCandidate {
	return model.ChunkCandidate{
		ID:        id,
		SmallText: "small text of " + id,
		Metadata: model.ChunkMetadata{
			ControlID:    controlID,
			DocumentType: "nist_800_53",
			ParentID:     parentID,
			ParentText:   "parent text of " + parentID,
		},
		RawScore: score,
	}
}

func reranked(c model.ChunkCandidate, adjusted float64) model.RerankedChunk {
	return model.RerankedChunk{ChunkCandidate: c, AdjustedScore: adjusted, OriginalScore: c.RawScore}
}
