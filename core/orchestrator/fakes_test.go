package orchestrator

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"slices"
	"testing"

	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("service unavailable")

type fakeEmbedder struct {
	err   error
	calls []string
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) (*model.Embedding, error) {
	e.calls = append(e.calls, text)
	if e.err != nil {
		return nil, e.err
	}
	return &model.Embedding{Embeddings: [][]float32{{0.1, 0.2, 0.3}}, Dimensions: 3}, nil
}

// fakeStore holds a small corpus and applies the control filter
// unless ignoreControlFilter is set.
type fakeStore struct {
	corpus              []model.ChunkCandidate
	ignoreControlFilter bool
	err                 error
	filters             []model.SearchFilters
}

func (s *fakeStore) QuerySmallChunks(ctx context.Context, embedding []float32, filters model.SearchFilters, topK int) ([]model.ChunkCandidate, error) {
	s.filters = append(s.filters, filters)
	if s.err != nil {
		return nil, s.err
	}

	result := []model.ChunkCandidate{}
	for _, c := range s.corpus {
		if !s.ignoreControlFilter && len(filters.ControlIDs) > 0 && !slices.Contains(filters.ControlIDs, c.Metadata.ControlID) {
			continue
		}
		result = append(result, c)
	}
	slices.SortStableFunc(result, func(a, b model.ChunkCandidate) int {
		switch {
		case a.RawScore > b.RawScore:
			return -1
		case a.RawScore < b.RawScore:
			return 1
		}
		return 0
	})
	if len(result) > topK {
		result = result[:topK]
	}
	return result, nil
}

func (s *fakeStore) CheckHealth(ctx context.Context) error {
	return s.err
}

type fakePrivate struct {
	records []model.PrivateRecord
}

func (p *fakePrivate) QueryPrivate(ctx context.Context, embedding []float32, topK int) ([]model.PrivateRecord, error) {
	return p.records, nil
}

type fakeGenerator struct {
	text      string
	fragments []string
	streamErr error
	err       error
	requests  []model.GenerationRequest
	streamCtx context.Context
	yielded   int
}

func (g *fakeGenerator) Generate(ctx context.Context, req model.GenerationRequest) (*model.Generation, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &model.Generation{Text: g.text, TokensUsed: 42, FinishReason: "end_turn"}, nil
}

func (g *fakeGenerator) GenerateStream(ctx context.Context, req model.GenerationRequest) iter.Seq2[string, error] {
	g.requests = append(g.requests, req)
	g.streamCtx = ctx
	return func(yield func(string, error) bool) {
		for _, f := range g.fragments {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			g.yielded++
			if !yield(f, nil) {
				return
			}
		}
		if g.streamErr != nil {
			yield("", g.streamErr)
		}
	}
}

func controlChunk(id string, controlID string, name string, text string, score float64) model.ChunkCandidate {
	small := "Control " + controlID + " (" + name + "): " + text
	return model.ChunkCandidate{
		ID:        id,
		SmallText: small,
		Metadata: model.ChunkMetadata{
			ControlID:        controlID,
			ControlName:      name,
			DocumentType:     "nist_800_53",
			Family:           controlID[:2],
			ParentID:         "parent-" + id,
			ParentText:       small + " Discussion of " + controlID + ".",
			ParentTokenCount: 40,
		},
		RawScore: score,
	}
}

func scenarioCorpus() []model.ChunkCandidate {
	return []model.ChunkCandidate{
		controlChunk("ac2", "AC-2", "Account Management", "Manage system accounts including creation and removal.", 0.70),
		controlChunk("ac17", "AC-17", "Remote Access", "Establish usage restrictions for remote sessions.", 0.75),
	}
}

const fourSectionAnswer = `## Purpose
AC-2 keeps system accounts under control (relevance: 92%).

## Control Requirements
- Define account types.

## Common Implementations
- Central identity provider.

## Typical Evidence
- Account review records.
`

func newTestOrchestrator(t *testing.T, deps Dependencies) (*Orchestrator, *[]State) {
	t.Helper()
	return newTestOrchestratorWithConfig(t, deps, model.DefaultRagConfig())
}

func newTestOrchestratorWithConfig(t *testing.T, deps Dependencies, config model.RagConfig) (*Orchestrator, *[]State) {
	t.Helper()
	o, err := New(deps, config, helper.NewLogger(io.Discard, slog.LevelDebug))
	require.NoError(t, err, "Expected orchestrator to be created")

	states := &[]State{}
	o.onTransition = func(s State) {
		*states = append(*states, s)
	}
	return o, states
}
