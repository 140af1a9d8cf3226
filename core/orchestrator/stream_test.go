package orchestrator

import (
	"context"
	"testing"

	"github.com/siherrmann/controlrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, o *Orchestrator, req model.QueryRequest) ([]model.StreamEvent, error) {
	t.Helper()
	stream, err := o.QueryStream(context.Background(), req)
	require.NoError(t, err, "Expected the stream to be prepared")

	events := []model.StreamEvent{}
	for event, err := range stream {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

func TestQueryStream(t *testing.T) {
	t.Run("Metadata first then one event per fragment", func(t *testing.T) {
		generator := &fakeGenerator{fragments: []string{"## Purpose\n", "AC-2 (relevance: 90%)", " manages accounts."}}
		o, states := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: &fakeStore{corpus: scenarioCorpus()}, Generator: generator})

		events, err := collect(t, o, model.QueryRequest{Query: "What is AC-2?"})
		require.NoError(t, err)
		require.Len(t, events, 4)

		assert.Equal(t, model.StreamEventMetadata, events[0].Type)
		require.NotNil(t, events[0].Metadata)
		require.Len(t, events[0].Metadata.References, 1)
		assert.Equal(t, "AC-2", events[0].Metadata.References[0].ControlID)
		assert.Equal(t, 40, events[0].Metadata.ContextTokensUsed)

		for i, fragment := range generator.fragments {
			assert.Equal(t, model.StreamEventToken, events[i+1].Type)
			assert.Equal(t, fragment, events[i+1].Token, "Expected fragments to be forwarded unmodified")
		}
		assert.Equal(t, StateDone, (*states)[len(*states)-1])
	})

	t.Run("Empty retrieval streams the canned answer", func(t *testing.T) {
		generator := &fakeGenerator{fragments: []string{"unused"}}
		o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: &fakeStore{}, Generator: generator})

		events, err := collect(t, o, model.QueryRequest{Query: "What is AC-2?"})
		require.NoError(t, err)
		require.Len(t, events, 2)

		assert.Empty(t, events[0].Metadata.References)
		assert.Equal(t, model.DefaultRagConfig().EmptyRetrievalMessage, events[1].Token)
		assert.Empty(t, generator.requests, "Expected the generator never to be called")
	})

	t.Run("Stopping early cancels the generation", func(t *testing.T) {
		generator := &fakeGenerator{fragments: []string{"one", "two", "three"}}
		o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: &fakeStore{corpus: scenarioCorpus()}, Generator: generator})

		stream, err := o.QueryStream(context.Background(), model.QueryRequest{Query: "What is AC-2?"})
		require.NoError(t, err)

		tokens := 0
		for event, err := range stream {
			require.NoError(t, err)
			if event.Type == model.StreamEventToken {
				tokens++
				break
			}
		}

		assert.Equal(t, 1, tokens)
		assert.Equal(t, 1, generator.yielded, "Expected no fragment after the stop")
		require.NotNil(t, generator.streamCtx)
		assert.ErrorIs(t, generator.streamCtx.Err(), context.Canceled)
	})

	t.Run("Generator failure ends the stream with an error", func(t *testing.T) {
		generator := &fakeGenerator{fragments: []string{"partial"}, streamErr: errUnavailable}
		o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: &fakeStore{corpus: scenarioCorpus()}, Generator: generator})

		events, err := collect(t, o, model.QueryRequest{Query: "What is AC-2?"})
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrCollaboratorUnavailable)
		assert.Len(t, events, 2, "Expected metadata and the partial fragment")
	})

	t.Run("Errors before generation are returned directly", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{err: errUnavailable}, Store: &fakeStore{}, Generator: &fakeGenerator{}})

		stream, err := o.QueryStream(context.Background(), model.QueryRequest{Query: "What is AC-2?"})
		assert.Nil(t, stream)
		assert.ErrorIs(t, err, model.ErrCollaboratorUnavailable)

		_, err = o.QueryStream(context.Background(), model.QueryRequest{Query: ""})
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
	})
}
