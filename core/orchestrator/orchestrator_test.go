package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/siherrmann/controlrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("Missing collaborators", func(t *testing.T) {
		_, err := New(Dependencies{Embedder: &fakeEmbedder{}}, model.DefaultRagConfig(), nil)
		assert.Error(t, err)
	})

	t.Run("Invalid config", func(t *testing.T) {
		config := model.DefaultRagConfig()
		config.ControlMatchMinScore = config.BaseMinScore

		_, err := New(Dependencies{Embedder: &fakeEmbedder{}, Store: &fakeStore{}, Generator: &fakeGenerator{}}, config, nil)
		assert.Error(t, err)
	})

	t.Run("Nil logger and catalog", func(t *testing.T) {
		o, err := New(Dependencies{Embedder: &fakeEmbedder{}, Store: &fakeStore{}, Generator: &fakeGenerator{}}, model.DefaultRagConfig(), nil)
		require.NoError(t, err)
		assert.NotNil(t, o.log)
		assert.NotNil(t, o.Gateway())
	})
}

func TestQueryControlScenario(t *testing.T) {
	store := &fakeStore{corpus: scenarioCorpus(), ignoreControlFilter: true}
	embedder := &fakeEmbedder{}
	generator := &fakeGenerator{text: fourSectionAnswer}
	o, states := newTestOrchestrator(t, Dependencies{Embedder: embedder, Store: store, Generator: generator})

	response, err := o.Query(context.Background(), model.QueryRequest{Query: "What is AC-2?"})
	require.NoError(t, err)

	t.Run("Exact control ranks first", func(t *testing.T) {
		require.NotEmpty(t, response.References)
		assert.Equal(t, "AC-2", response.References[0].ControlID)
		assert.Equal(t, "ac2", response.References[0].ChunkID)
		assert.Len(t, response.RetrievedChunks, len(response.References))
	})

	t.Run("Query is expanded before embedding", func(t *testing.T) {
		require.Len(t, embedder.calls, 1)
		assert.Equal(t, "What is AC-2? Account Management", embedder.calls[0])
	})

	t.Run("First phase is constrained to the extracted control", func(t *testing.T) {
		require.NotEmpty(t, store.filters)
		assert.Equal(t, []string{"AC-2"}, store.filters[0].ControlIDs)
	})

	t.Run("Prompt carries references without scores", func(t *testing.T) {
		require.Len(t, generator.requests, 1)
		p := generator.requests[0].Prompt
		assert.Contains(t, p, "[Reference 1 | Control AC-2 - Account Management | Source: nist_800_53]")
		assert.Contains(t, p, "## Typical Evidence")
		assert.NotContains(t, p, "%")
		assert.Equal(t, 0.2, generator.requests[0].Temperature)
		assert.Equal(t, 1024, generator.requests[0].MaxTokens)
	})

	t.Run("Percentage claims are stripped", func(t *testing.T) {
		assert.NotContains(t, response.Answer, "92%")
		assert.Contains(t, response.Answer, "AC-2 keeps system accounts under control.")
		assert.Contains(t, response.Answer, "## Control Requirements")
	})

	t.Run("Token accounting", func(t *testing.T) {
		assert.Equal(t, 42, response.TokensUsed)
		assert.Equal(t, 80, response.ContextTokensUsed)
	})

	t.Run("States in order", func(t *testing.T) {
		assert.Equal(t, []State{
			StateExpanding, StateRetrieving, StateReranking, StateFiltering,
			StateBudgetFitting, StatePrompting, StateGenerating, StateDone,
		}, *states)
	})
}

func TestQueryEmptyCorpus(t *testing.T) {
	store := &fakeStore{}
	generator := &fakeGenerator{text: "should not be used"}
	o, states := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: store, Generator: generator})

	response, err := o.Query(context.Background(), model.QueryRequest{Query: "What is AC-2?"})
	require.NoError(t, err)

	assert.Equal(t, model.DefaultRagConfig().EmptyRetrievalMessage, response.Answer)
	assert.NotNil(t, response.References, "Expected an empty, non nil reference list")
	assert.Empty(t, response.References)
	assert.Empty(t, generator.requests, "Expected the generator never to be called")
	assert.Len(t, store.filters, 2, "Expected the semantic fallback to run")
	assert.Equal(t, StateEmpty, (*states)[len(*states)-1])
}

func TestQueryFallsBackToSemanticSearch(t *testing.T) {
	store := &fakeStore{corpus: []model.ChunkCandidate{
		controlChunk("ac17", "AC-17", "Remote Access", "Remote sessions are restricted.", 0.8),
	}}
	generator := &fakeGenerator{text: "## Purpose\nRemote access.\n## Typical Evidence\n- VPN logs"}
	o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: store, Generator: generator})

	response, err := o.Query(context.Background(), model.QueryRequest{Query: "What is AC-99?"})
	require.NoError(t, err)

	require.Len(t, store.filters, 2)
	assert.Empty(t, store.filters[1].ControlIDs)
	require.Len(t, response.References, 1)
	assert.Equal(t, "AC-17", response.References[0].ControlID)
}

func TestQueryFourSectionRecovery(t *testing.T) {
	run := func(t *testing.T, question string, answer string) string {
		store := &fakeStore{corpus: scenarioCorpus()}
		o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: store, Generator: &fakeGenerator{text: answer}})
		response, err := o.Query(context.Background(), model.QueryRequest{Query: question})
		require.NoError(t, err)
		return response.Answer
	}

	t.Run("Partial answer is completed", func(t *testing.T) {
		answer := run(t, "What is AC-2?", "## Purpose\nManage accounts.\n\n## Control Requirements\n- Define account types.")

		assert.Contains(t, answer, "## Purpose\nManage accounts.")
		assert.Contains(t, answer, "## Common Implementations\n- Not covered by the retrieved references.")
		assert.Contains(t, answer, "## Typical Evidence\n- Not covered by the retrieved references.")
	})

	t.Run("Completion keeps the written text", func(t *testing.T) {
		written := "AC-2 governs the account lifecycle.\n\n## Purpose\nManage accounts.\n\n## Control Requirements\nAccounts are approved before creation.\n\n## Typical Evidence\n- Review records."
		answer := run(t, "What is AC-2?", written)

		assert.True(t, strings.HasPrefix(answer, written), "Expected the generated text to stay unchanged")
		assert.Equal(t, written+"\n\n## Common Implementations\n- Not covered by the retrieved references.", answer)
	})

	t.Run("Answer without headers is kept", func(t *testing.T) {
		answer := run(t, "What is AC-2?", "AC-2 is about account management.")
		assert.Equal(t, "AC-2 is about account management.", answer)
	})

	t.Run("General questions are not restructured", func(t *testing.T) {
		answer := run(t, "How should accounts be reviewed?", "## Purpose\nReview them.")
		assert.Equal(t, "## Purpose\nReview them.", answer)
	})
}

func TestQueryBudgetFallback(t *testing.T) {
	config := model.DefaultRagConfig()
	config.ContextWindowTokens = 100
	config.MinimumChunkTokens = 10

	store := &fakeStore{corpus: scenarioCorpus(), ignoreControlFilter: true}
	generator := &fakeGenerator{text: fourSectionAnswer}
	o, _ := newTestOrchestratorWithConfig(t, Dependencies{Embedder: &fakeEmbedder{}, Store: store, Generator: generator}, config)

	response, err := o.Query(context.Background(), model.QueryRequest{Query: "What is AC-2?"})
	require.NoError(t, err)

	require.Len(t, response.References, 1, "Expected only the best parent when no parent fits the budget")
	assert.Equal(t, "AC-2", response.References[0].ControlID)
	assert.Equal(t, 40, response.ContextTokensUsed)

	require.Len(t, generator.requests, 1, "Expected the generator to answer from the single parent")
	assert.Contains(t, generator.requests[0].Prompt, "Control AC-2 - Account Management")
	assert.NotContains(t, generator.requests[0].Prompt, "Remote Access")
}

func TestQueryFilters(t *testing.T) {
	t.Run("Caller control filters are a hard constraint", func(t *testing.T) {
		store := &fakeStore{corpus: scenarioCorpus()}
		o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: store, Generator: &fakeGenerator{text: "ok"}})

		response, err := o.Query(context.Background(), model.QueryRequest{
			Query:               "remote sessions",
			ControlFilters:      []string{"AC-17"},
			DocumentTypeFilters: []string{"nist_800_53"},
			TopK:                3,
		})
		require.NoError(t, err)

		require.Len(t, store.filters, 1)
		assert.Equal(t, []string{"AC-17"}, store.filters[0].ControlIDs)
		assert.Equal(t, []string{"nist_800_53"}, store.filters[0].DocumentTypes)
		require.Len(t, response.References, 1)
		assert.Equal(t, "AC-17", response.References[0].ControlID)
	})
}

func TestQueryBothScopes(t *testing.T) {
	store := &fakeStore{corpus: scenarioCorpus()}
	private := &fakePrivate{records: []model.PrivateRecord{
		{ID: "policy-1", Text: "Our account policy requires quarterly reviews.", Distance: 0.05},
	}}
	generator := &fakeGenerator{text: "Answer."}
	o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: store, Private: private, Generator: generator})

	response, err := o.Query(context.Background(), model.QueryRequest{Query: "account reviews", SearchScope: model.SearchScopeBoth})
	require.NoError(t, err)

	require.NotEmpty(t, response.References)
	assert.Equal(t, "policy-1", response.References[0].ChunkID)
	assert.Equal(t, "private", response.References[0].DocumentType)
	assert.Contains(t, generator.requests[0].Prompt, "Our account policy requires quarterly reviews.")
}

func TestQueryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Invalid requests", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		o, _ := newTestOrchestrator(t, Dependencies{Embedder: embedder, Store: &fakeStore{}, Generator: &fakeGenerator{}})

		for _, req := range []model.QueryRequest{
			{Query: "  "},
			{Query: "AC-2", TopK: -1},
			{Query: "AC-2", SearchScope: "tenant"},
			{Query: "AC-2", SearchScope: model.SearchScopePrivate},
		} {
			_, err := o.Query(ctx, req)
			assert.ErrorIs(t, err, model.ErrInvalidRequest, "Expected %+v to be invalid", req)
		}
		assert.Empty(t, embedder.calls, "Expected no embedding for invalid requests")
	})

	t.Run("Embedder failure", func(t *testing.T) {
		generator := &fakeGenerator{}
		o, states := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{err: errUnavailable}, Store: &fakeStore{}, Generator: generator})

		_, err := o.Query(ctx, model.QueryRequest{Query: "What is AC-2?"})
		assert.ErrorIs(t, err, model.ErrCollaboratorUnavailable)
		assert.ErrorIs(t, err, errUnavailable)
		assert.Empty(t, generator.requests)
		assert.Equal(t, StateFailed, (*states)[len(*states)-1])
	})

	t.Run("Store failure", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: &fakeStore{err: errUnavailable}, Generator: &fakeGenerator{}})

		_, err := o.Query(ctx, model.QueryRequest{Query: "What is AC-2?"})
		assert.ErrorIs(t, err, model.ErrCollaboratorUnavailable)
	})

	t.Run("Generator failure", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: &fakeStore{corpus: scenarioCorpus()}, Generator: &fakeGenerator{err: errUnavailable}})

		_, err := o.Query(ctx, model.QueryRequest{Query: "What is AC-2?"})
		assert.ErrorIs(t, err, model.ErrCollaboratorUnavailable)
		assert.True(t, strings.Contains(err.Error(), "generate answer"), "Expected the operation in the message")
	})
}

func TestCheckHealth(t *testing.T) {
	o, _ := newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: &fakeStore{}, Generator: &fakeGenerator{}})
	assert.NoError(t, o.CheckHealth(context.Background()))

	o, _ = newTestOrchestrator(t, Dependencies{Embedder: &fakeEmbedder{}, Store: &fakeStore{err: errUnavailable}, Generator: &fakeGenerator{}})
	assert.ErrorIs(t, o.CheckHealth(context.Background()), model.ErrCollaboratorUnavailable)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "budget_fitting", StateBudgetFitting.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateEmpty.Terminal())
	assert.False(t, StateGenerating.Terminal())
}
