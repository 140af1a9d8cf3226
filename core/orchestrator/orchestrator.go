package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/controlrag/core/budget"
	"github.com/siherrmann/controlrag/core/prompt"
	"github.com/siherrmann/controlrag/core/query"
	"github.com/siherrmann/controlrag/core/ranking"
	"github.com/siherrmann/controlrag/core/retrieval"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("controlrag/orchestrator")

// Orchestrator answers questions about security controls from the
// retrieved corpus. It only holds immutable collaborators, so one
// instance serves concurrent queries.
type Orchestrator struct {
	config    model.RagConfig
	embedder  Embedder
	generator Generator
	gateway   *retrieval.Gateway
	strategy  *retrieval.ScopedStrategy
	expander  *query.Expander
	reranker  *ranking.Reranker
	threshold *ranking.ThresholdFilter
	planner   *budget.Planner
	builder   *prompt.Builder
	log       *slog.Logger

	// onTransition observes state changes, nil outside of tests
	onTransition func(State)
}

// New creates an orchestrator. Embedder, Store and Generator are required.
func New(deps Dependencies, config model.RagConfig, logger *slog.Logger) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("create orchestrator", err)
	}
	if deps.Embedder == nil || deps.Store == nil || deps.Generator == nil {
		return nil, helper.NewError("create orchestrator", fmt.Errorf("embedder, store and generator are required"))
	}
	if deps.Catalog == nil {
		deps.Catalog = query.DefaultCatalog()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	planner := budget.NewPlanner(config)
	gateway := retrieval.NewGateway(deps.Store, planner.Estimator())

	return &Orchestrator{
		config:    config,
		embedder:  deps.Embedder,
		generator: deps.Generator,
		gateway:   gateway,
		strategy:  retrieval.NewScopedStrategy(gateway, deps.Private),
		expander:  query.NewExpander(deps.Catalog),
		reranker:  ranking.NewReranker(config),
		threshold: ranking.NewThresholdFilter(config),
		planner:   planner,
		builder:   prompt.NewBuilder(config),
		log:       logger,
	}, nil
}

// Gateway returns the retrieval gateway of the shared corpus.
func (o *Orchestrator) Gateway() *retrieval.Gateway {
	return o.gateway
}

// CheckHealth checks the shared corpus.
func (o *Orchestrator) CheckHealth(ctx context.Context) error {
	return o.gateway.CheckHealth(ctx)
}

// prepared is the per-call working state up to the prompt.
type prepared struct {
	request       model.QueryRequest
	controlIDs    []string
	expandedQuery string
	chunks        []model.ExpandedChunk
	references    []model.Reference
	contextTokens int
	generation    model.GenerationRequest
	empty         bool
}

// Query answers a question synchronously.
func (o *Orchestrator) Query(ctx context.Context, req model.QueryRequest) (*model.QueryResponse, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Query")
	defer span.End()
	start := time.Now()

	p, err := o.prepare(ctx, req)
	if err != nil {
		return nil, o.fail(span, err)
	}
	if p.empty {
		return &model.QueryResponse{
			Answer:          o.config.EmptyRetrievalMessage,
			RetrievedChunks: []model.ExpandedChunk{},
			References:      []model.Reference{},
		}, nil
	}

	o.transition(ctx, StateGenerating)
	generation, err := o.generate(ctx, p.generation)
	if err != nil {
		return nil, o.fail(span, err)
	}

	answer := prompt.StripPercentageClaims(generation.Text)
	if len(p.controlIDs) > 0 {
		answer = o.recoverSections(answer, p.controlIDs)
	}

	tokensUsed := generation.TokensUsed
	if tokensUsed <= 0 {
		estimator := o.planner.Estimator()
		tokensUsed = estimator.Tokens(p.generation.Prompt) + estimator.Tokens(generation.Text)
	}

	o.transition(ctx, StateDone)
	span.SetAttributes(attribute.Int("controlrag.tokens_used", tokensUsed))
	o.log.Info("Answered query",
		slog.Int("references", len(p.references)),
		slog.Int("context_tokens", p.contextTokens),
		slog.Int("tokens_used", tokensUsed),
		slog.Duration("duration", time.Since(start)),
	)

	return &model.QueryResponse{
		Answer:            answer,
		RetrievedChunks:   p.chunks,
		References:        p.references,
		TokensUsed:        tokensUsed,
		ContextTokensUsed: p.contextTokens,
	}, nil
}

// prepare runs every stage before generation.
func (o *Orchestrator) prepare(ctx context.Context, req model.QueryRequest) (*prepared, error) {
	req = req.WithDefaults(o.config)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.SearchScope.IncludesPrivate() && !o.strategy.HasPrivateCorpus() {
		return nil, helper.NewError("validate request", fmt.Errorf("%w: scope %q needs a private corpus", model.ErrInvalidRequest, req.SearchScope))
	}

	p := &prepared{request: req}

	o.transition(ctx, StateExpanding)
	p.controlIDs = query.ExtractControlIDs(req.Query)
	p.expandedQuery = o.expander.Expand(req.Query, p.controlIDs)

	o.transition(ctx, StateRetrieving)
	embedding, err := o.embed(ctx, p.expandedQuery)
	if err != nil {
		return nil, err
	}
	result, err := o.retrieve(ctx, req, embedding, p.controlIDs)
	if err != nil {
		return nil, err
	}

	o.transition(ctx, StateReranking)
	reranked := o.reranker.Rerank(req.Query, p.controlIDs, result.Candidates)

	o.transition(ctx, StateFiltering)
	filtered := o.threshold.Filter(reranked)
	if len(filtered) == 0 {
		o.transition(ctx, StateEmpty)
		o.log.Info("No relevant documents found", slog.String("phase", result.Phase.String()))
		p.empty = true
		p.chunks = []model.ExpandedChunk{}
		p.references = []model.Reference{}
		return p, nil
	}

	o.transition(ctx, StateBudgetFitting)
	expanded := o.gateway.ExpandToParentChunks(filtered)
	fitted, available := o.planner.Fit(p.expandedQuery, expanded, o.gateway)
	if len(fitted) == 0 && len(expanded) > 0 {
		// nothing fits, answer from the best parent alone
		fitted = o.gateway.FilterByTokenBudget(expanded[:1], available)
	}
	p.chunks = fitted
	p.contextTokens = budget.TotalTokens(fitted)
	p.references = make([]model.Reference, len(fitted))
	for i, c := range fitted {
		p.references[i] = model.NewReference(c)
	}

	o.transition(ctx, StatePrompting)
	text := o.builder.Build(p.expandedQuery, fitted, len(p.controlIDs) > 0)
	p.generation = o.builder.Request(text, req.MaxTokens)

	o.log.Debug("Prepared prompt",
		slog.String("phase", result.Phase.String()),
		slog.Any("control_ids", p.controlIDs),
		slog.Int("candidates", len(result.Candidates)),
		slog.Int("filtered", len(filtered)),
		slog.Int("fitted", len(fitted)),
		slog.Int("budget", available),
	)
	return p, nil
}

func (o *Orchestrator) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Embed")
	defer span.End()

	embedding, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return nil, recordError(span, helper.NewError("embed query", fmt.Errorf("%w: %w", model.ErrCollaboratorUnavailable, err)))
	}
	vector := embedding.First()
	if len(vector) == 0 {
		return nil, recordError(span, helper.NewError("embed query", fmt.Errorf("%w: empty embedding", model.ErrCollaboratorUnavailable)))
	}
	span.SetAttributes(attribute.Int("controlrag.dimensions", len(vector)))
	return vector, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, req model.QueryRequest, embedding []float32, ids []string) (*retrieval.Result, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Retrieve", trace.WithAttributes(
		attribute.String("controlrag.scope", string(req.SearchScope)),
		attribute.Int("controlrag.top_k", req.TopK),
		attribute.StringSlice("controlrag.control_ids", ids),
	))
	defer span.End()

	result, err := o.strategy.Retrieve(ctx, req.SearchScope, embedding, ids, req.Filters(), req.TopK)
	if err != nil {
		return nil, recordError(span, err)
	}
	span.SetAttributes(
		attribute.String("controlrag.phase", result.Phase.String()),
		attribute.Int("controlrag.candidates", len(result.Candidates)),
	)
	return result, nil
}

func (o *Orchestrator) generate(ctx context.Context, req model.GenerationRequest) (*model.Generation, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Generate")
	defer span.End()

	generation, err := o.generator.Generate(ctx, req)
	if err != nil {
		return nil, recordError(span, helper.NewError("generate answer", fmt.Errorf("%w: %w", model.ErrCollaboratorUnavailable, err)))
	}
	if generation == nil {
		return nil, recordError(span, helper.NewError("generate answer", fmt.Errorf("%w: empty generation", model.ErrCollaboratorUnavailable)))
	}
	return generation, nil
}

// recoverSections adds the sections missing from a partial four section
// answer. Answers without any section header are returned as they are.
func (o *Orchestrator) recoverSections(answer string, ids []string) string {
	parsed := prompt.ParseFourSectionControlResponse(answer)
	switch len(parsed.MissingSections) {
	case 0:
		return answer
	case 4:
		o.log.Warn("Answer has no section headers", slog.Any("control_ids", ids))
		return answer
	}

	o.log.Warn("Completed partial answer", slog.Any("control_ids", ids), slog.Any("synthesized", parsed.MissingSections))
	return prompt.AppendMissingSections(answer, parsed.MissingSections)
}

func (o *Orchestrator) transition(ctx context.Context, state State) {
	trace.SpanFromContext(ctx).AddEvent("state", trace.WithAttributes(attribute.String("controlrag.state", state.String())))
	o.log.Debug("State transition", slog.String("state", state.String()))
	if o.onTransition != nil {
		o.onTransition(state)
	}
}

// fail ends a query in the failed state.
func (o *Orchestrator) fail(span trace.Span, err error) error {
	recordError(span, err)
	o.log.Error("Query failed", slog.String("state", StateFailed.String()), slog.Any("error", err))
	if o.onTransition != nil {
		o.onTransition(StateFailed)
	}
	return err
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
