package controlrag

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"sync"

	"github.com/siherrmann/controlrag/config"
	"github.com/siherrmann/controlrag/core/budget"
	"github.com/siherrmann/controlrag/core/orchestrator"
	"github.com/siherrmann/controlrag/core/pipeline"
	"github.com/siherrmann/controlrag/core/query"
	"github.com/siherrmann/controlrag/database"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/llm"
	"github.com/siherrmann/controlrag/model"
	loadSql "github.com/siherrmann/controlrag/sql"
)

// ControlRag answers questions about security controls from a postgres
// backed corpus.
type ControlRag struct {
	DB        *helper.Database
	Chunks    *database.ChunksDBHandler
	Private   *database.PrivateCorpusDBHandler // optional
	Pipeline  *pipeline.Pipeline
	Embedder  orchestrator.Embedder
	Generator orchestrator.Generator
	Config    *config.Config

	mu           sync.Mutex
	orchestrator *orchestrator.Orchestrator
	closers      []func() error
	// Logging
	log *slog.Logger
}

// NewControlRag connects to the database and prepares the shared corpus.
// The private corpus is opened when cfg.Private.DSN is set.
func NewControlRag(ctx context.Context, dbConfig *helper.DatabaseConfiguration, cfg *config.Config) (*ControlRag, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, helper.NewError("validate config", err)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, err
	}

	logger := helper.NewLogger(os.Stderr, level)

	db := helper.NewDatabase("controlrag", dbConfig, logger)
	if err := loadSql.Init(db.Instance); err != nil {
		db.Close()
		return nil, helper.NewError("initialize database extensions", err)
	}

	chunks, err := database.NewChunksDBHandler(db, cfg.Embedder.Dimension, false)
	if err != nil {
		db.Close()
		return nil, helper.NewError("create chunks handler", err)
	}

	c := &ControlRag{
		DB:     db,
		Chunks: chunks,
		Config: cfg,
		log:    logger,
	}

	if cfg.Private.DSN != "" {
		private, err := database.NewPrivateCorpusDBHandler(ctx, cfg.Private.DSN, cfg.Private.Table, cfg.Embedder.Dimension, logger)
		if err != nil {
			db.Close()
			return nil, helper.NewError("create private corpus handler", err)
		}
		c.Private = private
	}

	return c, nil
}

// Close releases the embedder and all database connections.
func (c *ControlRag) Close() error {
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			c.log.Warn("Error closing resource", slog.String("error", err.Error()))
		}
	}
	c.closers = nil
	if c.Private != nil {
		c.Private.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// SetEmbedder sets the embedder used for queries and ingestion. The
// ingestion pipeline uses the default small-to-big chunker and counts
// tokens with the configured ratio of the query planner.
func (c *ControlRag) SetEmbedder(embedder orchestrator.Embedder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	estimator := budget.NewEstimator(c.Config.Rag.CharsPerToken)
	c.Embedder = embedder
	c.Pipeline = pipeline.NewPipeline(pipeline.DefaultChunker(estimator), embedFunc(embedder), estimator)
	c.orchestrator = nil
}

// UseDefaultEmbedder loads the configured hugot model.
func (c *ControlRag) UseDefaultEmbedder() error {
	embedder, err := pipeline.NewHugotEmbedder(c.Config.Embedder.ModelDir, c.Config.Embedder.ModelName)
	if err != nil {
		return helper.NewError("create embedder", err)
	}
	c.closers = append(c.closers, embedder.Close)
	c.SetEmbedder(embedder)
	return nil
}

// SetGenerator sets the answer generator.
func (c *ControlRag) SetGenerator(generator orchestrator.Generator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Generator = generator
	c.orchestrator = nil
}

// UseBedrockGenerator creates the configured Bedrock generator.
func (c *ControlRag) UseBedrockGenerator(ctx context.Context) error {
	generator, err := llm.NewBedrockGenerator(ctx, c.Config.Generator.Region, c.Config.Generator.ModelID, c.log)
	if err != nil {
		return helper.NewError("create generator", err)
	}
	c.SetGenerator(generator)
	return nil
}

// Orchestrator returns the query orchestrator, creating it on first use.
// The catalog is the built-in one extended by the control names in the store.
func (c *ControlRag) Orchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.orchestrator != nil {
		return c.orchestrator, nil
	}
	if c.Embedder == nil {
		return nil, helper.NewError("create orchestrator", fmt.Errorf("embedder not set, use SetEmbedder() first"))
	}
	if c.Generator == nil {
		return nil, helper.NewError("create orchestrator", fmt.Errorf("generator not set, use SetGenerator() first"))
	}

	catalog := query.DefaultCatalog()
	names, err := c.Chunks.SelectControlNames(ctx)
	if err != nil {
		c.log.Warn("Using built-in control catalog", slog.String("error", err.Error()))
	} else {
		catalog.Merge(names)
	}

	deps := orchestrator.Dependencies{
		Embedder:  c.Embedder,
		Store:     c.Chunks,
		Generator: c.Generator,
		Catalog:   catalog,
	}
	if c.Private != nil {
		deps.Private = c.Private
	}

	o, err := orchestrator.New(deps, c.Config.Rag, c.log)
	if err != nil {
		return nil, err
	}
	c.orchestrator = o

	c.log.Info("Created orchestrator", slog.Int("catalog_size", len(catalog)), slog.Bool("private_corpus", c.Private != nil))

	return o, nil
}

// Query answers req.
func (c *ControlRag) Query(ctx context.Context, req model.QueryRequest) (*model.QueryResponse, error) {
	o, err := c.Orchestrator(ctx)
	if err != nil {
		return nil, err
	}
	return o.Query(ctx, req)
}

// QueryStream answers req as a stream of events.
func (c *ControlRag) QueryStream(ctx context.Context, req model.QueryRequest) (iter.Seq2[model.StreamEvent, error], error) {
	o, err := c.Orchestrator(ctx)
	if err != nil {
		return nil, err
	}
	return o.QueryStream(ctx, req)
}

// CheckHealth checks the shared and, if configured, the private corpus.
func (c *ControlRag) CheckHealth(ctx context.Context) error {
	if err := c.Chunks.CheckHealth(ctx); err != nil {
		return helper.NewError("shared corpus", fmt.Errorf("%w: %w", model.ErrCollaboratorUnavailable, err))
	}
	if c.Private != nil {
		if err := c.Private.CheckHealth(ctx); err != nil {
			return helper.NewError("private corpus", fmt.Errorf("%w: %w", model.ErrCollaboratorUnavailable, err))
		}
	}
	return nil
}

// IngestControls chunks, embeds and inserts controls into the shared corpus.
// It returns the number of inserted chunks.
func (c *ControlRag) IngestControls(ctx context.Context, controls []model.Control) (int, error) {
	c.mu.Lock()
	p := c.Pipeline
	c.mu.Unlock()
	if p == nil {
		return 0, helper.NewError("ingest controls", fmt.Errorf("pipeline not set, use SetEmbedder() first"))
	}

	inserted := 0
	for _, control := range controls {
		chunks, err := p.Process(ctx, control)
		if err != nil {
			return inserted, helper.NewError(fmt.Sprintf("process control %s", control.ID), err)
		}
		for _, chunk := range chunks {
			if err := c.Chunks.InsertChunk(ctx, chunk); err != nil {
				return inserted, helper.NewError(fmt.Sprintf("insert chunk of %s", control.ID), err)
			}
			inserted++
		}
	}

	c.log.Info("Ingested controls", slog.Int("controls", len(controls)), slog.Int("chunks", inserted))

	// Reload the catalog with the new names on the next query.
	c.mu.Lock()
	c.orchestrator = nil
	c.mu.Unlock()

	return inserted, nil
}

// IngestPrivate embeds text and stores it in the private corpus under id.
func (c *ControlRag) IngestPrivate(ctx context.Context, id string, text string, metadata model.Metadata) error {
	if c.Private == nil {
		return helper.NewError("ingest private", fmt.Errorf("%w: no private corpus configured", model.ErrInvalidRequest))
	}
	c.mu.Lock()
	embedder := c.Embedder
	c.mu.Unlock()
	if embedder == nil {
		return helper.NewError("ingest private", fmt.Errorf("embedder not set, use SetEmbedder() first"))
	}

	embedding, err := embedder.Embed(ctx, text)
	if err != nil {
		return helper.NewError("embed private document", err)
	}
	return c.Private.Insert(ctx, id, text, metadata, embedding.First())
}

// RebuildIndex replaces the vector index of the shared corpus.
func (c *ControlRag) RebuildIndex(ctx context.Context, indexType database.IndexType, options database.IndexOptions) error {
	return c.Chunks.RebuildIndex(ctx, indexType, options)
}

func embedFunc(embedder orchestrator.Embedder) pipeline.EmbedFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		embedding, err := embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if embedding.First() == nil {
			return nil, fmt.Errorf("embedder returned no vector")
		}
		return embedding.First(), nil
	}
}
