package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
)

// DefaultEmbeddingModel produces 384 dimensional sentence embeddings.
const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// HugotEmbedder embeds text with a local sentence transformer.
// It is safe for concurrent use.
type HugotEmbedder struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	// the Go backend pipeline is not safe for concurrent runs
	mu sync.Mutex
}

// NewHugotEmbedder loads modelName from modelDir, downloading it on first use.
func NewHugotEmbedder(modelDir string, modelName string) (*HugotEmbedder, error) {
	modelPath, err := helper.PrepareModelIn(modelDir, modelName, "")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "controlrag-embedder",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &HugotEmbedder{
		session:  session,
		pipeline: sentencePipeline,
	}, nil
}

// DefaultEmbedder creates an embedder with DefaultEmbeddingModel.
func DefaultEmbedder() (*HugotEmbedder, error) {
	return NewHugotEmbedder(helper.DefaultModelDir, DefaultEmbeddingModel)
}

// Embed returns the embedding of text.
func (e *HugotEmbedder) Embed(ctx context.Context, text string) (*model.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	result, err := e.pipeline.RunPipeline([]string{text})
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding generated")
	}

	return &model.Embedding{
		Embeddings: result.Embeddings,
		Dimensions: len(result.Embeddings[0]),
	}, nil
}

// EmbedFunc adapts the embedder to the ingestion pipeline.
func (e *HugotEmbedder) EmbedFunc() EmbedFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return embedding.First(), nil
	}
}

// Close releases the hugot session.
func (e *HugotEmbedder) Close() error {
	if e == nil || e.session == nil {
		return nil
	}
	return e.session.Destroy()
}
