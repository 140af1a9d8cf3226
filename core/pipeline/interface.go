package pipeline

import (
	"context"
	"fmt"

	"github.com/siherrmann/controlrag/core/budget"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
)

// ChunkFunc splits text into chunks with their hierarchical paths.
// Paths follow the ltree format (e.g. "ac_2.p0.s1").
type ChunkFunc func(text string, basePath string) ([]ChunkWithPath, error)

// EmbedFunc generates the embedding of text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// ChunkWithPath is a small chunk with its path and parent metadata.
type ChunkWithPath struct {
	Content    string
	Path       string // ltree path
	ChunkIndex *int
	Metadata   model.Metadata
}

// Pipeline chunks and embeds control texts for the shared corpus.
// Estimator counts parent tokens and must match the one used for
// query planning.
type Pipeline struct {
	Chunker   ChunkFunc
	Embedder  EmbedFunc
	Estimator budget.Estimator
}

// NewPipeline creates a new processing pipeline.
func NewPipeline(chunker ChunkFunc, embedder EmbedFunc, estimator budget.Estimator) *Pipeline {
	return &Pipeline{
		Chunker:   chunker,
		Embedder:  embedder,
		Estimator: estimator,
	}
}

// Process builds the catalog chunks of a control and embeds them.
func (p *Pipeline) Process(ctx context.Context, control model.Control) ([]*model.Chunk, error) {
	chunks, err := ControlChunks(control, p.Estimator)
	if err != nil {
		return nil, err
	}
	return p.embed(ctx, chunks)
}

// ProcessText splits free text with the chunker and embeds every small chunk.
// Entries of base are copied into the metadata of each chunk.
func (p *Pipeline) ProcessText(ctx context.Context, text string, basePath string, base model.Metadata) ([]*model.Chunk, error) {
	if p.Chunker == nil {
		return nil, helper.NewError("process text", fmt.Errorf("chunker not set"))
	}

	chunks, err := p.Chunker(text, basePath)
	if err != nil {
		return nil, helper.NewError("chunk text", err)
	}
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = model.Metadata{}
		}
		for k, v := range base {
			if _, ok := chunks[i].Metadata[k]; !ok {
				chunks[i].Metadata[k] = v
			}
		}
	}
	return p.embed(ctx, chunks)
}

func (p *Pipeline) embed(ctx context.Context, chunks []ChunkWithPath) ([]*model.Chunk, error) {
	if p.Embedder == nil {
		return nil, helper.NewError("embed chunks", fmt.Errorf("embedder not set"))
	}

	result := make([]*model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, helper.NewError("embed chunks", err)
		}

		embedding, err := p.Embedder(ctx, c.Content)
		if err != nil {
			return nil, helper.NewError("embed chunk "+c.Path, err)
		}

		result = append(result, &model.Chunk{
			Content:    c.Content,
			Path:       c.Path,
			Embedding:  embedding,
			ChunkIndex: c.ChunkIndex,
			Metadata:   c.Metadata,
		})
	}
	return result, nil
}
