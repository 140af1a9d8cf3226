package orchestrator

import (
	"context"
	"iter"

	"github.com/siherrmann/controlrag/core/query"
	"github.com/siherrmann/controlrag/core/retrieval"
	"github.com/siherrmann/controlrag/model"
)

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (*model.Embedding, error)
}

// Generator produces the answer text from a prompt.
// GenerateStream yields text fragments in order and stops early when
// ctx is cancelled.
type Generator interface {
	Generate(ctx context.Context, req model.GenerationRequest) (*model.Generation, error)
	GenerateStream(ctx context.Context, req model.GenerationRequest) iter.Seq2[string, error]
}

// Dependencies are the collaborators of an Orchestrator.
// Private and Catalog are optional.
type Dependencies struct {
	Embedder  Embedder
	Store     retrieval.VectorStore
	Private   retrieval.PrivateCorpus
	Generator Generator
	Catalog   query.ControlCatalog
}
