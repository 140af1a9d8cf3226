package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a stored small chunk row of the shared corpus.
type Chunk struct {
	ID         int       `json:"id"`
	RID        uuid.UUID `json:"rid"`
	Content    string    `json:"content"`
	Path       string    `json:"path"` // ltree path
	Embedding  []float32 `json:"embedding,omitempty"`
	ChunkIndex *int      `json:"chunk_index,omitempty"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
}

// ChunkMetadata is the typed view of the metadata every retrieval candidate carries.
type ChunkMetadata struct {
	ControlID        string `json:"control_id,omitempty"`
	ControlName      string `json:"control_name,omitempty"`
	DocumentType     string `json:"document_type"`
	Family           string `json:"family,omitempty"`
	ParentID         string `json:"parent_id,omitempty"`
	ParentText       string `json:"parent_text"`
	ParentTokenCount int    `json:"parent_token_count"`
}

// ChunkCandidate is a small chunk hit returned by a vector store.
type ChunkCandidate struct {
	ID        string        `json:"id"`
	SmallText string        `json:"small_text"`
	Metadata  ChunkMetadata `json:"metadata"`
	RawScore  float64       `json:"raw_score"`
}

// ParentKey identifies the parent region of the candidate.
func (c ChunkCandidate) ParentKey() string {
	if c.Metadata.ParentID != "" {
		return c.Metadata.ParentID
	}
	if c.Metadata.ParentText != "" {
		return c.Metadata.ParentText
	}
	return c.ID
}

// RerankedChunk is a candidate with its adjusted score.
type RerankedChunk struct {
	ChunkCandidate
	AdjustedScore float64 `json:"adjusted_score"`
	OriginalScore float64 `json:"original_score"`
}

// ExpandedChunk is the parent region of one or more small chunk hits.
type ExpandedChunk struct {
	ParentText       string        `json:"parent_text"`
	ParentTokenCount int           `json:"parent_token_count"`
	SmallChunkID     string        `json:"small_chunk_id"`
	SmallChunkText   string        `json:"small_chunk_text"`
	Metadata         ChunkMetadata `json:"metadata"`
	Score            float64       `json:"score"`
}
