package model

// Reference is a citation of a chunk used for an answer.
// Score is numeric and meant for programmatic use only.
type Reference struct {
	ChunkID          string  `json:"chunk_id"`
	ControlID        string  `json:"control_id,omitempty"`
	DocumentType     string  `json:"document_type"`
	Score            float64 `json:"score"`
	ParentTokenCount int     `json:"parent_token_count"`
}

// NewReference creates the citation of an expanded chunk.
func NewReference(chunk ExpandedChunk) Reference {
	return Reference{
		ChunkID:          chunk.SmallChunkID,
		ControlID:        chunk.Metadata.ControlID,
		DocumentType:     chunk.Metadata.DocumentType,
		Score:            chunk.Score,
		ParentTokenCount: chunk.ParentTokenCount,
	}
}

// QueryResponse is the complete answer to a query.
type QueryResponse struct {
	Answer            string          `json:"answer"`
	RetrievedChunks   []ExpandedChunk `json:"retrieved_chunks"`
	References        []Reference     `json:"references"`
	TokensUsed        int             `json:"tokens_used"`
	ContextTokensUsed int             `json:"context_tokens_used"`
}

// StreamEventType tags a StreamEvent.
type StreamEventType string

const (
	StreamEventMetadata StreamEventType = "metadata"
	StreamEventToken    StreamEventType = "token"
)

// StreamMetadata is the payload of the first event of a stream.
type StreamMetadata struct {
	References        []Reference `json:"references"`
	ContextTokensUsed int         `json:"context_tokens_used"`
}

// StreamEvent is either the metadata event or a generated token.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Metadata *StreamMetadata `json:"metadata,omitempty"`
	Token    string          `json:"token,omitempty"`
}

// NewMetadataEvent creates the metadata event.
func NewMetadataEvent(references []Reference, contextTokens int) StreamEvent {
	return StreamEvent{
		Type: StreamEventMetadata,
		Metadata: &StreamMetadata{
			References:        references,
			ContextTokensUsed: contextTokens,
		},
	}
}

// NewTokenEvent creates a token event.
func NewTokenEvent(token string) StreamEvent {
	return StreamEvent{Type: StreamEventToken, Token: token}
}

// FourSectionResponse is the parsed form of a structured control answer.
type FourSectionResponse struct {
	Purpose               string   `json:"purpose"`
	ControlRequirements   []string `json:"control_requirements"`
	CommonImplementations []string `json:"common_implementations"`
	TypicalEvidence       []string `json:"typical_evidence"`
	IsValid               bool     `json:"is_valid"`
	MissingSections       []string `json:"missing_sections"`
}
