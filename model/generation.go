package model

// Embedding is the output of an embedding service.
type Embedding struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dimensions int         `json:"dimensions"`
}

// First returns the first vector, or nil.
func (e *Embedding) First() []float32 {
	if e == nil || len(e.Embeddings) == 0 {
		return nil
	}
	return e.Embeddings[0]
}

// GenerationRequest is a prompt with its sampling parameters.
type GenerationRequest struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Generation is a completed text generation.
type Generation struct {
	Text         string `json:"text"`
	TokensUsed   int    `json:"tokens_used"`
	FinishReason string `json:"finish_reason"`
}

// PrivateRecord is a row of the private corpus.
// Distance is a cosine distance, lower is closer.
type PrivateRecord struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Distance float64  `json:"distance"`
}

// Control is a catalog entry of a security control.
type Control struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Family       string   `json:"family"`
	Text         string   `json:"text"`
	Discussion   string   `json:"discussion,omitempty"`
	Related      []string `json:"related,omitempty"`
	DocumentType string   `json:"document_type"`
}
