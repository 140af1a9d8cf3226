package model

import (
	"fmt"

	"github.com/siherrmann/controlrag/helper"
)

// RagConfig holds the tunable scoring and budgeting policy of the orchestrator.
type RagConfig struct {
	// Request defaults
	DefaultTopK      int     `json:"default_top_k" yaml:"default_top_k"`
	DefaultMaxTokens int     `json:"default_max_tokens" yaml:"default_max_tokens"`
	Temperature      float64 `json:"temperature" yaml:"temperature"`

	// Reranking
	ExactMatchBoost float64 `json:"exact_match_boost" yaml:"exact_match_boost"`
	KeywordBoostMax float64 `json:"keyword_boost_max" yaml:"keyword_boost_max"`

	// Threshold filtering
	BaseMinScore         float64 `json:"base_min_score" yaml:"base_min_score"`
	ControlMatchMinScore float64 `json:"control_match_min_score" yaml:"control_match_min_score"` // for candidates carrying a control id

	// Token budget
	CharsPerToken             float64 `json:"chars_per_token" yaml:"chars_per_token"`
	ContextWindowTokens       int     `json:"context_window_tokens" yaml:"context_window_tokens"`
	FixedPreambleTokens       int     `json:"fixed_preamble_tokens" yaml:"fixed_preamble_tokens"`
	PerChunkOverheadTokens    int     `json:"per_chunk_overhead_tokens" yaml:"per_chunk_overhead_tokens"`
	SeparatorOverheadTokens   int     `json:"separator_overhead_tokens" yaml:"separator_overhead_tokens"`
	InstructionOverheadTokens int     `json:"instruction_overhead_tokens" yaml:"instruction_overhead_tokens"`
	ResponseReserveTokens     int     `json:"response_reserve_tokens" yaml:"response_reserve_tokens"`
	MinimumChunkTokens        int     `json:"minimum_chunk_tokens" yaml:"minimum_chunk_tokens"`

	// Answer shown when retrieval finds nothing
	EmptyRetrievalMessage string `json:"empty_retrieval_message" yaml:"empty_retrieval_message"`
}

// DefaultRagConfig returns the tuned default policy
func DefaultRagConfig() RagConfig {
	return RagConfig{
		DefaultTopK:               10,
		DefaultMaxTokens:          1024,
		Temperature:               0.2,
		ExactMatchBoost:           0.15,
		KeywordBoostMax:           0.10,
		BaseMinScore:              0.45,
		ControlMatchMinScore:      0.32,
		CharsPerToken:             4,
		ContextWindowTokens:       8192,
		FixedPreambleTokens:       120,
		PerChunkOverheadTokens:    24,
		SeparatorOverheadTokens:   2,
		InstructionOverheadTokens: 160,
		ResponseReserveTokens:     1024,
		MinimumChunkTokens:        512,
		EmptyRetrievalMessage:     "No relevant documents found for your question. Try naming a specific control (for example AC-2) or rephrasing the query.",
	}
}

// Validate checks the invariants between the policy values.
func (c RagConfig) Validate() error {
	switch {
	case c.DefaultTopK <= 0:
		return helper.NewError("validate rag config", fmt.Errorf("default_top_k must be positive, got %d", c.DefaultTopK))
	case c.DefaultMaxTokens <= 0:
		return helper.NewError("validate rag config", fmt.Errorf("default_max_tokens must be positive, got %d", c.DefaultMaxTokens))
	case c.Temperature < 0:
		return helper.NewError("validate rag config", fmt.Errorf("temperature must not be negative"))
	case c.ExactMatchBoost < 0 || c.KeywordBoostMax < 0:
		return helper.NewError("validate rag config", fmt.Errorf("boosts must not be negative"))
	case c.ControlMatchMinScore >= c.BaseMinScore:
		return helper.NewError("validate rag config", fmt.Errorf("control_match_min_score (%.2f) must be lower than base_min_score (%.2f)", c.ControlMatchMinScore, c.BaseMinScore))
	case c.CharsPerToken <= 0:
		return helper.NewError("validate rag config", fmt.Errorf("chars_per_token must be positive"))
	case c.ContextWindowTokens <= 0 || c.MinimumChunkTokens <= 0:
		return helper.NewError("validate rag config", fmt.Errorf("context_window_tokens and minimum_chunk_tokens must be positive"))
	case c.FixedPreambleTokens < 0 || c.PerChunkOverheadTokens < 0 || c.SeparatorOverheadTokens < 0 ||
		c.InstructionOverheadTokens < 0 || c.ResponseReserveTokens < 0:
		return helper.NewError("validate rag config", fmt.Errorf("overhead and reserve tokens must not be negative"))
	case c.EmptyRetrievalMessage == "":
		return helper.NewError("validate rag config", fmt.Errorf("empty_retrieval_message must be set"))
	}
	return nil
}
