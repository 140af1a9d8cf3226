package model

import (
	"fmt"
	"strings"

	"github.com/siherrmann/controlrag/helper"
)

// SearchScope selects the corpora a query searches.
type SearchScope string

const (
	SearchScopeShared  SearchScope = "shared"
	SearchScopePrivate SearchScope = "private"
	SearchScopeBoth    SearchScope = "both"
)

// IncludesShared reports whether the shared corpus is searched.
func (s SearchScope) IncludesShared() bool {
	return s == SearchScopeShared || s == SearchScopeBoth
}

// IncludesPrivate reports whether the private corpus is searched.
func (s SearchScope) IncludesPrivate() bool {
	return s == SearchScopePrivate || s == SearchScopeBoth
}

// ParseSearchScope parses a scope name, defaulting to shared for "".
func ParseSearchScope(s string) (SearchScope, error) {
	switch scope := SearchScope(strings.ToLower(strings.TrimSpace(s))); scope {
	case "":
		return SearchScopeShared, nil
	case SearchScopeShared, SearchScopePrivate, SearchScopeBoth:
		return scope, nil
	}
	return "", helper.NewError("parse search scope", fmt.Errorf("%w: unknown scope %q", ErrInvalidRequest, s))
}

// SearchFilters is a conjunction of optional set constraints.
// An empty set leaves the field unconstrained.
type SearchFilters struct {
	DocumentTypes []string `json:"document_types,omitempty"`
	Families      []string `json:"families,omitempty"`
	ControlIDs    []string `json:"control_ids,omitempty"`
}

// WithControlIDs returns a copy constrained to ids.
func (f SearchFilters) WithControlIDs(ids []string) SearchFilters {
	f.ControlIDs = ids
	return f
}

// Matches reports whether metadata satisfies every constraint. Families
// and control ids compare case-insensitively, as in the shared store.
func (f SearchFilters) Matches(metadata ChunkMetadata) bool {
	return matchesAny(f.DocumentTypes, metadata.DocumentType, false) &&
		matchesAny(f.Families, metadata.Family, true) &&
		matchesAny(f.ControlIDs, metadata.ControlID, true)
}

func matchesAny(allowed []string, value string, fold bool) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == value || (fold && strings.EqualFold(a, value)) {
			return true
		}
	}
	return false
}

// QueryRequest is a single question to the orchestrator.
type QueryRequest struct {
	Query               string      `json:"query"`
	ControlFilters      []string    `json:"control_filters,omitempty"`
	DocumentTypeFilters []string    `json:"document_type_filters,omitempty"`
	FamilyFilters       []string    `json:"family_filters,omitempty"`
	TopK                int         `json:"top_k,omitempty"`
	MaxTokens           int         `json:"max_tokens,omitempty"`
	SearchScope         SearchScope `json:"search_scope,omitempty"`
}

// WithDefaults fills unset fields from the config.
func (r QueryRequest) WithDefaults(config RagConfig) QueryRequest {
	if r.TopK == 0 {
		r.TopK = config.DefaultTopK
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = config.DefaultMaxTokens
	}
	if r.SearchScope == "" {
		r.SearchScope = SearchScopeShared
	}
	return r
}

// Validate checks a request after defaults were applied.
func (r QueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return helper.NewError("validate request", fmt.Errorf("%w: query is empty", ErrInvalidRequest))
	}
	if r.TopK <= 0 {
		return helper.NewError("validate request", fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidRequest, r.TopK))
	}
	if r.MaxTokens <= 0 {
		return helper.NewError("validate request", fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidRequest, r.MaxTokens))
	}
	if _, err := ParseSearchScope(string(r.SearchScope)); err != nil {
		return err
	}
	return nil
}

// Filters returns the caller supplied filters of the request.
func (r QueryRequest) Filters() SearchFilters {
	return SearchFilters{
		DocumentTypes: r.DocumentTypeFilters,
		Families:      r.FamilyFilters,
		ControlIDs:    r.ControlFilters,
	}
}
