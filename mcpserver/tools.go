package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/siherrmann/controlrag/model"
)

// QueryInput is the input schema of the query_controls tool.
type QueryInput struct {
	Query    string   `json:"query" jsonschema:"the question about security controls"`
	Scope    string   `json:"scope,omitempty" jsonschema:"corpus to search: shared, private or both (default shared)"`
	TopK     int      `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve"`
	Controls []string `json:"controls,omitempty" jsonschema:"restrict retrieval to these control ids"`
	Families []string `json:"families,omitempty" jsonschema:"restrict retrieval to these control families"`
}

// QueryOutput is the output schema of the query_controls tool.
type QueryOutput struct {
	Answer            string            `json:"answer"`
	References        []model.Reference `json:"references"`
	TokensUsed        int               `json:"tokens_used"`
	ContextTokensUsed int               `json:"context_tokens_used"`
}

// HealthInput is the empty input of the check_health tool.
type HealthInput struct{}

// HealthOutput is the output schema of the check_health tool.
type HealthOutput struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_controls",
		Description: "Answer a question about NIST SP 800-53 security controls with cited references",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "check_health",
		Description: "Check that the control corpus is reachable",
	}, s.handleHealth)
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	scope, err := model.ParseSearchScope(input.Scope)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	response, err := s.service.Query(ctx, model.QueryRequest{
		Query:          input.Query,
		ControlFilters: input.Controls,
		FamilyFilters:  input.Families,
		TopK:           input.TopK,
		SearchScope:    scope,
	})
	if err != nil {
		s.log.Warn("Tool query_controls failed", slog.String("error", err.Error()))
		return nil, QueryOutput{}, err
	}

	return nil, QueryOutput{
		Answer:            response.Answer,
		References:        response.References,
		TokensUsed:        response.TokensUsed,
		ContextTokensUsed: response.ContextTokensUsed,
	}, nil
}

func (s *Server) handleHealth(ctx context.Context, _ *mcp.CallToolRequest, _ HealthInput) (*mcp.CallToolResult, HealthOutput, error) {
	if err := s.service.CheckHealth(ctx); err != nil {
		return nil, HealthOutput{Healthy: false, Error: err.Error()}, nil
	}
	return nil, HealthOutput{Healthy: true}, nil
}
