package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
)

const anthropicVersion = "bedrock-2023-05-31"

// DefaultModelID is the Bedrock model used when none is configured.
const DefaultModelID = "anthropic.claude-3-haiku-20240307-v1:0"

type bedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

type claudeMessageRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeMessageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// claudeStreamChunk is one event of a streamed response.
// Only content_block_delta events carry answer text.
type claudeStreamChunk struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
}

// BedrockGenerator generates answers with an Anthropic model on Bedrock.
type BedrockGenerator struct {
	client  bedrockAPI
	modelID string
	logger  *slog.Logger
}

// NewBedrockGenerator loads the default AWS configuration for region.
func NewBedrockGenerator(ctx context.Context, region string, modelID string, logger *slog.Logger) (*BedrockGenerator, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, helper.NewError("load aws config", err)
	}
	return newBedrockGenerator(bedrockruntime.NewFromConfig(cfg), modelID, logger), nil
}

func newBedrockGenerator(client bedrockAPI, modelID string, logger *slog.Logger) *BedrockGenerator {
	if modelID == "" {
		modelID = DefaultModelID
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BedrockGenerator{client: client, modelID: modelID, logger: logger}
}

// ModelID returns the configured model.
func (g *BedrockGenerator) ModelID() string {
	return g.modelID
}

func (g *BedrockGenerator) body(req model.GenerationRequest) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", model.ErrInvalidRequest)
	}
	if req.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens must be positive", model.ErrInvalidRequest)
	}
	return json.Marshal(claudeMessageRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		Messages:         []claudeMessage{{Role: "user", Content: req.Prompt}},
	})
}

// Generate returns the complete answer for req.
func (g *BedrockGenerator) Generate(ctx context.Context, req model.GenerationRequest) (*model.Generation, error) {
	body, err := g.body(req)
	if err != nil {
		return nil, helper.NewError("build request", err)
	}

	output, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.modelID),
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, helper.NewError("invoke model", err)
	}

	var response claudeMessageResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, helper.NewError("unmarshal response", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	g.logger.Debug("Generated answer",
		slog.String("model", g.modelID),
		slog.String("stop_reason", response.StopReason),
		slog.Int("output_tokens", response.Usage.OutputTokens),
	)

	return &model.Generation{
		Text:         text.String(),
		TokensUsed:   response.Usage.InputTokens + response.Usage.OutputTokens,
		FinishReason: response.StopReason,
	}, nil
}

// GenerateStream yields the answer text fragments for req as they arrive.
func (g *BedrockGenerator) GenerateStream(ctx context.Context, req model.GenerationRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body, err := g.body(req)
		if err != nil {
			yield("", helper.NewError("build request", err))
			return
		}

		output, err := g.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(g.modelID),
			Body:        body,
			Accept:      aws.String("application/json"),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			yield("", helper.NewError("invoke model stream", err))
			return
		}

		stream := output.GetStream()
		defer stream.Close()

		forwardStream(ctx, stream.Events(), stream.Err, yield)
	}
}

// forwardStream yields the text of every content delta in events until
// the channel closes, ctx is done or yield returns false.
func forwardStream(ctx context.Context, events <-chan types.ResponseStream, streamErr func() error, yield func(string, error) bool) {
	for {
		select {
		case <-ctx.Done():
			yield("", ctx.Err())
			return
		case event, ok := <-events:
			if !ok {
				if err := streamErr(); err != nil {
					yield("", helper.NewError("stream", err))
				}
				return
			}
			chunk, isChunk := event.(*types.ResponseStreamMemberChunk)
			if !isChunk {
				continue
			}
			text, err := decodeChunk(chunk.Value.Bytes)
			if err != nil {
				yield("", helper.NewError("decode chunk", err))
				return
			}
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func decodeChunk(data []byte) (string, error) {
	var chunk claudeStreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", err
	}
	if chunk.Type != "content_block_delta" {
		return "", nil
	}
	return chunk.Delta.Text, nil
}
