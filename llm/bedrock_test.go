package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/siherrmann/controlrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBedrock struct {
	body     []byte
	err      error
	requests []*bedrockruntime.InvokeModelInput
}

func (f *fakeBedrock) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.requests = append(f.requests, params)
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func (f *fakeBedrock) InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error) {
	return nil, f.err
}

func chunkEvent(t *testing.T, v any) types.ResponseStream {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return &types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: data}}
}

func textDelta(text string) map[string]any {
	return map[string]any{"type": "content_block_delta", "delta": map[string]any{"type": "text_delta", "text": text}}
}

func TestBedrockGenerate(t *testing.T) {
	ctx := context.Background()
	req := model.GenerationRequest{Prompt: "What is AC-2?", Temperature: 0.2, MaxTokens: 512}

	t.Run("Request body follows the messages format", func(t *testing.T) {
		client := &fakeBedrock{body: []byte(`{"content":[{"type":"text","text":"Account "},{"type":"text","text":"management."}],"stop_reason":"end_turn","usage":{"input_tokens":100,"output_tokens":20}}`)}
		generator := newBedrockGenerator(client, "", nil)

		generation, err := generator.Generate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "Account management.", generation.Text)
		assert.Equal(t, 120, generation.TokensUsed)
		assert.Equal(t, "end_turn", generation.FinishReason)

		require.Len(t, client.requests, 1)
		assert.Equal(t, DefaultModelID, *client.requests[0].ModelId)

		var body claudeMessageRequest
		require.NoError(t, json.Unmarshal(client.requests[0].Body, &body))
		assert.Equal(t, "bedrock-2023-05-31", body.AnthropicVersion)
		assert.Equal(t, 512, body.MaxTokens)
		assert.Equal(t, 0.2, body.Temperature)
		assert.Equal(t, []claudeMessage{{Role: "user", Content: "What is AC-2?"}}, body.Messages)
	})

	t.Run("Empty prompt is rejected before the call", func(t *testing.T) {
		client := &fakeBedrock{}
		generator := newBedrockGenerator(client, "model", nil)

		_, err := generator.Generate(ctx, model.GenerationRequest{MaxTokens: 10})
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		assert.Empty(t, client.requests)
	})

	t.Run("Client errors are returned", func(t *testing.T) {
		cause := errors.New("ThrottlingException")
		generator := newBedrockGenerator(&fakeBedrock{err: cause}, "model", nil)

		_, err := generator.Generate(ctx, req)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("Malformed response is an error", func(t *testing.T) {
		generator := newBedrockGenerator(&fakeBedrock{body: []byte("not json")}, "model", nil)

		_, err := generator.Generate(ctx, req)
		assert.Error(t, err)
	})
}

func TestBedrockGenerateStreamInvokeError(t *testing.T) {
	cause := errors.New("AccessDeniedException")
	generator := newBedrockGenerator(&fakeBedrock{err: cause}, "model", nil)

	var errs []error
	for _, err := range generator.GenerateStream(context.Background(), model.GenerationRequest{Prompt: "p", MaxTokens: 5}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], cause)
}

func collect(ctx context.Context, events <-chan types.ResponseStream, streamErr func() error, limit int) ([]string, []error) {
	var texts []string
	var errs []error
	forwardStream(ctx, events, streamErr, func(text string, err error) bool {
		if err != nil {
			errs = append(errs, err)
			return false
		}
		texts = append(texts, text)
		return limit <= 0 || len(texts) < limit
	})
	return texts, errs
}

func TestForwardStream(t *testing.T) {
	noErr := func() error { return nil }

	t.Run("Only text deltas are forwarded in order", func(t *testing.T) {
		events := make(chan types.ResponseStream, 5)
		events <- chunkEvent(t, map[string]any{"type": "message_start"})
		events <- chunkEvent(t, textDelta("Purpose"))
		events <- chunkEvent(t, textDelta(": manage"))
		events <- chunkEvent(t, map[string]any{"type": "message_delta", "delta": map[string]any{"stop_reason": "end_turn"}})
		events <- chunkEvent(t, textDelta(" accounts"))
		close(events)

		texts, errs := collect(context.Background(), events, noErr, 0)
		assert.Empty(t, errs)
		assert.Equal(t, []string{"Purpose", ": manage", " accounts"}, texts)
	})

	t.Run("Stopping early ends the stream", func(t *testing.T) {
		events := make(chan types.ResponseStream, 3)
		events <- chunkEvent(t, textDelta("a"))
		events <- chunkEvent(t, textDelta("b"))
		events <- chunkEvent(t, textDelta("c"))
		close(events)

		texts, _ := collect(context.Background(), events, noErr, 1)
		assert.Equal(t, []string{"a"}, texts)
	})

	t.Run("Stream error after close is yielded", func(t *testing.T) {
		events := make(chan types.ResponseStream)
		close(events)
		cause := errors.New("connection reset")

		_, errs := collect(context.Background(), events, func() error { return cause }, 0)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], cause)
	})

	t.Run("Cancelled context ends the stream", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, errs := collect(ctx, make(chan types.ResponseStream), noErr, 0)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], context.Canceled)
	})

	t.Run("Undecodable chunk is an error", func(t *testing.T) {
		events := make(chan types.ResponseStream, 1)
		events <- &types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte("{")}}
		close(events)

		_, errs := collect(context.Background(), events, noErr, 0)
		assert.Len(t, errs, 1)
	})
}
