package orchestrator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
	"go.opentelemetry.io/otel/attribute"
)

// QueryStream answers a question as a stream of events.
//
// Every stage up to the prompt runs before QueryStream returns, so
// request and retrieval errors are returned directly. The iterator yields
// the metadata event first and then one token event per generated
// fragment. Fragments are forwarded unmodified. Breaking out of the loop
// cancels the generation.
func (o *Orchestrator) QueryStream(ctx context.Context, req model.QueryRequest) (iter.Seq2[model.StreamEvent, error], error) {
	prepareCtx, span := tracer.Start(ctx, "orchestrator.QueryStream")
	p, err := o.prepare(prepareCtx, req)
	if err != nil {
		err = o.fail(span, err)
		span.End()
		return nil, err
	}
	span.End()

	return func(yield func(model.StreamEvent, error) bool) {
		if !yield(model.NewMetadataEvent(p.references, p.contextTokens), nil) {
			return
		}
		if p.empty {
			yield(model.NewTokenEvent(o.config.EmptyRetrievalMessage), nil)
			return
		}

		genCtx, span := tracer.Start(ctx, "orchestrator.GenerateStream")
		defer span.End()
		genCtx, cancel := context.WithCancel(genCtx)
		defer cancel()

		o.transition(genCtx, StateGenerating)
		fragments := 0
		for token, err := range o.generator.GenerateStream(genCtx, p.generation) {
			if err != nil {
				err = o.fail(span, helper.NewError("generate stream", fmt.Errorf("%w: %w", model.ErrCollaboratorUnavailable, err)))
				yield(model.StreamEvent{}, err)
				return
			}
			fragments++
			if !yield(model.NewTokenEvent(token), nil) {
				span.SetAttributes(attribute.Bool("controlrag.stopped", true))
				o.log.Debug("Stream stopped by caller", slog.Int("fragments", fragments))
				return
			}
		}

		o.transition(genCtx, StateDone)
		span.SetAttributes(attribute.Int("controlrag.fragments", fragments))
		o.log.Info("Streamed answer",
			slog.Int("references", len(p.references)),
			slog.Int("context_tokens", p.contextTokens),
			slog.Int("fragments", fragments),
		)
	}, nil
}
