package prompt

import (
	"fmt"
	"strings"

	"github.com/siherrmann/controlrag/model"
)

const preamble = `You are a security compliance assistant. Answer the question using only the reference material below. ` +
	`If the references do not contain the answer, say so instead of guessing. Cite references by their number.`

const controlInstructions = `Answer with exactly these four sections, using these exact headers:

## Purpose
One short paragraph on what the control is meant to achieve.

## Control Requirements
Bullet list of what the control mandates. Only include requirements stated in the references.

## Common Implementations
Bullet list of typical ways organizations implement the control. This is optional guidance, not a requirement.

## Typical Evidence
Bullet list of artifacts an assessor would expect to see.

Keep mandated requirements and optional implementation guidance strictly separate. Do not state relevance, match or confidence percentages.`

const generalInstructions = `Answer concisely in Markdown. Distinguish clearly between what a control requires and what is optional guidance. ` +
	`Do not state relevance, match or confidence percentages.`

// Builder assembles the generation prompt from the surviving chunks.
type Builder struct {
	temperature      float64
	defaultMaxTokens int
}

// NewBuilder creates a builder with the configured sampling defaults.
func NewBuilder(config model.RagConfig) *Builder {
	return &Builder{
		temperature:      config.Temperature,
		defaultMaxTokens: config.DefaultMaxTokens,
	}
}

// Build renders the prompt. Scores are never written into the prompt.
func (b *Builder) Build(question string, chunks []model.ExpandedChunk, controlQuery bool) string {
	var sb strings.Builder

	sb.WriteString(preamble)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\n")

	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		sb.WriteString(referenceHeader(i+1, c.Metadata))
		sb.WriteString("\n")
		text := c.ParentText
		if text == "" {
			text = c.SmallChunkText
		}
		sb.WriteString(strings.TrimSpace(text))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if controlQuery {
		sb.WriteString(controlInstructions)
	} else {
		sb.WriteString(generalInstructions)
	}
	sb.WriteString("\n")

	return sb.String()
}

// Request wraps the prompt with the sampling parameters.
// maxTokens <= 0 uses the configured default.
func (b *Builder) Request(prompt string, maxTokens int) model.GenerationRequest {
	if maxTokens <= 0 {
		maxTokens = b.defaultMaxTokens
	}
	return model.GenerationRequest{
		Prompt:      prompt,
		Temperature: b.temperature,
		MaxTokens:   maxTokens,
	}
}

func referenceHeader(n int, m model.ChunkMetadata) string {
	header := fmt.Sprintf("[Reference %d", n)
	if m.ControlID != "" {
		header += " | Control " + m.ControlID
		if m.ControlName != "" {
			header += " - " + m.ControlName
		}
	}
	if m.DocumentType != "" {
		header += " | Source: " + m.DocumentType
	}
	return header + "]"
}
