package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/controlrag/core/budget"
	"github.com/siherrmann/controlrag/model"
)

const (
	DefaultParentTokens = 384
	DefaultSmallTokens  = 256
	DefaultOverlapRatio = 0.2
	// MinimumOverlapTokens is the smallest overlap between two small windows.
	MinimumOverlapTokens = 20
)

var ltreeInvalid = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// LtreeLabel turns s into a valid ltree label.
func LtreeLabel(s string) string {
	label := strings.Trim(ltreeInvalid.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if label == "" {
		return "chunk"
	}
	return label
}

// AdaptiveOverlap returns the overlap of windows of the given size:
// ratio of the window, at least MinimumOverlapTokens and at most half of it.
func AdaptiveOverlap(windowTokens int, ratio float64) int {
	overlap := int(float64(windowTokens) * ratio)
	if overlap < MinimumOverlapTokens {
		overlap = MinimumOverlapTokens
	}
	if overlap > windowTokens/2 {
		overlap = windowTokens / 2
	}
	return overlap
}

// Small2BigChunker splits text into parent blocks of at most parentTokens
// and every parent into overlapping small windows of at most smallTokens.
// Small chunks are embedded for retrieval while their parent text is
// stored in the metadata and handed to the language model. Sizes and
// parent token counts are measured with estimator.
func Small2BigChunker(parentTokens int, smallTokens int, overlapRatio float64, estimator budget.Estimator) ChunkFunc {
	return func(text string, basePath string) ([]ChunkWithPath, error) {
		if parentTokens <= 0 || smallTokens <= 0 {
			return nil, fmt.Errorf("parent and small chunk sizes must be positive")
		}
		if overlapRatio < 0 || overlapRatio >= 1 {
			return nil, fmt.Errorf("overlap ratio must be in [0, 1), got %v", overlapRatio)
		}
		if strings.TrimSpace(text) == "" {
			return []ChunkWithPath{}, nil
		}

		basePath = LtreeLabel(basePath)
		overlap := AdaptiveOverlap(smallTokens, overlapRatio)

		chunks := []ChunkWithPath{}
		for p, parent := range splitParents(text, parentTokens, estimator) {
			parentID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s.p%d", basePath, p))).String()
			parentTokenCount := estimator.Tokens(parent)

			for s, small := range splitWindows(strings.Fields(parent), smallTokens, overlap, estimator) {
				index := len(chunks)
				chunks = append(chunks, ChunkWithPath{
					Content:    small,
					Path:       fmt.Sprintf("%s.p%d.s%d", basePath, p, s),
					ChunkIndex: &index,
					Metadata: model.Metadata{
						model.MetaParentID:         parentID,
						model.MetaParentText:       parent,
						model.MetaParentTokenCount: parentTokenCount,
						model.MetaIsSmallChunk:     true,
					},
				})
			}
		}
		return chunks, nil
	}
}

// DefaultChunker is a Small2BigChunker with the control catalog sizes.
func DefaultChunker(estimator budget.Estimator) ChunkFunc {
	return Small2BigChunker(DefaultParentTokens, DefaultSmallTokens, DefaultOverlapRatio, estimator)
}

// splitParents packs paragraphs into blocks of at most maxTokens.
// Paragraphs longer than maxTokens are split into consecutive windows.
func splitParents(text string, maxTokens int, estimator budget.Estimator) []string {
	parents := []string{}
	current := ""

	flush := func() {
		if current != "" {
			parents = append(parents, current)
			current = ""
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if estimator.Tokens(para) > maxTokens {
			flush()
			parents = append(parents, splitWindows(strings.Fields(para), maxTokens, 0, estimator)...)
			continue
		}

		candidate := para
		if current != "" {
			candidate = current + "\n\n" + para
		}
		if estimator.Tokens(candidate) > maxTokens {
			flush()
			candidate = para
		}
		current = candidate
	}
	flush()

	return parents
}

// splitWindows groups words into windows of at most maxTokens. Each window
// after the first repeats the trailing words of its predecessor that fit
// into overlapTokens. A single word longer than maxTokens is its own window.
func splitWindows(words []string, maxTokens int, overlapTokens int, estimator budget.Estimator) []string {
	windows := []string{}
	start := 0

	for start < len(words) {
		end := start + 1
		for end < len(words) && estimator.Tokens(strings.Join(words[start:end+1], " ")) <= maxTokens {
			end++
		}
		windows = append(windows, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}

		next := end
		for next-1 > start && estimator.Tokens(strings.Join(words[next-1:end], " ")) <= overlapTokens {
			next--
		}
		start = next
	}

	return windows
}
