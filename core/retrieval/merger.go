package retrieval

import (
	"sort"

	"github.com/siherrmann/controlrag/model"
)

// PrivateDocumentType is assigned to private records without a document type.
const PrivateDocumentType = "private"

// DualSourceMerger combines shared candidates with private corpus records.
type DualSourceMerger struct{}

// NewDualSourceMerger creates a merger.
func NewDualSourceMerger() *DualSourceMerger {
	return &DualSourceMerger{}
}

// Merge converts the private records, concatenates them after the shared
// candidates and returns the topK best by score. Equal scores keep the
// shared candidate first.
func (m *DualSourceMerger) Merge(shared []model.ChunkCandidate, private []model.PrivateRecord, topK int) []model.ChunkCandidate {
	merged := make([]model.ChunkCandidate, 0, len(shared)+len(private))
	merged = append(merged, shared...)
	for _, r := range private {
		merged = append(merged, PrivateCandidate(r))
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RawScore > merged[j].RawScore
	})
	if topK >= 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// DistanceToScore converts a cosine distance to a similarity in [0, 1].
func DistanceToScore(distance float64) float64 {
	score := 1 - distance
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// PrivateCandidate converts a private record to a retrieval candidate.
func PrivateCandidate(r model.PrivateRecord) model.ChunkCandidate {
	metadata := r.Metadata.ChunkMetadata()
	if metadata.DocumentType == "" {
		metadata.DocumentType = PrivateDocumentType
	}
	if metadata.ParentText == "" {
		metadata.ParentText = r.Text
	}

	return model.ChunkCandidate{
		ID:        r.ID,
		SmallText: r.Text,
		Metadata:  metadata,
		RawScore:  DistanceToScore(r.Distance),
	}
}
