package app

import (
	"context"

	"github.com/szweimin/ai-ros/internal/evidence"
)

// SearchCollaborator supplies scored documentation chunks for a
// pre-computed query vector. Embedding and vector search live outside
// the engine; this contract is how their results come in.
type SearchCollaborator interface {
	SearchSimilar(ctx context.Context, vector []float32, topK int, metadataFilter map[string]string) ([]evidence.Candidate, error)
}

// Ranker merges candidate sets into one bounded, deterministic ranking.
type Ranker interface {
	Merge(primary, secondary []evidence.Candidate, rules []evidence.BoostRule) []evidence.Candidate
}
