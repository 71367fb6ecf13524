package services

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velmora/philograph-backend/internal/data/repos"
	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

// ScoredConcept is a nearest-neighbor hit with its cosine similarity.
type ScoredConcept struct {
	Concept    *domain.Concept `json:"concept"`
	Similarity float64         `json:"similarity"`
}

// NeighborResolver finds the existing concepts closest to an embedding.
// A minSimilarity of 0 disables thresholding (user-facing suggestions);
// the dedup pass uses a stricter nonzero threshold.
type NeighborResolver interface {
	Resolve(ctx context.Context, tx *gorm.DB, embedding domain.Vector, limit int, excludeIDs []uuid.UUID, minSimilarity float64) ([]ScoredConcept, error)
}

type neighborResolver struct {
	log      *logger.Logger
	concepts repos.ConceptRepo
}

func NewNeighborResolver(log *logger.Logger, concepts repos.ConceptRepo) NeighborResolver {
	return &neighborResolver{
		log:      log.With("service", "NeighborResolver"),
		concepts: concepts,
	}
}

func (r *neighborResolver) Resolve(ctx context.Context, tx *gorm.DB, embedding domain.Vector, limit int, excludeIDs []uuid.UUID, minSimilarity float64) ([]ScoredConcept, error) {
	out := []ScoredConcept{}
	if len(embedding) == 0 || limit <= 0 {
		return out, nil
	}

	candidates, err := r.concepts.ListEmbedded(ctx, tx, excludeIDs)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		if len(c.Embedding) != len(embedding) {
			// Stale vector from an older embedding model; skip rather than
			// produce a meaningless score.
			continue
		}
		score := CosineSimilarity(embedding, c.Embedding)
		// A non-positive threshold disables filtering entirely; cosine scores
		// can dip below zero and those concepts still rank.
		if minSimilarity > 0 && score < minSimilarity {
			continue
		}
		out = append(out, ScoredConcept{Concept: c, Similarity: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CosineSimilarity is 1 - cosine distance; effectively [0, 1] for
// normalized text embeddings. Zero vectors score 0.
func CosineSimilarity(a, b domain.Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
