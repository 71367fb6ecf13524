package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/velmora/philograph-backend/internal/clients/openai"
	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

// EmbeddingService turns concept text into fixed-dimensionality vectors.
// Dimensionality is a deployment-time constant; a vector of any other size
// coming back from the provider is an error, never silently stored.
type EmbeddingService interface {
	EmbedOne(ctx context.Context, text string) (domain.Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error)
}

type embeddingService struct {
	log        *logger.Logger
	ai         openai.Client
	dimensions int
}

func NewEmbeddingService(log *logger.Logger, ai openai.Client, dimensions int) EmbeddingService {
	return &embeddingService{
		log:        log.With("service", "EmbeddingService"),
		ai:         ai,
		dimensions: dimensions,
	}
}

// ConceptEmbeddingText composes the text that gets embedded for a concept.
// Name alone is too sparse for reliable similarity, so the description
// always contributes when present.
func ConceptEmbeddingText(name, description string) string {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if description == "" {
		return name
	}
	return name + ": " + description
}

func (s *embeddingService) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return []domain.Vector{}, nil
	}
	raw, err := s.ai.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: requested=%d returned=%d", len(texts), len(raw))
	}
	out := make([]domain.Vector, len(raw))
	for i, v := range raw {
		if s.dimensions > 0 && len(v) != s.dimensions {
			return nil, fmt.Errorf("embedding dimensionality mismatch: want=%d got=%d", s.dimensions, len(v))
		}
		out[i] = domain.Vector(v)
	}
	return out, nil
}
