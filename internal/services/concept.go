package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/velmora/philograph-backend/internal/data/repos"
	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/apperrors"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

// ConceptService covers the non-traversal concept operations: direct
// navigation, search, seeding, and lazy lesson generation for concepts that
// were minted from a one-line branch description.
type ConceptService interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Concept, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.Concept, error)

	// Seed creates an embedded root concept out of band. A taken slug means
	// the concept already exists; the existing record is returned.
	Seed(ctx context.Context, name, description string) (*domain.Concept, error)

	// EnsureLesson fills in a full generated lesson (description and
	// reading list) for a concept that only carries its short relationship
	// description. Idempotent: a concept with a reading list is returned
	// as is.
	EnsureLesson(ctx context.Context, conceptID uuid.UUID) (*domain.Concept, error)

	Stats(ctx context.Context, conceptID uuid.UUID) ([]*domain.BranchStat, error)
}

type conceptService struct {
	log      *logger.Logger
	concepts repos.ConceptRepo
	stats    repos.BranchStatRepo
	embedder EmbeddingService
	gen      GenerationService
}

func NewConceptService(
	log *logger.Logger,
	concepts repos.ConceptRepo,
	stats repos.BranchStatRepo,
	embedder EmbeddingService,
	gen GenerationService,
) ConceptService {
	return &conceptService{
		log:      log.With("service", "ConceptService"),
		concepts: concepts,
		stats:    stats,
		embedder: embedder,
		gen:      gen,
	}
}

func (s *conceptService) GetBySlug(ctx context.Context, slug string) (*domain.Concept, error) {
	c, err := s.concepts.GetBySlug(ctx, nil, slug)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("concept %q: %w", slug, apperrors.ErrNotFound)
	}
	return c, nil
}

func (s *conceptService) Search(ctx context.Context, query string, limit int) ([]*domain.Concept, error) {
	return s.concepts.SearchByName(ctx, nil, query, limit)
}

func (s *conceptService) Seed(ctx context.Context, name, description string) (*domain.Concept, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("seed name required: %w", apperrors.ErrInvalidArgument)
	}

	var embedding domain.Vector
	vec, err := s.embedder.EmbedOne(ctx, ConceptEmbeddingText(name, description))
	if err != nil {
		s.log.Warn("Seed embedding failed; storing concept without vector", "name", name, "error", err)
	} else {
		embedding = vec
	}

	created, err := s.concepts.Create(ctx, nil, &domain.Concept{
		Name:        name,
		Description: description,
		Embedding:   embedding,
	})
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, apperrors.ErrDuplicateSlug) {
		return nil, err
	}
	existing, ferr := s.concepts.GetBySlug(ctx, nil, domain.Slugify(name))
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, err
	}
	return existing, nil
}

func (s *conceptService) EnsureLesson(ctx context.Context, conceptID uuid.UUID) (*domain.Concept, error) {
	c, err := s.concepts.GetByID(ctx, nil, conceptID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("concept %s: %w", conceptID, apperrors.ErrNotFound)
	}
	if len(c.ReadingList) > 0 {
		return c, nil
	}

	lesson, err := s.gen.GenerateLesson(ctx, c.Name)
	if err != nil {
		return nil, err
	}

	readingJSON, err := json.Marshal(lesson.RecommendedReading)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"description":  lesson.Description,
		"reading_list": datatypes.JSON(readingJSON),
	}
	if err := s.concepts.UpdateFields(ctx, nil, c.ID, updates); err != nil {
		return nil, err
	}
	c.Description = lesson.Description
	c.ReadingList = datatypes.JSON(readingJSON)

	// The fuller description is a better embedding basis; refresh it when
	// the concept was stored without one.
	if !c.HasEmbedding() {
		if vec, err := s.embedder.EmbedOne(ctx, ConceptEmbeddingText(c.Name, c.Description)); err != nil {
			s.log.Warn("Lesson embedding backfill failed", "concept_id", c.ID, "error", err)
		} else if err := s.concepts.UpdateFields(ctx, nil, c.ID, map[string]interface{}{"embedding": vec}); err != nil {
			s.log.Warn("Lesson embedding backfill update failed", "concept_id", c.ID, "error", err)
		} else {
			c.Embedding = vec
		}
	}

	return c, nil
}

func (s *conceptService) Stats(ctx context.Context, conceptID uuid.UUID) ([]*domain.BranchStat, error) {
	return s.stats.ListByConcept(ctx, nil, conceptID)
}
