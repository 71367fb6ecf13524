package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/velmora/philograph-backend/internal/data/repos"
	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/apperrors"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

// GraphConfig carries the tunables of the branch resolution engine.
type GraphConfig struct {
	// NeighborLimit caps how many existing concepts are offered before the
	// user asks for fresh generation.
	NeighborLimit int
	// SuggestMinSimilarity thresholds user-facing suggestions; 0 disables
	// it so a young graph still shows something.
	SuggestMinSimilarity float64
	// DedupMinSimilarity is the stricter threshold above which a generated
	// candidate is folded into an existing concept instead of minting a
	// new one.
	DedupMinSimilarity float64
}

// BranchOffer is the first step of an explore interaction: nearest existing
// concepts, plus whether the user may ask for fresh generation.
type BranchOffer struct {
	Neighbors   []ScoredConcept `json:"neighbors"`
	CanGenerate bool            `json:"can_generate"`
}

// GraphService is the single orchestration point for growing the graph. It
// holds no state of its own; every uniqueness argument is "catch conflict,
// re-fetch, reuse" against the stores.
type GraphService interface {
	OfferBranches(ctx context.Context, sourceConceptID, userID uuid.UUID) (*BranchOffer, error)
	AcceptNeighbor(ctx context.Context, sourceConceptID, targetConceptID, userID uuid.UUID, branchType domain.BranchType, description string) (*domain.ConceptEdge, error)
	GenerateNewBranches(ctx context.Context, sourceConceptID, userID uuid.UUID) ([]*domain.ConceptEdge, error)

	// RecordChoice is best-effort analytics; it never returns an error.
	RecordChoice(ctx context.Context, sourceConceptID uuid.UUID, branchType domain.BranchType)

	ListEdges(ctx context.Context, sourceConceptID uuid.UUID) ([]*domain.ConceptEdge, error)
}

type graphService struct {
	log      *logger.Logger
	cfg      GraphConfig
	concepts repos.ConceptRepo
	edges    repos.ConceptEdgeRepo
	stats    repos.BranchStatRepo
	limiter  RateLimiter
	resolver NeighborResolver
	embedder EmbeddingService
	gen      GenerationService
}

func NewGraphService(
	log *logger.Logger,
	cfg GraphConfig,
	concepts repos.ConceptRepo,
	edges repos.ConceptEdgeRepo,
	stats repos.BranchStatRepo,
	limiter RateLimiter,
	resolver NeighborResolver,
	embedder EmbeddingService,
	gen GenerationService,
) GraphService {
	return &graphService{
		log:      log.With("service", "GraphService"),
		cfg:      cfg,
		concepts: concepts,
		edges:    edges,
		stats:    stats,
		limiter:  limiter,
		resolver: resolver,
		embedder: embedder,
		gen:      gen,
	}
}

func (s *graphService) OfferBranches(ctx context.Context, sourceConceptID, userID uuid.UUID) (*BranchOffer, error) {
	source, err := s.concepts.GetByID(ctx, nil, sourceConceptID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("source concept %s: %w", sourceConceptID, apperrors.ErrNotFound)
	}

	offer := &BranchOffer{
		Neighbors:   []ScoredConcept{},
		CanGenerate: s.limiter.Check(ctx, userID).Allowed,
	}

	embedding, err := s.ensureEmbedding(ctx, source)
	if err != nil {
		// Neighbors need the vector; generation does not. Degrade to a
		// generate-only offer rather than failing the interaction.
		s.log.Warn("Source embedding unavailable, offering generation only",
			"concept_id", source.ID, "error", err)
		return offer, nil
	}

	exclude := []uuid.UUID{source.ID}
	connected, err := s.edges.ListFromSource(ctx, nil, source.ID)
	if err != nil {
		return nil, err
	}
	for _, e := range connected {
		exclude = append(exclude, e.TargetConceptID)
	}

	neighbors, err := s.resolver.Resolve(ctx, nil, embedding, s.cfg.NeighborLimit, exclude, s.cfg.SuggestMinSimilarity)
	if err != nil {
		return nil, err
	}
	offer.Neighbors = neighbors
	return offer, nil
}

func (s *graphService) AcceptNeighbor(ctx context.Context, sourceConceptID, targetConceptID, userID uuid.UUID, branchType domain.BranchType, description string) (*domain.ConceptEdge, error) {
	if !domain.ValidBranchType(branchType) {
		branchType = domain.BranchWildcard
	}

	pair, err := s.concepts.GetByIDs(ctx, nil, []uuid.UUID{sourceConceptID, targetConceptID})
	if err != nil {
		return nil, err
	}
	if len(pair) != 2 {
		// Both ends must exist; concepts are never deleted, so a miss here
		// is an inconsistency worth shouting about.
		s.log.Error("AcceptNeighbor endpoint missing from store",
			"source_id", sourceConceptID, "target_id", targetConceptID, "found", len(pair))
		return nil, fmt.Errorf("edge endpoint: %w", apperrors.ErrNotFound)
	}

	edge, err := s.edges.Create(ctx, nil, &domain.ConceptEdge{
		SourceConceptID: sourceConceptID,
		TargetConceptID: targetConceptID,
		BranchType:      branchType,
		Description:     description,
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

func (s *graphService) GenerateNewBranches(ctx context.Context, sourceConceptID, userID uuid.UUID) ([]*domain.ConceptEdge, error) {
	source, err := s.concepts.GetByID(ctx, nil, sourceConceptID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("source concept %s: %w", sourceConceptID, apperrors.ErrNotFound)
	}

	status := s.limiter.Check(ctx, userID)
	if !status.Allowed {
		return nil, &apperrors.RateLimitError{Remaining: status.Remaining, ResetAt: status.ResetAt}
	}

	// One batched call for all four types; any shape violation rejects the
	// whole batch before a single row is written, and no quota is consumed.
	candidates, err := s.gen.GenerateBranches(ctx, source.Name, source.Description)
	if err != nil {
		return nil, err
	}
	// Every candidate must resolve to a storable slug before anything is
	// written; otherwise the batch would fail mid-loop and leave partial rows.
	for _, cand := range candidates {
		if domain.Slugify(cand.TargetName) == "" {
			return nil, &apperrors.GenerationError{
				Reason: fmt.Sprintf("candidate name %q yields no slug", cand.TargetName),
			}
		}
	}

	// Embed all candidates in one round trip. A failure here degrades
	// gracefully: concepts are still created, just without vectors, and
	// stay invisible to dedup until backfilled.
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = ConceptEmbeddingText(c.TargetName, c.Description)
	}
	vectors, embErr := s.embedder.EmbedBatch(ctx, texts)
	if embErr != nil {
		s.log.Warn("Candidate embedding failed; creating concepts without vectors",
			"source_id", source.ID, "error", embErr)
		vectors = make([]domain.Vector, len(candidates))
	}

	// Dedup pass: match each embedded candidate against the existing graph
	// concurrently (the lookups are independent reads).
	matches := make([]*domain.Concept, len(candidates))
	var mu sync.Mutex
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(len(candidates))
	for i := range candidates {
		if len(vectors[i]) == 0 {
			continue
		}
		i := i
		eg.Go(func() error {
			hits, err := s.resolver.Resolve(egctx, nil, vectors[i], 1, []uuid.UUID{source.ID}, s.cfg.DedupMinSimilarity)
			if err != nil {
				return err
			}
			if len(hits) > 0 {
				mu.Lock()
				matches[i] = hits[0].Concept
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	edges := make([]*domain.ConceptEdge, 0, len(candidates))
	seenEdges := map[uuid.UUID]bool{}
	for i, cand := range candidates {
		target := matches[i]
		if target == nil {
			target, err = s.resolveOrCreateConcept(ctx, cand, vectors[i])
			if err != nil {
				return edges, err
			}
		} else {
			s.log.Debug("Candidate folded into existing concept",
				"candidate", cand.TargetName, "existing_id", target.ID, "existing", target.Name)
		}

		edge, err := s.edges.Create(ctx, nil, &domain.ConceptEdge{
			SourceConceptID: source.ID,
			TargetConceptID: target.ID,
			BranchType:      cand.Type,
			Description:     cand.Description,
		})
		if err != nil {
			return edges, err
		}
		if !seenEdges[edge.ID] {
			seenEdges[edge.ID] = true
			edges = append(edges, edge)
		}
	}

	// One log entry per user action that produced a usable batch.
	if err := s.limiter.Record(ctx, userID); err != nil {
		s.log.Warn("Failed to record generation event", "user_id", userID, "error", err)
	}

	return edges, nil
}

// resolveOrCreateConcept inserts a new concept for a candidate, treating a
// slug collision as "concept already exists": re-fetch and reuse instead of
// failing the operation.
func (s *graphService) resolveOrCreateConcept(ctx context.Context, cand BranchCandidate, embedding domain.Vector) (*domain.Concept, error) {
	created, err := s.concepts.Create(ctx, nil, &domain.Concept{
		Name:        cand.TargetName,
		Description: cand.Description,
		Embedding:   embedding,
	})
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, apperrors.ErrDuplicateSlug) {
		return nil, err
	}

	existing, ferr := s.concepts.GetBySlug(ctx, nil, domain.Slugify(cand.TargetName))
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, err
	}
	s.log.Debug("Concept creation raced on slug, reusing existing",
		"candidate", cand.TargetName, "existing_id", existing.ID)
	return existing, nil
}

func (s *graphService) RecordChoice(ctx context.Context, sourceConceptID uuid.UUID, branchType domain.BranchType) {
	if err := s.stats.Increment(ctx, nil, sourceConceptID, branchType); err != nil {
		s.log.Warn("Branch choice analytics update failed",
			"concept_id", sourceConceptID, "branch_type", branchType, "error", err)
	}
}

func (s *graphService) ListEdges(ctx context.Context, sourceConceptID uuid.UUID) ([]*domain.ConceptEdge, error) {
	return s.edges.ListFromSource(ctx, nil, sourceConceptID)
}

// ensureEmbedding returns the source's vector, computing and attaching one
// when the row predates embedding (seed data).
func (s *graphService) ensureEmbedding(ctx context.Context, c *domain.Concept) (domain.Vector, error) {
	if c.HasEmbedding() {
		return c.Embedding, nil
	}
	vec, err := s.embedder.EmbedOne(ctx, ConceptEmbeddingText(c.Name, c.Description))
	if err != nil {
		return nil, err
	}
	if err := s.concepts.UpdateFields(ctx, nil, c.ID, map[string]interface{}{"embedding": vec}); err != nil {
		return nil, err
	}
	c.Embedding = vec
	return vec, nil
}
