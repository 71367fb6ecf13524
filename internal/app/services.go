package app

import (
	"fmt"

	"github.com/velmora/philograph-backend/internal/clients/openai"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
	"github.com/velmora/philograph-backend/internal/services"
)

type Services struct {
	Embedding  services.EmbeddingService
	Generation services.GenerationService
	Neighbors  services.NeighborResolver
	RateLimit  services.RateLimiter
	Graph      services.GraphService
	Concept    services.ConceptService
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	ai, err := openai.NewClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init openai client: %w", err)
	}

	embedding := services.NewEmbeddingService(log, ai, cfg.EmbeddingDimensions)
	generation := services.NewGenerationService(log, ai)
	neighbors := services.NewNeighborResolver(log, reposet.Concept)
	rateLimit := services.NewRateLimiter(log, reposet.GenerationLog, cfg.GenerationRateLimit, cfg.GenerationRateWindow)

	graph := services.NewGraphService(
		log,
		cfg.Graph,
		reposet.Concept,
		reposet.ConceptEdge,
		reposet.BranchStat,
		rateLimit,
		neighbors,
		embedding,
		generation,
	)
	concept := services.NewConceptService(log, reposet.Concept, reposet.BranchStat, embedding, generation)

	return Services{
		Embedding:  embedding,
		Generation: generation,
		Neighbors:  neighbors,
		RateLimit:  rateLimit,
		Graph:      graph,
		Concept:    concept,
	}, nil
}
