package app

import (
	httpH "github.com/velmora/philograph-backend/internal/http/handlers"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

type Handlers struct {
	Concept *httpH.ConceptHandler
	Graph   *httpH.GraphHandler
	Health  *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Concept: httpH.NewConceptHandler(log, serviceset.Concept),
		Graph:   httpH.NewGraphHandler(log, serviceset.Graph, serviceset.Concept, serviceset.RateLimit),
		Health:  httpH.NewHealthHandler(),
	}
}
