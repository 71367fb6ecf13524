package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/velmora/philograph-backend/internal/http/handlers"
	httpMW "github.com/velmora/philograph-backend/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware *httpMW.AuthMiddleware

	ConceptHandler *httpH.ConceptHandler
	GraphHandler   *httpH.GraphHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Concepts
		if cfg.ConceptHandler != nil {
			protected.GET("/concepts/search", cfg.ConceptHandler.SearchConcepts)
			protected.POST("/concepts/seed", cfg.ConceptHandler.SeedConcept)
			protected.GET("/concepts/:slug", cfg.ConceptHandler.GetConcept)
			protected.GET("/concepts/:slug/stats", cfg.ConceptHandler.ConceptStats)
		}

		// Branches (graph growth)
		if cfg.GraphHandler != nil {
			protected.GET("/concepts/:slug/edges", cfg.GraphHandler.ListEdges)
			protected.GET("/concepts/:slug/branches", cfg.GraphHandler.OfferBranches)
			protected.POST("/concepts/:slug/branches/accept", cfg.GraphHandler.AcceptNeighbor)
			protected.POST("/concepts/:slug/branches/generate", cfg.GraphHandler.GenerateBranches)
			protected.POST("/concepts/:slug/branches/choice", cfg.GraphHandler.RecordChoice)
			protected.GET("/limits/generation", cfg.GraphHandler.GenerationLimit)
		}
	}

	return r
}
