package app

import (
	"github.com/gin-gonic/gin"

	httpserver "github.com/velmora/philograph-backend/internal/http"
)

func wireRouter(handlers Handlers, middleware Middleware) *gin.Engine {
	return httpserver.NewRouter(httpserver.RouterConfig{
		AuthMiddleware: middleware.Auth,
		ConceptHandler: handlers.Concept,
		GraphHandler:   handlers.Graph,
		HealthHandler:  handlers.Health,
	})
}
