package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/velmora/philograph-backend/internal/http/middleware"
	"github.com/velmora/philograph-backend/internal/http/response"
	"github.com/velmora/philograph-backend/internal/pkg/apperrors"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
	"github.com/velmora/philograph-backend/internal/services"
)

type ConceptHandler struct {
	log      *logger.Logger
	concepts services.ConceptService
}

func NewConceptHandler(log *logger.Logger, concepts services.ConceptService) *ConceptHandler {
	return &ConceptHandler{
		log:      log.With("handler", "ConceptHandler"),
		concepts: concepts,
	}
}

// GET /api/concepts/:slug
//
// Reading a concept page lazily fills in its lesson the first time anyone
// opens it, so accepted branches stay cheap until they are actually visited.
func (h *ConceptHandler) GetConcept(c *gin.Context) {
	if middleware.CurrentUserID(c) == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	concept, err := h.concepts.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "concept_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "load_concept_failed", err)
		return
	}

	full, err := h.concepts.EnsureLesson(c.Request.Context(), concept.ID)
	if err != nil {
		if apperrors.IsGenerationFailed(err) {
			// Serve what we have; the lesson fills in on a later visit.
			h.log.Warn("lesson generation failed, serving bare concept",
				"concept_id", concept.ID, "error", err)
			response.RespondOK(c, gin.H{"concept": concept})
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "load_lesson_failed", err)
		return
	}

	response.RespondOK(c, gin.H{"concept": full})
}

// GET /api/concepts/search?q=...&limit=...
func (h *ConceptHandler) SearchConcepts(c *gin.Context) {
	if middleware.CurrentUserID(c) == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	query := c.Query("q")
	if query == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_query", apperrors.ErrInvalidArgument)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", apperrors.ErrInvalidArgument)
			return
		}
		limit = n
	}

	results, err := h.concepts.Search(c.Request.Context(), query, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}

	response.RespondOK(c, gin.H{"concepts": results})
}

type seedConceptRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// POST /api/concepts/seed
func (h *ConceptHandler) SeedConcept(c *gin.Context) {
	if middleware.CurrentUserID(c) == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req seedConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}

	concept, err := h.concepts.Seed(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		if apperrors.IsGenerationFailed(err) {
			response.RespondError(c, http.StatusBadGateway, "embedding_failed", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "seed_concept_failed", err)
		return
	}

	response.RespondOK(c, gin.H{"concept": concept})
}

// GET /api/concepts/:slug/stats
func (h *ConceptHandler) ConceptStats(c *gin.Context) {
	if middleware.CurrentUserID(c) == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	concept, err := h.concepts.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "concept_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "load_concept_failed", err)
		return
	}

	stats, err := h.concepts.Stats(c.Request.Context(), concept.ID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "load_stats_failed", err)
		return
	}

	response.RespondOK(c, gin.H{"stats": stats})
}
