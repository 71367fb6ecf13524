package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/http/middleware"
	"github.com/velmora/philograph-backend/internal/http/response"
	"github.com/velmora/philograph-backend/internal/pkg/apperrors"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
	"github.com/velmora/philograph-backend/internal/services"
)

type GraphHandler struct {
	log      *logger.Logger
	graph    services.GraphService
	concepts services.ConceptService
	limiter  services.RateLimiter
}

func NewGraphHandler(
	log *logger.Logger,
	graph services.GraphService,
	concepts services.ConceptService,
	limiter services.RateLimiter,
) *GraphHandler {
	return &GraphHandler{
		log:      log.With("handler", "GraphHandler"),
		graph:    graph,
		concepts: concepts,
		limiter:  limiter,
	}
}

func (h *GraphHandler) sourceConcept(c *gin.Context) (*domain.Concept, bool) {
	slug := c.Param("slug")
	concept, err := h.concepts.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "concept_not_found", err)
			return nil, false
		}
		response.RespondError(c, http.StatusInternalServerError, "load_concept_failed", err)
		return nil, false
	}
	return concept, true
}

// GET /api/concepts/:slug/branches
func (h *GraphHandler) OfferBranches(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	concept, ok := h.sourceConcept(c)
	if !ok {
		return
	}

	offer, err := h.graph.OfferBranches(c.Request.Context(), concept.ID, userID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "offer_branches_failed", err)
		return
	}

	edges, err := h.graph.ListEdges(c.Request.Context(), concept.ID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_edges_failed", err)
		return
	}

	response.RespondOK(c, gin.H{
		"concept": concept,
		"offer":   offer,
		"edges":   edges,
	})
}

type acceptNeighborRequest struct {
	TargetConceptID string `json:"target_concept_id" binding:"required"`
	BranchType      string `json:"branch_type"`
	Description     string `json:"description"`
}

// POST /api/concepts/:slug/branches/accept
func (h *GraphHandler) AcceptNeighbor(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	concept, ok := h.sourceConcept(c)
	if !ok {
		return
	}

	var req acceptNeighborRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	targetID, err := uuid.Parse(req.TargetConceptID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_target_concept_id", err)
		return
	}

	edge, err := h.graph.AcceptNeighbor(
		c.Request.Context(),
		concept.ID,
		targetID,
		userID,
		domain.BranchType(req.BranchType),
		req.Description,
	)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "concept_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "accept_neighbor_failed", err)
		return
	}

	response.RespondOK(c, gin.H{"edge": edge})
}

// POST /api/concepts/:slug/branches/generate
func (h *GraphHandler) GenerateBranches(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	concept, ok := h.sourceConcept(c)
	if !ok {
		return
	}

	// Detached from the request: an in-flight generation commits even if
	// the user navigates away, since the resulting concepts and edges are
	// shared graph additions, not per-request state.
	ctx := context.WithoutCancel(c.Request.Context())
	edges, err := h.graph.GenerateNewBranches(ctx, concept.ID, userID)
	if err != nil {
		var rle *apperrors.RateLimitError
		if errors.As(err, &rle) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":      "rate_limited",
					"remaining": rle.Remaining,
					"reset_at":  rle.ResetAt,
				},
			})
			return
		}
		if apperrors.IsGenerationFailed(err) {
			response.RespondError(c, http.StatusBadGateway, "generation_failed", err)
			return
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "concept_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "generate_branches_failed", err)
		return
	}

	response.RespondOK(c, gin.H{"edges": edges})
}

type recordChoiceRequest struct {
	BranchType string `json:"branch_type" binding:"required"`
}

// POST /api/concepts/:slug/branches/choice
func (h *GraphHandler) RecordChoice(c *gin.Context) {
	if middleware.CurrentUserID(c) == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	concept, ok := h.sourceConcept(c)
	if !ok {
		return
	}

	var req recordChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	branchType := domain.BranchType(req.BranchType)
	if !domain.ValidBranchType(branchType) {
		response.RespondError(c, http.StatusBadRequest, "invalid_branch_type", apperrors.ErrInvalidArgument)
		return
	}

	// Fire-and-forget analytics: accepted, never failed.
	h.graph.RecordChoice(c.Request.Context(), concept.ID, branchType)
	c.JSON(http.StatusAccepted, gin.H{"recorded": true})
}

// GET /api/concepts/:slug/edges
func (h *GraphHandler) ListEdges(c *gin.Context) {
	if middleware.CurrentUserID(c) == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	concept, ok := h.sourceConcept(c)
	if !ok {
		return
	}

	edges, err := h.graph.ListEdges(c.Request.Context(), concept.ID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_edges_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"edges": edges})
}

// GET /api/limits/generation
func (h *GraphHandler) GenerationLimit(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	status := h.limiter.Check(c.Request.Context(), userID)
	response.RespondOK(c, gin.H{
		"allowed":   status.Allowed,
		"remaining": status.Remaining,
		"reset_at":  status.ResetAt,
	})
}
