package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/apperrors"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

type ConceptEdgeRepo interface {
	// Create is idempotent by (source, target): when an edge for the pair
	// already exists it is returned unchanged, whatever branch type or
	// description the caller proposed. Two users connecting the same pair
	// concurrently both converge on the first committed row.
	Create(ctx context.Context, tx *gorm.DB, row *domain.ConceptEdge) (*domain.ConceptEdge, error)

	GetByPair(ctx context.Context, tx *gorm.DB, sourceID, targetID uuid.UUID) (*domain.ConceptEdge, error)

	// ListFromSource returns edges out of a concept in creation order, each
	// joined with its target concept so callers need no second round trip.
	ListFromSource(ctx context.Context, tx *gorm.DB, sourceID uuid.UUID) ([]*domain.ConceptEdge, error)
}

type conceptEdgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptEdgeRepo(db *gorm.DB, baseLog *logger.Logger) ConceptEdgeRepo {
	return &conceptEdgeRepo{db: db, log: baseLog.With("repo", "ConceptEdgeRepo")}
}

func (r *conceptEdgeRepo) Create(ctx context.Context, tx *gorm.DB, row *domain.ConceptEdge) (*domain.ConceptEdge, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.SourceConceptID == uuid.Nil || row.TargetConceptID == uuid.Nil {
		return nil, fmt.Errorf("edge endpoints required: %w", apperrors.ErrInvalidArgument)
	}

	if existing, err := r.GetByPair(ctx, t, row.SourceConceptID, row.TargetConceptID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	if err := t.WithContext(ctx).Create(row).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		// Lost the race; the winner's edge is the edge.
		existing, ferr := r.GetByPair(ctx, t, row.SourceConceptID, row.TargetConceptID)
		if ferr != nil {
			return nil, ferr
		}
		if existing == nil {
			return nil, err
		}
		r.log.Debug("edge create raced, reusing existing",
			"source_id", row.SourceConceptID,
			"target_id", row.TargetConceptID,
			"edge_id", existing.ID,
		)
		return existing, nil
	}
	return row, nil
}

func (r *conceptEdgeRepo) GetByPair(ctx context.Context, tx *gorm.DB, sourceID, targetID uuid.UUID) (*domain.ConceptEdge, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if sourceID == uuid.Nil || targetID == uuid.Nil {
		return nil, nil
	}
	var out []*domain.ConceptEdge
	if err := t.WithContext(ctx).
		Where("source_concept_id = ? AND target_concept_id = ?", sourceID, targetID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *conceptEdgeRepo) ListFromSource(ctx context.Context, tx *gorm.DB, sourceID uuid.UUID) ([]*domain.ConceptEdge, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*domain.ConceptEdge
	if sourceID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("source_concept_id = ?", sourceID).
		Preload("Target").
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
