package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

type BranchStatRepo interface {
	// Increment bumps the chosen counter for (concept, branch type) with an
	// atomic upsert so concurrent choices on a popular concept never lose
	// updates.
	Increment(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID, branchType domain.BranchType) error

	ListByConcept(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) ([]*domain.BranchStat, error)
}

type branchStatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBranchStatRepo(db *gorm.DB, baseLog *logger.Logger) BranchStatRepo {
	return &branchStatRepo{db: db, log: baseLog.With("repo", "BranchStatRepo")}
}

func (r *branchStatRepo) Increment(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID, branchType domain.BranchType) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if conceptID == uuid.Nil || !domain.ValidBranchType(branchType) {
		return nil
	}
	row := &domain.BranchStat{
		ID:          uuid.New(),
		ConceptID:   conceptID,
		BranchType:  branchType,
		ChosenCount: 1,
	}
	return t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "concept_id"}, {Name: "branch_type"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"chosen_count": gorm.Expr("branch_stat.chosen_count + 1"),
				"updated_at":   gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).
		Create(row).Error
}

func (r *branchStatRepo) ListByConcept(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) ([]*domain.BranchStat, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*domain.BranchStat
	if conceptID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("concept_id = ?", conceptID).
		Order("branch_type ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
