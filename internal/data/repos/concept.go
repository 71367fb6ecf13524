package repos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/apperrors"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

type ConceptRepo interface {
	// Create inserts a single concept. The slug is derived from the name if
	// unset. Returns apperrors.ErrDuplicateSlug when the slug is taken;
	// callers resolve by re-fetching via GetBySlug and reusing that row.
	Create(ctx context.Context, tx *gorm.DB, row *domain.Concept) (*domain.Concept, error)

	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Concept, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.Concept, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*domain.Concept, error)

	// SearchByName is the user-facing substring search; dedup never uses it.
	SearchByName(ctx context.Context, tx *gorm.DB, query string, limit int) ([]*domain.Concept, error)

	// ListEmbedded returns every concept carrying an embedding, minus the
	// excluded ids. Feeds the nearest-neighbor resolver.
	ListEmbedded(ctx context.Context, tx *gorm.DB, excludeIDs []uuid.UUID) ([]*domain.Concept, error)

	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type conceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return &conceptRepo{db: db, log: baseLog.With("repo", "ConceptRepo")}
}

func (r *conceptRepo) Create(ctx context.Context, tx *gorm.DB, row *domain.Concept) (*domain.Concept, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil || strings.TrimSpace(row.Name) == "" {
		return nil, fmt.Errorf("concept name required: %w", apperrors.ErrInvalidArgument)
	}
	if row.Slug == "" {
		row.Slug = domain.Slugify(row.Name)
	}
	if row.Slug == "" {
		return nil, fmt.Errorf("concept name %q yields empty slug: %w", row.Name, apperrors.ErrInvalidArgument)
	}
	if err := t.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("slug %q: %w", row.Slug, apperrors.ErrDuplicateSlug)
		}
		return nil, err
	}
	return row, nil
}

func (r *conceptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Concept, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(ctx, tx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *conceptRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.Concept, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*domain.Concept
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conceptRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*domain.Concept, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	var out []*domain.Concept
	if err := t.WithContext(ctx).Where("slug = ?", slug).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *conceptRepo) SearchByName(ctx context.Context, tx *gorm.DB, query string, limit int) ([]*domain.Concept, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*domain.Concept
	query = strings.TrimSpace(query)
	if query == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(query) + "%"
	if err := t.WithContext(ctx).
		Where("LOWER(name) LIKE ?", pattern).
		Order("name ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conceptRepo) ListEmbedded(ctx context.Context, tx *gorm.DB, excludeIDs []uuid.UUID) ([]*domain.Concept, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(ctx).Where("embedding IS NOT NULL")
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	var out []*domain.Concept
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conceptRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(ctx).
		Model(&domain.Concept{}).
		Where("id = ?", id).
		Updates(updates).Error
}
