package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

type GenerationLogRepo interface {
	Append(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error
	CountSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) (int64, error)

	// OldestSince returns the timestamp of the oldest entry inside the
	// window, or nil when the window is empty. Drives the resetAt the UI
	// shows on a denied generation.
	OldestSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) (*time.Time, error)

	// DeleteBefore garbage-collects entries that fell out of every window.
	DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type generationLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationLogRepo(db *gorm.DB, baseLog *logger.Logger) GenerationLogRepo {
	return &generationLogRepo{db: db, log: baseLog.With("repo", "GenerationLogRepo")}
}

func (r *generationLogRepo) Append(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := &domain.GenerationLogEntry{UserID: userID, CreatedAt: at}
	return t.WithContext(ctx).Create(row).Error
}

func (r *generationLogRepo) CountSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var n int64
	if userID == uuid.Nil {
		return 0, nil
	}
	err := t.WithContext(ctx).
		Model(&domain.GenerationLogEntry{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *generationLogRepo) OldestSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) (*time.Time, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return nil, nil
	}
	var rows []*domain.GenerationLogEntry
	if err := t.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ts := rows[0].CreatedAt
	return &ts, nil
}

func (r *generationLogRepo) DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.GenerationLogEntry{})
	return res.RowsAffected, res.Error
}
