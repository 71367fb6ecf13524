package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GenerationLogEntry records one successful new-branch-generation action by
// a user. Append-only; the rate limiter counts entries inside the trailing
// window. Rows older than the window may be garbage-collected.
type GenerationLogEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_generation_log_user_time,priority:1" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;index:idx_generation_log_user_time,priority:2" json:"created_at"`
}

func (GenerationLogEntry) TableName() string { return "generation_log" }

func (g *GenerationLogEntry) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
