package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BranchStat counts how many times each branch type was chosen from a
// concept. Best-effort analytics: incremented with an atomic upsert, never
// read on the critical path.
type BranchStat struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConceptID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_branch_stat_concept_type,priority:1" json:"concept_id"`
	BranchType  BranchType `gorm:"column:branch_type;not null;uniqueIndex:idx_branch_stat_concept_type,priority:2" json:"branch_type"`
	ChosenCount int64      `gorm:"column:chosen_count;not null;default:0" json:"chosen_count"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (BranchStat) TableName() string { return "branch_stat" }

func (s *BranchStat) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
