package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConceptEdge is a directed, typed relationship between two concepts. The
// (source, target) pair is unique regardless of branch type: at most one
// edge ever exists between an ordered pair. Edges are never updated or
// deleted.
type ConceptEdge struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SourceConceptID uuid.UUID  `gorm:"type:uuid;not null;index:idx_concept_edge_pair,unique,priority:1;index:idx_concept_edge_source" json:"source_concept_id"`
	TargetConceptID uuid.UUID  `gorm:"type:uuid;not null;index:idx_concept_edge_pair,unique,priority:2" json:"target_concept_id"`
	BranchType      BranchType `gorm:"column:branch_type;not null" json:"branch_type"`
	Description     string     `gorm:"column:description;type:text" json:"description"`

	Target *Concept `gorm:"foreignKey:TargetConceptID;references:ID" json:"target,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (ConceptEdge) TableName() string { return "concept_edge" }

func (e *ConceptEdge) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
