package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Concept is a node in the shared philosophical graph. Names are free text
// and not unique; the slug derived from the name is the one storage-level
// uniqueness point. Concepts are never deleted, the graph only grows.
type Concept struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name        string `gorm:"column:name;not null" json:"name"`
	Slug        string `gorm:"column:slug;not null;uniqueIndex:idx_concept_slug" json:"slug"`
	Description string `gorm:"column:description;type:text" json:"description"`

	// ReadingList holds []ReadingEntry; jsonb so the lesson generator can
	// attach it without a join table.
	ReadingList datatypes.JSON `gorm:"column:reading_list;type:jsonb" json:"reading_list,omitempty"`

	Embedding Vector `gorm:"column:embedding" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Concept) TableName() string { return "concept" }

func (c *Concept) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// HasEmbedding reports whether the concept participates in similarity search.
func (c *Concept) HasEmbedding() bool {
	return c != nil && len(c.Embedding) > 0
}

// ReadingEntry is one recommended-reading item on a concept's lesson.
type ReadingEntry struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Year      int    `json:"year,omitempty"`
	Relevance string `json:"relevance,omitempty"`
}
