package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType identifies which table a property row hangs off of.
type EntityType string

const (
	EntityTypeNote EntityType = "note"
	EntityTypePage EntityType = "page"
)

func (e EntityType) IsValid() bool {
	return e == EntityTypeNote || e == EntityTypePage
}

// Note is a single outline block on a page.
type Note struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PageID     uuid.UUID  `db:"page_id" json:"page_id"`
	ParentID   *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
	Content    string     `db:"content" json:"content"`
	OrderIndex int        `db:"order_index" json:"order_index"`
	Internal   bool       `db:"internal" json:"internal"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Note) TableName() string {
	return "notes"
}

// Page groups notes under a name. Alias is a denormalized redirect target
// kept in sync by the trigger dispatcher.
type Page struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Alias     *string   `db:"alias" json:"alias,omitempty"`
	Content   *string   `db:"content" json:"content,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Page) TableName() string {
	return "pages"
}
