package models

import (
	"time"

	"github.com/google/uuid"
)

// PropertyDefinition is an explicit classification for a property name.
// When AutoApply is set, the definition can be bulk-applied to reclassify
// every existing row with that name.
type PropertyDefinition struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Internal    bool      `db:"internal" json:"internal"`
	AutoApply   bool      `db:"auto_apply" json:"auto_apply"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (PropertyDefinition) TableName() string {
	return "property_definitions"
}
