package models

import (
	"time"

	"github.com/google/uuid"
)

// PropertyKind classifies which micro-syntax produced an extracted property.
type PropertyKind string

const (
	PropertyKindProperty       PropertyKind = "property"
	PropertyKindPageLink       PropertyKind = "page_link"
	PropertyKindTaskStatus     PropertyKind = "task_status"
	PropertyKindBlockReference PropertyKind = "block_reference"
	PropertyKindTimestamp      PropertyKind = "timestamp"
	PropertyKindSQLQuery       PropertyKind = "sql_query"
	PropertyKindURL            PropertyKind = "url"
)

// ExtractedProperty is the transient output of a pattern handler. It lives
// for one pipeline run and is consumed by the reconciler; it is never stored
// as-is.
type ExtractedProperty struct {
	Name     string       `json:"name"`
	Value    string       `json:"value"`
	Weight   int          `json:"weight"`
	RawMatch string       `json:"raw_match"`
	Kind     PropertyKind `json:"kind"`
	// Internal overrides classification when the caller already knows the
	// answer. Nil defers to the definition store and the name heuristic.
	Internal *bool `json:"internal,omitempty"`
}

// EntityProperty is a persisted property row. Weight is immutable after
// insert; replace-policy updates delete and re-insert rather than mutate.
type EntityProperty struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	EntityType EntityType `db:"entity_type" json:"entity_type"`
	EntityID   uuid.UUID  `db:"entity_id" json:"entity_id"`
	Name       string     `db:"name" json:"name"`
	Value      string     `db:"value" json:"value"`
	Weight     int        `db:"weight" json:"weight"`
	Internal   bool       `db:"internal" json:"internal"`
	Active     bool       `db:"active" json:"active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (EntityProperty) TableName() string {
	return "entity_properties"
}

// DefaultPropertyWeight applies when extraction supplies no explicit weight.
const DefaultPropertyWeight = 3

// UpdateBehavior is what the reconciler does with prior rows of the same name.
type UpdateBehavior string

const (
	UpdateBehaviorAppend  UpdateBehavior = "append"
	UpdateBehaviorReplace UpdateBehavior = "replace"
)

// WeightRule maps one weight to its persistence policy and default
// visibility.
type WeightRule struct {
	Weight            int            `json:"weight"`
	UpdateBehavior    UpdateBehavior `json:"update_behavior"`
	VisibleInViewMode bool           `json:"visible_in_view_mode"`
}
