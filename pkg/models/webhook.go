package models

import (
	"time"

	"github.com/lib/pq"
)

// Webhook event types carried on the wire.
const (
	EventTypePropertyChange = "property_change"
	EventTypeEntityCreated  = "entity_created"
	EventTypeEntityUpdated  = "entity_updated"
	EventTypeEntityDeleted  = "entity_deleted"
	EventTypeTest           = "test"
	EventTypeVerification   = "verification"
)

// WildcardPropertyName subscribes a webhook to every property name.
const WildcardPropertyName = "*"

// Webhook is a registered outbound endpoint. PropertyNames may contain the
// wildcard "*" to match any property.
type Webhook struct {
	ID            int64          `db:"id" json:"id"`
	URL           string         `db:"url" json:"url"`
	EntityType    EntityType     `db:"entity_type" json:"entity_type"`
	PropertyNames pq.StringArray `db:"property_names" json:"property_names"`
	EventTypes    pq.StringArray `db:"event_types" json:"event_types"`
	Secret        string         `db:"secret" json:"-"`
	Active        bool           `db:"active" json:"active"`
	Verified      bool           `db:"verified" json:"verified"`
	LastTriggered *time.Time     `db:"last_triggered" json:"last_triggered,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Webhook) TableName() string {
	return "webhooks"
}

// MatchesProperty reports whether the webhook subscribes to the given
// property name.
func (w *Webhook) MatchesProperty(name string) bool {
	for _, n := range w.PropertyNames {
		if n == WildcardPropertyName || n == name {
			return true
		}
	}
	return false
}

// MatchesEventType reports whether the webhook subscribes to the given event
// type.
func (w *Webhook) MatchesEventType(eventType string) bool {
	for _, t := range w.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// WebhookEvent is one row of the append-only delivery log. Rows are written
// once per dispatch attempt and never updated.
type WebhookEvent struct {
	ID           int64     `db:"id" json:"id"`
	WebhookID    int64     `db:"webhook_id" json:"webhook_id"`
	EventType    string    `db:"event_type" json:"event_type"`
	Payload      string    `db:"payload" json:"payload"`
	ResponseCode int       `db:"response_code" json:"response_code"`
	ResponseBody string    `db:"response_body" json:"response_body"`
	Success      bool      `db:"success" json:"success"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
