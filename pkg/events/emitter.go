// Package events publishes domain events to the message bus for downstream
// consumers like search indexers and sync clients.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Event names published to the bus.
const (
	PropertyChangedEvent = "property.changed"
	EntityCreatedEvent   = "entity.created"
	EntityUpdatedEvent   = "entity.updated"
	EntityDeletedEvent   = "entity.deleted"
)

// Publisher is the slice of the Kafka producer the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Message is the wire format for every event on the bus.
type Message struct {
	Event        string            `json:"event"`
	EntityType   models.EntityType `json:"entity_type"`
	EntityID     string            `json:"entity_id"`
	PropertyName string            `json:"property_name,omitempty"`
	Value        string            `json:"value,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// Emitter serializes domain events and hands them to the producer.
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
	now      func() time.Time
}

// NewEmitter creates an Emitter.
func NewEmitter(producer Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// EmitPropertyChanged publishes a property.changed event. The message key is
// the entity ID so all changes to one entity land on the same partition.
func (e *Emitter) EmitPropertyChanged(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, name, value string) error {
	return e.emit(ctx, Message{
		Event:        PropertyChangedEvent,
		EntityType:   entityType,
		EntityID:     entityID.String(),
		PropertyName: name,
		Value:        value,
		Timestamp:    e.now().UTC(),
	})
}

// EmitEntityEvent publishes an entity lifecycle event.
func (e *Emitter) EmitEntityEvent(ctx context.Context, event string, entityType models.EntityType, entityID uuid.UUID) error {
	return e.emit(ctx, Message{
		Event:      event,
		EntityType: entityType,
		EntityID:   entityID.String(),
		Timestamp:  e.now().UTC(),
	})
}

func (e *Emitter) emit(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if err := e.producer.Publish(ctx, msg.EntityID, data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", msg.Event, err)
	}

	e.logger.WithContext(ctx).Debugf("published %s event for %s %s", msg.Event, msg.EntityType, msg.EntityID)
	return nil
}
