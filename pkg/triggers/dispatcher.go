// Package triggers fires side effects after property writes: built-in
// handlers for reserved property names, webhook notifications, and Kafka
// change events.
package triggers

import (
	"context"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/webhooks"
)

// NoteStore is the slice of the note repository the dispatcher needs.
type NoteStore interface {
	SetInternal(ctx context.Context, id uuid.UUID, internal bool) error
}

// PageStore is the slice of the page repository the dispatcher needs.
type PageStore interface {
	GetByName(ctx context.Context, name string) (*models.Page, error)
	SetAlias(ctx context.Context, id uuid.UUID, alias *string) error
}

// WebhookLister lists webhooks eligible for notification.
type WebhookLister interface {
	ListActive(ctx context.Context, entityType models.EntityType, verifiedOnly bool) ([]models.Webhook, error)
}

// EventNotifier delivers a payload to a single webhook.
type EventNotifier interface {
	DispatchEvent(ctx context.Context, webhook *models.Webhook, eventType string, payload webhooks.Payload) *webhooks.DeliveryResult
}

// ChangeEmitter publishes property change events to the message bus. May be
// nil to disable emission.
type ChangeEmitter interface {
	EmitPropertyChanged(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, name, value string) error
}

// HandlerFunc is a built-in reaction to a property write.
type HandlerFunc func(ctx context.Context, entityID uuid.UUID, value string) error

// Dispatcher routes property writes to built-in handlers and matching
// webhooks. It never fails the write that triggered it: every error is
// logged and swallowed.
type Dispatcher struct {
	handlers map[models.EntityType]map[string]HandlerFunc
	webhooks WebhookLister
	notifier EventNotifier
	emitter  ChangeEmitter
	logger   ectologger.Logger
}

// NewDispatcher creates a Dispatcher with the built-in handler table
// registered. notifier and emitter may be nil.
func NewDispatcher(notes NoteStore, pages PageStore, webhookList WebhookLister, notifier EventNotifier, emitter ChangeEmitter, logger ectologger.Logger) *Dispatcher {
	d := &Dispatcher{
		webhooks: webhookList,
		notifier: notifier,
		emitter:  emitter,
		logger:   logger,
	}

	d.handlers = map[models.EntityType]map[string]HandlerFunc{
		models.EntityTypeNote: {
			"internal": func(ctx context.Context, entityID uuid.UUID, value string) error {
				internal, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(value)))
				if err != nil {
					internal = false
				}
				return notes.SetInternal(ctx, entityID, internal)
			},
		},
		models.EntityTypePage: {
			"alias": func(ctx context.Context, entityID uuid.UUID, value string) error {
				target := strings.TrimSpace(value)
				if target == "" {
					return pages.SetAlias(ctx, entityID, nil)
				}
				page, err := pages.GetByName(ctx, target)
				if err != nil {
					return err
				}
				if page == nil {
					// dangling alias target, clear instead of pointing nowhere
					return pages.SetAlias(ctx, entityID, nil)
				}
				return pages.SetAlias(ctx, entityID, &target)
			},
		},
	}

	return d
}

// Dispatch fires all reactions to a property write. It runs outside the
// caller's transaction: the write that triggered it is already committed,
// and a failing side effect must not roll it back.
func (d *Dispatcher) Dispatch(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, name string, value string) {
	ctx = database.DetachTx(ctx)
	ctx, span := tracing.StartSpan(ctx, "triggers.Dispatch")
	defer span.End()

	log := d.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"entity_type": entityType,
		"entity_id":   entityID,
		"property":    name,
	})

	if handler := d.handlers[entityType][name]; handler != nil {
		if err := handler(ctx, entityID, value); err != nil {
			log.WithError(err).Errorf("trigger handler failed for property %q", name)
			metrics.TriggersTotal.WithLabelValues(string(entityType), name, "failure").Inc()
		} else {
			metrics.TriggersTotal.WithLabelValues(string(entityType), name, "success").Inc()
		}
	}

	d.notifyWebhooks(ctx, entityType, entityID, name, value, log)

	if d.emitter != nil {
		if err := d.emitter.EmitPropertyChanged(ctx, entityType, entityID, name, value); err != nil {
			log.WithError(err).Errorf("failed to emit property change event")
		}
	}
}

func (d *Dispatcher) notifyWebhooks(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, name, value string, log ectologger.Logger) {
	if d.notifier == nil {
		return
	}

	hooks, err := d.webhooks.ListActive(ctx, entityType, true)
	if err != nil {
		log.WithError(err).Errorf("failed to list webhooks")
		return
	}

	for i := range hooks {
		hook := &hooks[i]
		if !hook.MatchesProperty(name) || !hook.MatchesEventType(models.EventTypePropertyChange) {
			continue
		}

		payload := webhooks.NewPropertyChangePayload(hook.ID, entityType, entityID, name, value)
		result := d.notifier.DispatchEvent(ctx, hook, models.EventTypePropertyChange, payload)
		if !result.Success {
			log.Warnf("webhook %d delivery failed with status %d", hook.ID, result.StatusCode)
		}
	}
}
