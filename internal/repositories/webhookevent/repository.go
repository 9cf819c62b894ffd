package webhookevent

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const eventsTable = "webhook_events"

var eventStruct = database.NewStruct(new(models.WebhookEvent))

type EventRepository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	ListByWebhook(ctx context.Context, webhookID int64, limit int) ([]models.WebhookEvent, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new webhook delivery log repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create appends one delivery attempt to the log. Rows are write-once.
func (r *Repository) Create(ctx context.Context, event *models.WebhookEvent) error {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.Create")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(eventsTable).
		Cols("webhook_id", "event_type", "payload", "response_code", "response_body", "success").
		Values(event.WebhookID, event.EventType, event.Payload, event.ResponseCode, event.ResponseBody, event.Success).
		Returning("id", "created_at")

	query, args := ib.Build()

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"webhook_id": event.WebhookID,
			"event_type": event.EventType,
		}).Error("failed to log webhook event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to log webhook event")
	}

	return nil
}

// ListByWebhook returns the newest delivery attempts for a webhook.
func (r *Repository) ListByWebhook(ctx context.Context, webhookID int64, limit int) ([]models.WebhookEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.ListByWebhook")
	defer span.End()

	sb := eventStruct.SelectFrom(eventsTable)
	sb.Where(sb.Equal("webhook_id", webhookID))
	sb.OrderBy("created_at").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()

	events := []models.WebhookEvent{}
	err := r.db.SelectContext(ctx, &events, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"webhook_id": webhookID,
		}).Error("failed to list webhook events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list webhook events")
	}

	return events, nil
}
