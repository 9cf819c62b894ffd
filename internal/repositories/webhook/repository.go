package webhook

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const webhooksTable = "webhooks"

var webhookStruct = database.NewStruct(new(models.Webhook))

type WebhookRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Webhook, error)
	ListActive(ctx context.Context, entityType models.EntityType, verifiedOnly bool) ([]models.Webhook, error)
	Create(ctx context.Context, webhook *models.Webhook) error
	UpdateLastTriggered(ctx context.Context, id int64, triggeredAt time.Time) error
	SetVerified(ctx context.Context, id int64, verified bool) error
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new webhook repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Webhook, error) {
	ctx, span := tracing.StartSpan(ctx, "WebhookRepository.GetByID")
	defer span.End()

	sb := webhookStruct.SelectFrom(webhooksTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var webhook models.Webhook
	err := r.db.GetContext(ctx, &webhook, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "webhook not found")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"webhook_id": id,
		}).Error("failed to get webhook")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get webhook")
	}

	return &webhook, nil
}

// ListActive returns the active webhooks for an entity type, in creation
// order. Property name and event type filtering happens in the dispatcher.
func (r *Repository) ListActive(ctx context.Context, entityType models.EntityType, verifiedOnly bool) ([]models.Webhook, error) {
	ctx, span := tracing.StartSpan(ctx, "WebhookRepository.ListActive")
	defer span.End()

	sb := webhookStruct.SelectFrom(webhooksTable)
	sb.Where(
		sb.Equal("entity_type", entityType),
		sb.Equal("active", true),
	)
	if verifiedOnly {
		sb.Where(sb.Equal("verified", true))
	}
	sb.OrderBy("id").Asc()

	query, args := sb.Build()

	webhooks := []models.Webhook{}
	err := r.db.SelectContext(ctx, &webhooks, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_type": entityType,
		}).Error("failed to list webhooks")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list webhooks")
	}

	return webhooks, nil
}

func (r *Repository) Create(ctx context.Context, webhook *models.Webhook) error {
	ctx, span := tracing.StartSpan(ctx, "WebhookRepository.Create")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(webhooksTable).
		Cols("url", "entity_type", "property_names", "event_types", "secret", "active", "verified").
		Values(webhook.URL, webhook.EntityType, webhook.PropertyNames, webhook.EventTypes,
			webhook.Secret, webhook.Active, webhook.Verified).
		Returning("id", "created_at", "updated_at")

	query, args := ib.Build()

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&webhook.ID, &webhook.CreatedAt, &webhook.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"url": webhook.URL,
		}).Error("failed to create webhook")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create webhook")
	}

	return nil
}

// UpdateLastTriggered stamps a successful delivery.
func (r *Repository) UpdateLastTriggered(ctx context.Context, id int64, triggeredAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "WebhookRepository.UpdateLastTriggered")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(webhooksTable)
	ub.Set(
		ub.Assign("last_triggered", triggeredAt),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"webhook_id": id,
		}).Error("failed to update webhook last_triggered")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update webhook")
	}

	return nil
}

// SetVerified records a verification outcome.
func (r *Repository) SetVerified(ctx context.Context, id int64, verified bool) error {
	ctx, span := tracing.StartSpan(ctx, "WebhookRepository.SetVerified")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(webhooksTable)
	ub.Set(
		ub.Assign("verified", verified),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"webhook_id": id,
			"verified":   verified,
		}).Error("failed to update webhook verified flag")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update webhook")
	}

	return nil
}
