package property

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const propertiesTable = "entity_properties"

var propertyStruct = database.NewStruct(new(models.EntityProperty))

type PropertyRepository interface {
	InsertBatch(ctx context.Context, properties []*models.EntityProperty) error
	DeleteActive(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, name string) error
	GetByEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, includeInternal bool) ([]models.EntityProperty, error)
	SetInternalByName(ctx context.Context, name string, internal bool) (int64, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity property repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// DB exposes the underlying database handle for transactional operations.
func (r *Repository) DB() database.DB {
	return r.db
}

// InsertBatch inserts every row in one statement. Joins the transaction
// already open on the context when there is one.
func (r *Repository) InsertBatch(ctx context.Context, properties []*models.EntityProperty) error {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.InsertBatch")
	defer span.End()

	if len(properties) == 0 {
		return nil
	}

	now := time.Now().UTC()
	ib := database.NewInsertBuilder()
	ib.InsertInto(propertiesTable)
	ib.Cols("id", "entity_type", "entity_id", "name", "value", "weight", "internal", "active", "created_at", "updated_at")
	for _, property := range properties {
		if property.ID == uuid.Nil {
			property.ID = uuid.New()
		}
		property.Active = true
		property.CreatedAt = now
		property.UpdatedAt = now
		ib.Values(property.ID, property.EntityType, property.EntityID, property.Name, property.Value,
			property.Weight, property.Internal, property.Active, property.CreatedAt, property.UpdatedAt)
	}

	sql, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_type": properties[0].EntityType,
			"entity_id":   properties[0].EntityID,
			"count":       len(properties),
		}).Error("failed to insert entity properties")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert entity properties")
	}

	return tx.Commit(ctx)
}

// DeleteActive removes the active rows for one (entity, name) group. Used by
// replace-policy saves before re-inserting the group.
func (r *Repository) DeleteActive(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, name string) error {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.DeleteActive")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(propertiesTable)
	db.Where(
		db.Equal("entity_type", entityType),
		db.Equal("entity_id", entityID),
		db.Equal("name", name),
		db.Equal("active", true),
	)

	sql, args := db.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_type": entityType,
			"entity_id":   entityID,
			"name":        name,
		}).Error("failed to delete entity properties")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete entity properties")
	}

	return tx.Commit(ctx)
}

// GetByEntity returns the entity's properties in insertion order. Internal
// rows are excluded unless asked for.
func (r *Repository) GetByEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, includeInternal bool) ([]models.EntityProperty, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.GetByEntity")
	defer span.End()

	sb := propertyStruct.SelectFrom(propertiesTable)
	sb.Where(
		sb.Equal("entity_type", entityType),
		sb.Equal("entity_id", entityID),
		sb.Equal("active", true),
	)
	if !includeInternal {
		sb.Where(sb.Equal("internal", false))
	}
	sb.OrderBy("created_at", "id").Asc()

	sql, args := sb.Build()

	properties := []models.EntityProperty{}
	err := r.db.SelectContext(ctx, &properties, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_type": entityType,
			"entity_id":   entityID,
		}).Error("failed to get entity properties")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity properties")
	}

	return properties, nil
}

// SetInternalByName reclassifies every row with the given name. Used when a
// property definition with auto_apply is bulk-applied.
func (r *Repository) SetInternalByName(ctx context.Context, name string, internal bool) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.SetInternalByName")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(propertiesTable)
	ub.Set(
		ub.Assign("internal", internal),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("name", name))

	sql, args := ub.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	result, err := tx.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"name":     name,
			"internal": internal,
		}).Error("failed to reclassify entity properties")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reclassify entity properties")
	}

	affected, _ := result.RowsAffected()

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}

	return affected, nil
}
