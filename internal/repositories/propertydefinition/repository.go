package propertydefinition

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const definitionsTable = "property_definitions"

var definitionStruct = database.NewStruct(new(models.PropertyDefinition))

type DefinitionRepository interface {
	GetByName(ctx context.Context, name string) (*models.PropertyDefinition, error)
	List(ctx context.Context) ([]models.PropertyDefinition, error)
	Upsert(ctx context.Context, definition *models.PropertyDefinition) error
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new property definition repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByName returns the definition for a property name, or nil when no
// definition exists.
func (r *Repository) GetByName(ctx context.Context, name string) (*models.PropertyDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "DefinitionRepository.GetByName")
	defer span.End()

	sb := definitionStruct.SelectFrom(definitionsTable)
	sb.Where(sb.Equal("name", name))
	sb.Limit(1)

	query, args := sb.Build()

	var definition models.PropertyDefinition
	err := r.db.GetContext(ctx, &definition, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"name": name,
		}).Error("failed to get property definition")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get property definition")
	}

	return &definition, nil
}

// List returns every definition ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.PropertyDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "DefinitionRepository.List")
	defer span.End()

	sb := definitionStruct.SelectFrom(definitionsTable)
	sb.OrderBy("name").Asc()

	query, args := sb.Build()

	definitions := []models.PropertyDefinition{}
	err := r.db.SelectContext(ctx, &definitions, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list property definitions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list property definitions")
	}

	return definitions, nil
}

// Upsert creates or replaces the definition for a name.
func (r *Repository) Upsert(ctx context.Context, definition *models.PropertyDefinition) error {
	ctx, span := tracing.StartSpan(ctx, "DefinitionRepository.Upsert")
	defer span.End()

	if definition.ID == uuid.Nil {
		definition.ID = uuid.New()
	}
	now := time.Now().UTC()
	definition.CreatedAt = now
	definition.UpdatedAt = now

	ib := definitionStruct.InsertInto(definitionsTable, definition)
	ub := ib.OnConflict("name")
	ub.Set(
		ub.Assign("internal", database.Excluded("internal")),
		ub.Assign("auto_apply", database.Excluded("auto_apply")),
		ub.Assign("description", database.Excluded("description")),
		ub.Assign("updated_at", now),
	)

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"name": definition.Name,
		}).Error("failed to upsert property definition")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert property definition")
	}

	return tx.Commit(ctx)
}
