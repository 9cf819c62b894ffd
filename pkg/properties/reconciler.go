package properties

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// TxBeginner begins or joins the context transaction. database.DB satisfies
// it.
type TxBeginner interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

// PropertyStore is the slice of the property repository the reconciler uses.
type PropertyStore interface {
	InsertBatch(ctx context.Context, properties []*models.EntityProperty) error
	DeleteActive(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, name string) error
	SetInternalByName(ctx context.Context, name string, internal bool) (int64, error)
}

// Change records one written property group: the name and the group's first
// value. The caller fires triggers from these once its transaction commits.
type Change struct {
	Name  string
	Value string
}

// Reconciler applies the weight-driven update policy to extracted properties
// and persists them.
type Reconciler struct {
	db          TxBeginner
	weights     *WeightConfig
	properties  PropertyStore
	definitions DefinitionLookup
	logger      ectologger.Logger
}

func NewReconciler(db TxBeginner, weights *WeightConfig, properties PropertyStore, definitions DefinitionLookup, logger ectologger.Logger) *Reconciler {
	return &Reconciler{
		db:          db,
		weights:     weights,
		properties:  properties,
		definitions: definitions,
		logger:      logger,
	}
}

type propertyGroup struct {
	name  string
	items []models.ExtractedProperty
}

// Save persists extracted properties for one entity. Groups are processed in
// first-seen order and the whole save is transactional. The returned changes
// carry one entry per group with the group's first value; a caller that owns
// the surrounding transaction must only dispatch them after it commits, since
// trigger handlers write on their own connections.
func (r *Reconciler) Save(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, extracted []models.ExtractedProperty) ([]Change, error) {
	ctx, span := tracing.StartSpan(ctx, "Reconciler.Save")
	defer span.End()

	if !entityType.IsValid() {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "unknown entity type")
	}
	if len(extracted) == 0 {
		return nil, nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// definition lookups are cached for this run only
	classifier := NewClassifier(r.definitions, r.logger)

	groups := groupByName(extracted)

	for _, group := range groups {
		weight := r.weights.Normalize(group.items[0].Weight)
		rule := r.weights.Rule(weight)

		if rule.UpdateBehavior == models.UpdateBehaviorReplace {
			if err := r.properties.DeleteActive(ctx, entityType, entityID, group.name); err != nil {
				return nil, err
			}
		}

		rows := make([]*models.EntityProperty, 0, len(group.items))
		for _, item := range group.items {
			internal, err := classifier.Classify(ctx, group.name, item.Internal)
			if err != nil {
				return nil, err
			}

			rows = append(rows, &models.EntityProperty{
				EntityType: entityType,
				EntityID:   entityID,
				Name:       group.name,
				Value:      item.Value,
				Weight:     r.weights.Normalize(item.Weight),
				Internal:   internal,
			})
		}

		if err := r.properties.InsertBatch(ctx, rows); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	changes := make([]Change, 0, len(groups))
	for _, group := range groups {
		changes = append(changes, Change{Name: group.name, Value: group.items[0].Value})
	}

	return changes, nil
}

// ApplyDefinition bulk-reclassifies every persisted row with the definition's
// name. Definitions without auto_apply are left to affect new rows only.
func (r *Reconciler) ApplyDefinition(ctx context.Context, name string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "Reconciler.ApplyDefinition")
	defer span.End()

	definition, err := r.definitions.GetByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if definition == nil {
		return 0, httperror.NewHTTPError(http.StatusNotFound, "property definition not found")
	}
	if !definition.AutoApply {
		return 0, nil
	}

	affected, err := r.properties.SetInternalByName(ctx, name, definition.Internal)
	if err != nil {
		return 0, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"name":     name,
		"internal": definition.Internal,
		"affected": affected,
	}).Info("Applied property definition")

	return affected, nil
}

// groupByName preserves first-seen order so trigger dispatch order matches
// extraction order.
func groupByName(extracted []models.ExtractedProperty) []propertyGroup {
	index := map[string]int{}
	groups := []propertyGroup{}
	for _, item := range extracted {
		i, ok := index[item.Name]
		if !ok {
			i = len(groups)
			index[item.Name] = i
			groups = append(groups, propertyGroup{name: item.Name})
		}
		groups[i].items = append(groups[i].items, item)
	}
	return groups
}
