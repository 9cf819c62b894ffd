package properties

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// PropertyReader is the slice of the property repository the read model uses.
type PropertyReader interface {
	GetByEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, includeInternal bool) ([]models.EntityProperty, error)
}

// PropertyValue is one value of a multi-valued (or internal-inclusive)
// property in API responses.
type PropertyValue struct {
	Value     string     `json:"value"`
	Internal  bool       `json:"internal"`
	Weight    int        `json:"weight,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ReadModel shapes persisted properties for API responses.
type ReadModel struct {
	properties PropertyReader
	logger     ectologger.Logger
}

func NewReadModel(properties PropertyReader, logger ectologger.Logger) *ReadModel {
	return &ReadModel{
		properties: properties,
		logger:     logger,
	}
}

// GetProperties groups an entity's properties by name. A name with exactly
// one value collapses to a scalar; multiple values, or any request that
// includes internal rows, surface as a list of value objects.
func (m *ReadModel) GetProperties(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, includeInternal bool) (map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "ReadModel.GetProperties")
	defer span.End()

	rows, err := m.properties.GetByEntity(ctx, entityType, entityID, includeInternal)
	if err != nil {
		return nil, err
	}

	order := []string{}
	grouped := map[string][]PropertyValue{}
	for _, row := range rows {
		if _, ok := grouped[row.Name]; !ok {
			order = append(order, row.Name)
		}
		createdAt := row.CreatedAt
		grouped[row.Name] = append(grouped[row.Name], PropertyValue{
			Value:     row.Value,
			Internal:  row.Internal,
			Weight:    row.Weight,
			CreatedAt: &createdAt,
		})
	}

	result := make(map[string]any, len(grouped))
	for _, name := range order {
		values := grouped[name]
		if len(values) == 1 && !includeInternal {
			result[name] = values[0].Value
			continue
		}
		result[name] = values
	}

	return result, nil
}
