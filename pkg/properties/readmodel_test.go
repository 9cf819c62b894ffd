package properties

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeReader struct {
	rows []models.EntityProperty
}

func (f *fakeReader) GetByEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, includeInternal bool) ([]models.EntityProperty, error) {
	if includeInternal {
		return f.rows, nil
	}
	visible := []models.EntityProperty{}
	for _, row := range f.rows {
		if !row.Internal {
			visible = append(visible, row)
		}
	}
	return visible, nil
}

func TestReadModel_GetProperties(t *testing.T) {
	now := time.Now().UTC()
	entityID := uuid.New()
	reader := &fakeReader{
		rows: []models.EntityProperty{
			{Name: "priority", Value: "high", Weight: 3, CreatedAt: now},
			{Name: "status", Value: "TODO", Weight: 1, CreatedAt: now},
			{Name: "status", Value: "DONE", Weight: 1, CreatedAt: now},
			{Name: "alias", Value: "Other", Weight: 3, Internal: true, CreatedAt: now},
		},
	}
	readModel := NewReadModel(reader, getTestLogger())

	t.Run("single values collapse to scalars", func(t *testing.T) {
		result, err := readModel.GetProperties(context.Background(), models.EntityTypeNote, entityID, false)
		require.NoError(t, err)

		assert.Equal(t, "high", result["priority"])
		assert.NotContains(t, result, "alias")

		values, ok := result["status"].([]PropertyValue)
		require.True(t, ok)
		require.Len(t, values, 2)
		assert.Equal(t, "TODO", values[0].Value)
		assert.Equal(t, "DONE", values[1].Value)
	})

	t.Run("internal-inclusive requests always get lists", func(t *testing.T) {
		result, err := readModel.GetProperties(context.Background(), models.EntityTypeNote, entityID, true)
		require.NoError(t, err)

		values, ok := result["priority"].([]PropertyValue)
		require.True(t, ok)
		require.Len(t, values, 1)
		assert.Equal(t, "high", values[0].Value)
		assert.Equal(t, 3, values[0].Weight)

		aliasValues, ok := result["alias"].([]PropertyValue)
		require.True(t, ok)
		require.Len(t, aliasValues, 1)
		assert.True(t, aliasValues[0].Internal)
	})
}
