package properties

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeTx struct {
	database.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) IsOpen() bool {
	return !t.committed && !t.rolledBack
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.IsOpen() {
		t.committed = true
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.IsOpen() {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx  *fakeTx
	err error
}

func (f *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	if f.err != nil {
		return ctx, nil, f.err
	}
	return ctx, f.tx, nil
}

type deletion struct {
	entityType models.EntityType
	entityID   uuid.UUID
	name       string
}

type fakeStore struct {
	inserted  []*models.EntityProperty
	deletions []deletion
	insertErr error
	deleteErr error

	reclassName     string
	reclassInternal bool
	reclassAffected int64
}

func (f *fakeStore) InsertBatch(ctx context.Context, properties []*models.EntityProperty) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, properties...)
	return nil
}

func (f *fakeStore) DeleteActive(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletions = append(f.deletions, deletion{entityType: entityType, entityID: entityID, name: name})
	return nil
}

func (f *fakeStore) SetInternalByName(ctx context.Context, name string, internal bool) (int64, error) {
	f.reclassName = name
	f.reclassInternal = internal
	return f.reclassAffected, nil
}

type reconcilerFixture struct {
	reconciler *Reconciler
	tx         *fakeTx
	store      *fakeStore
}

func newReconcilerFixture(definitions *fakeDefinitions) *reconcilerFixture {
	if definitions == nil {
		definitions = &fakeDefinitions{}
	}
	tx := &fakeTx{}
	store := &fakeStore{}

	return &reconcilerFixture{
		reconciler: NewReconciler(&fakeDB{tx: tx}, DefaultWeightConfig(), store, definitions, getTestLogger()),
		tx:         tx,
		store:      store,
	}
}

func TestReconciler_Save(t *testing.T) {
	entityID := uuid.New()

	t.Run("replace deletes active rows then inserts the group", func(t *testing.T) {
		f := newReconcilerFixture(nil)

		_, err := f.reconciler.Save(context.Background(), models.EntityTypeNote, entityID, []models.ExtractedProperty{
			{Name: "tag", Value: "a", Weight: 3},
			{Name: "tag", Value: "b", Weight: 3},
		})
		require.NoError(t, err)

		require.Len(t, f.store.deletions, 1)
		assert.Equal(t, "tag", f.store.deletions[0].name)
		assert.Equal(t, entityID, f.store.deletions[0].entityID)

		require.Len(t, f.store.inserted, 2)
		assert.Equal(t, "a", f.store.inserted[0].Value)
		assert.Equal(t, "b", f.store.inserted[1].Value)
		assert.True(t, f.tx.committed)
	})

	t.Run("append never deletes", func(t *testing.T) {
		f := newReconcilerFixture(nil)

		_, err := f.reconciler.Save(context.Background(), models.EntityTypeNote, entityID, []models.ExtractedProperty{
			{Name: "status", Value: "TODO", Weight: 1},
		})
		require.NoError(t, err)

		assert.Empty(t, f.store.deletions)
		require.Len(t, f.store.inserted, 1)
	})

	t.Run("missing weight falls back to the default", func(t *testing.T) {
		f := newReconcilerFixture(nil)

		_, err := f.reconciler.Save(context.Background(), models.EntityTypeNote, entityID, []models.ExtractedProperty{
			{Name: "plain", Value: "x"},
		})
		require.NoError(t, err)

		// default weight is replace-policy
		require.Len(t, f.store.deletions, 1)
		require.Len(t, f.store.inserted, 1)
		assert.Equal(t, models.DefaultPropertyWeight, f.store.inserted[0].Weight)
	})

	t.Run("one change per group with the first value", func(t *testing.T) {
		f := newReconcilerFixture(nil)

		changes, err := f.reconciler.Save(context.Background(), models.EntityTypeNote, entityID, []models.ExtractedProperty{
			{Name: "tag", Value: "a", Weight: 3},
			{Name: "status", Value: "TODO", Weight: 1},
			{Name: "tag", Value: "b", Weight: 3},
		})
		require.NoError(t, err)

		assert.Equal(t, []Change{
			{Name: "tag", Value: "a"},
			{Name: "status", Value: "TODO"},
		}, changes)
	})

	t.Run("rows are classified", func(t *testing.T) {
		f := newReconcilerFixture(&fakeDefinitions{
			definitions: map[string]*models.PropertyDefinition{
				"secret": {Name: "secret", Internal: true},
			},
		})

		_, err := f.reconciler.Save(context.Background(), models.EntityTypeNote, entityID, []models.ExtractedProperty{
			{Name: "secret", Value: "x", Weight: 3},
			{Name: "priority", Value: "high", Weight: 3},
			{Name: "alias", Value: "Other Page", Weight: 3},
		})
		require.NoError(t, err)

		require.Len(t, f.store.inserted, 3)
		assert.True(t, f.store.inserted[0].Internal)
		assert.False(t, f.store.inserted[1].Internal)
		assert.True(t, f.store.inserted[2].Internal)
	})

	t.Run("persistence error aborts the save and reports no changes", func(t *testing.T) {
		f := newReconcilerFixture(nil)
		f.store.insertErr = fmt.Errorf("insert failed")

		changes, err := f.reconciler.Save(context.Background(), models.EntityTypeNote, entityID, []models.ExtractedProperty{
			{Name: "tag", Value: "a", Weight: 3},
		})
		require.Error(t, err)

		assert.False(t, f.tx.committed)
		assert.True(t, f.tx.rolledBack)
		assert.Empty(t, changes)
	})

	t.Run("no properties is a no-op", func(t *testing.T) {
		f := newReconcilerFixture(nil)

		changes, err := f.reconciler.Save(context.Background(), models.EntityTypeNote, entityID, nil)
		require.NoError(t, err)

		assert.Empty(t, changes)
		assert.Empty(t, f.store.inserted)
		assert.False(t, f.tx.committed)
	})

	t.Run("unknown entity type is rejected", func(t *testing.T) {
		f := newReconcilerFixture(nil)

		_, err := f.reconciler.Save(context.Background(), models.EntityType("attachment"), entityID, []models.ExtractedProperty{
			{Name: "tag", Value: "a"},
		})
		require.Error(t, err)
	})
}

func TestReconciler_ApplyDefinition(t *testing.T) {
	t.Run("auto_apply reclassifies existing rows", func(t *testing.T) {
		f := newReconcilerFixture(&fakeDefinitions{
			definitions: map[string]*models.PropertyDefinition{
				"legacy": {Name: "legacy", Internal: true, AutoApply: true},
			},
		})
		f.store.reclassAffected = 7

		affected, err := f.reconciler.ApplyDefinition(context.Background(), "legacy")
		require.NoError(t, err)

		assert.Equal(t, int64(7), affected)
		assert.Equal(t, "legacy", f.store.reclassName)
		assert.True(t, f.store.reclassInternal)
	})

	t.Run("without auto_apply nothing changes", func(t *testing.T) {
		f := newReconcilerFixture(&fakeDefinitions{
			definitions: map[string]*models.PropertyDefinition{
				"manual": {Name: "manual", Internal: true},
			},
		})

		affected, err := f.reconciler.ApplyDefinition(context.Background(), "manual")
		require.NoError(t, err)

		assert.Zero(t, affected)
		assert.Empty(t, f.store.reclassName)
	})

	t.Run("unknown definition errors", func(t *testing.T) {
		f := newReconcilerFixture(nil)

		_, err := f.reconciler.ApplyDefinition(context.Background(), "missing")
		require.Error(t, err)
	})
}
