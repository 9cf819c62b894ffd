package processor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/patterns"
	"github.com/Ramsey-B/fern/pkg/properties"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

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
	tx *fakeTx
}

func (f *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	return ctx, f.tx, nil
}

type fakeNotes struct {
	notes          map[uuid.UUID]*models.Note
	created        []*models.Note
	updatedContent map[uuid.UUID]string
	createErr      error
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{
		notes:          make(map[uuid.UUID]*models.Note),
		updatedContent: make(map[uuid.UUID]string),
	}
}

func (f *fakeNotes) GetByID(_ context.Context, id uuid.UUID) (*models.Note, error) {
	if note, ok := f.notes[id]; ok {
		return note, nil
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "note not found")
}

func (f *fakeNotes) Create(_ context.Context, note *models.Note) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, note)
	f.notes[note.ID] = note
	return nil
}

func (f *fakeNotes) UpdateContent(_ context.Context, id uuid.UUID, content string) error {
	f.updatedContent[id] = content
	return nil
}

type fakePages struct {
	pages          map[uuid.UUID]*models.Page
	created        []*models.Page
	updatedContent map[uuid.UUID]string
}

func newFakePages() *fakePages {
	return &fakePages{
		pages:          make(map[uuid.UUID]*models.Page),
		updatedContent: make(map[uuid.UUID]string),
	}
}

func (f *fakePages) GetByID(_ context.Context, id uuid.UUID) (*models.Page, error) {
	if page, ok := f.pages[id]; ok {
		return page, nil
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "page not found")
}

func (f *fakePages) Create(_ context.Context, page *models.Page) error {
	f.created = append(f.created, page)
	f.pages[page.ID] = page
	return nil
}

func (f *fakePages) UpdateContent(_ context.Context, id uuid.UUID, content string) error {
	f.updatedContent[id] = content
	return nil
}

type reconciled struct {
	entityType models.EntityType
	entityID   uuid.UUID
	properties []models.ExtractedProperty
}

type fakeReconciler struct {
	calls []reconciled
	err   error
}

func (f *fakeReconciler) Save(_ context.Context, entityType models.EntityType, entityID uuid.UUID, extracted []models.ExtractedProperty) ([]properties.Change, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, reconciled{entityType: entityType, entityID: entityID, properties: extracted})

	// first value per name in first-seen order, like the real reconciler
	changes := []properties.Change{}
	seen := map[string]bool{}
	for _, prop := range extracted {
		if seen[prop.Name] {
			continue
		}
		seen[prop.Name] = true
		changes = append(changes, properties.Change{Name: prop.Name, Value: prop.Value})
	}
	return changes, nil
}

type dispatched struct {
	name  string
	value string

	// state observed when the dispatch arrived
	txCommitted  bool
	pagesCreated int
}

type fakeDispatcher struct {
	tx    *fakeTx
	pages *fakePages
	calls []dispatched
}

func (f *fakeDispatcher) Dispatch(_ context.Context, entityType models.EntityType, entityID uuid.UUID, name string, value string) {
	f.calls = append(f.calls, dispatched{
		name:         name,
		value:        value,
		txCommitted:  f.tx.committed,
		pagesCreated: len(f.pages.created),
	})
}

type lifecycleEvent struct {
	event      string
	entityType models.EntityType
	entityID   uuid.UUID
}

type fakeLifecycleEmitter struct {
	events []lifecycleEvent
}

func (f *fakeLifecycleEmitter) EmitEntityEvent(_ context.Context, event string, entityType models.EntityType, entityID uuid.UUID) error {
	f.events = append(f.events, lifecycleEvent{event: event, entityType: entityType, entityID: entityID})
	return nil
}

type processorFixture struct {
	processor  *Processor
	tx         *fakeTx
	notes      *fakeNotes
	pages      *fakePages
	reconciler *fakeReconciler
	dispatcher *fakeDispatcher
	emitter    *fakeLifecycleEmitter
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	logger := getTestLogger()

	pipeline, err := patterns.NewPipeline(logger, patterns.Config{})
	require.NoError(t, err)

	f := &processorFixture{
		tx:         &fakeTx{},
		notes:      newFakeNotes(),
		pages:      newFakePages(),
		reconciler: &fakeReconciler{},
		emitter:    &fakeLifecycleEmitter{},
	}
	f.dispatcher = &fakeDispatcher{tx: f.tx, pages: f.pages}
	f.processor = NewProcessor(&fakeDB{tx: f.tx}, pipeline, f.reconciler, f.notes, f.pages, f.dispatcher, f.emitter, logger)
	return f
}

func TestSaveUpdatesExistingNote(t *testing.T) {
	f := newProcessorFixture(t)
	id := uuid.New()
	f.notes.notes[id] = &models.Note{ID: id, Content: "old"}

	result, err := f.processor.Save(context.Background(), SaveRequest{
		EntityType: models.EntityTypeNote,
		EntityID:   id,
		Content:    "TODO ship it {priority::high}",
	})
	require.NoError(t, err)

	assert.False(t, result.Created)
	assert.True(t, f.tx.committed)
	assert.False(t, f.tx.rolledBack)

	assert.Equal(t, "TODO ship it {priority::high}", f.notes.updatedContent[id])

	require.Len(t, f.reconciler.calls, 1)
	call := f.reconciler.calls[0]
	assert.Equal(t, models.EntityTypeNote, call.entityType)
	assert.Equal(t, id, call.entityID)

	names := make([]string, 0, len(call.properties))
	for _, prop := range call.properties {
		names = append(names, prop.Name)
	}
	assert.Contains(t, names, "status")
	assert.Contains(t, names, "priority")

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, models.EventTypeEntityUpdated, f.emitter.events[0].event)
}

func TestSaveCreatesMissingNote(t *testing.T) {
	f := newProcessorFixture(t)
	id := uuid.New()
	pageID := uuid.New()

	result, err := f.processor.Save(context.Background(), SaveRequest{
		EntityType: models.EntityTypeNote,
		EntityID:   id,
		PageID:     &pageID,
		Content:    "a fresh note",
	})
	require.NoError(t, err)

	assert.True(t, result.Created)
	require.Len(t, f.notes.created, 1)
	assert.Equal(t, id, f.notes.created[0].ID)
	assert.Equal(t, pageID, f.notes.created[0].PageID)

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, models.EventTypeEntityCreated, f.emitter.events[0].event)
}

func TestSaveCreateNoteRequiresPageID(t *testing.T) {
	f := newProcessorFixture(t)

	_, err := f.processor.Save(context.Background(), SaveRequest{
		EntityType: models.EntityTypeNote,
		EntityID:   uuid.New(),
		Content:    "orphan",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.False(t, f.tx.committed)
}

func TestSaveCreatesMissingPage(t *testing.T) {
	f := newProcessorFixture(t)
	id := uuid.New()

	result, err := f.processor.Save(context.Background(), SaveRequest{
		EntityType: models.EntityTypePage,
		EntityID:   id,
		Name:       "Projects",
		Content:    "links to [[Home]]",
	})
	require.NoError(t, err)

	assert.True(t, result.Created)
	require.Len(t, f.pages.created, 1)
	assert.Equal(t, "Projects", f.pages.created[0].Name)
	require.Len(t, f.reconciler.calls, 1)
}

func TestSaveRejectsUnknownEntityType(t *testing.T) {
	f := newProcessorFixture(t)

	_, err := f.processor.Save(context.Background(), SaveRequest{
		EntityType: models.EntityType("widget"),
		EntityID:   uuid.New(),
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestSaveRollsBackWhenReconcilerFails(t *testing.T) {
	f := newProcessorFixture(t)
	id := uuid.New()
	f.notes.notes[id] = &models.Note{ID: id}
	f.reconciler.err = errors.New("insert failed")

	_, err := f.processor.Save(context.Background(), SaveRequest{
		EntityType: models.EntityTypeNote,
		EntityID:   id,
		Content:    "{status::open}",
	})
	require.Error(t, err)

	assert.False(t, f.tx.committed)
	assert.True(t, f.tx.rolledBack)
	assert.Empty(t, f.dispatcher.calls)
	assert.Empty(t, f.emitter.events)
}

func TestSaveDispatchesTriggersOnlyAfterCommit(t *testing.T) {
	f := newProcessorFixture(t)
	id := uuid.New()
	f.notes.notes[id] = &models.Note{ID: id}

	// the internal trigger updates the very note row this save writes, so it
	// must not run while the save transaction still holds the row
	_, err := f.processor.Save(context.Background(), SaveRequest{
		EntityType: models.EntityTypeNote,
		EntityID:   id,
		Content:    "{internal::true}",
	})
	require.NoError(t, err)

	require.Len(t, f.dispatcher.calls, 1)
	call := f.dispatcher.calls[0]
	assert.Equal(t, "internal", call.name)
	assert.Equal(t, "true", call.value)
	assert.True(t, call.txCommitted, "trigger dispatched while the save transaction was still open")
}

func TestSaveCreatedPageIsVisibleToAliasTrigger(t *testing.T) {
	f := newProcessorFixture(t)
	id := uuid.New()

	// a page created and aliased in the same save: the alias trigger runs on
	// its own connection and must find the page already committed
	_, err := f.processor.Save(context.Background(), SaveRequest{
		EntityType: models.EntityTypePage,
		EntityID:   id,
		Name:       "Inbox",
		Content:    "{alias::Nowhere}",
	})
	require.NoError(t, err)

	require.Len(t, f.dispatcher.calls, 1)
	call := f.dispatcher.calls[0]
	assert.Equal(t, "alias", call.name)
	assert.Equal(t, "Nowhere", call.value)
	assert.True(t, call.txCommitted)
	assert.Equal(t, 1, call.pagesCreated, "alias trigger fired before the page existed")
}

func TestSavePassesRewrittenContentToStore(t *testing.T) {
	f := newProcessorFixture(t)
	id := uuid.New()
	f.notes.notes[id] = &models.Note{ID: id}

	// the pipeline currently leaves content untouched, the store must still
	// receive the pipeline's output rather than the raw request
	result, err := f.processor.Save(context.Background(), SaveRequest{
		EntityType: models.EntityTypeNote,
		EntityID:   id,
		Content:    "see [[Home]] and !{{abc123}}",
	})
	require.NoError(t, err)
	assert.Equal(t, result.Content, f.notes.updatedContent[id])
}

func TestMessageHandler(t *testing.T) {
	t.Run("valid message saves", func(t *testing.T) {
		f := newProcessorFixture(t)
		id := uuid.New()
		f.notes.notes[id] = &models.Note{ID: id}

		body, err := json.Marshal(SaveRequest{
			EntityType: models.EntityTypeNote,
			EntityID:   id,
			Content:    "{status::open}",
		})
		require.NoError(t, err)

		handler := f.processor.MessageHandler()
		require.NoError(t, handler(context.Background(), &kafka.ReceivedMessage{Value: body}))
		require.Len(t, f.reconciler.calls, 1)
	})

	t.Run("malformed message is dropped", func(t *testing.T) {
		f := newProcessorFixture(t)

		handler := f.processor.MessageHandler()
		require.NoError(t, handler(context.Background(), &kafka.ReceivedMessage{Value: []byte("not json")}))
		assert.Empty(t, f.reconciler.calls)
	})
}
