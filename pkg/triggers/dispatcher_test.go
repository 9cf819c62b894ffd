package triggers

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/webhooks"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeNoteStore struct {
	internal map[uuid.UUID]bool
	err      error
}

func (f *fakeNoteStore) SetInternal(_ context.Context, id uuid.UUID, internal bool) error {
	if f.err != nil {
		return f.err
	}
	if f.internal == nil {
		f.internal = make(map[uuid.UUID]bool)
	}
	f.internal[id] = internal
	return nil
}

type fakePageStore struct {
	pages   map[string]*models.Page
	aliases map[uuid.UUID]*string
}

func newFakePageStore() *fakePageStore {
	return &fakePageStore{
		pages:   make(map[string]*models.Page),
		aliases: make(map[uuid.UUID]*string),
	}
}

func (f *fakePageStore) GetByName(_ context.Context, name string) (*models.Page, error) {
	return f.pages[name], nil
}

func (f *fakePageStore) SetAlias(_ context.Context, id uuid.UUID, alias *string) error {
	f.aliases[id] = alias
	return nil
}

type fakeWebhookLister struct {
	hooks []models.Webhook
	err   error
}

func (f *fakeWebhookLister) ListActive(_ context.Context, _ models.EntityType, _ bool) ([]models.Webhook, error) {
	return f.hooks, f.err
}

type notified struct {
	webhookID int64
	eventType string
	payload   webhooks.Payload
}

type fakeNotifier struct {
	calls []notified
}

func (f *fakeNotifier) DispatchEvent(_ context.Context, webhook *models.Webhook, eventType string, payload webhooks.Payload) *webhooks.DeliveryResult {
	f.calls = append(f.calls, notified{webhookID: webhook.ID, eventType: eventType, payload: payload})
	return &webhooks.DeliveryResult{Success: true, StatusCode: 200}
}

type emitted struct {
	entityType models.EntityType
	entityID   uuid.UUID
	name       string
	value      string
}

type fakeEmitter struct {
	events []emitted
	err    error
}

func (f *fakeEmitter) EmitPropertyChanged(_ context.Context, entityType models.EntityType, entityID uuid.UUID, name, value string) error {
	f.events = append(f.events, emitted{entityType: entityType, entityID: entityID, name: name, value: value})
	return f.err
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	notes      *fakeNoteStore
	pages      *fakePageStore
	lister     *fakeWebhookLister
	notifier   *fakeNotifier
	emitter    *fakeEmitter
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		notes:    &fakeNoteStore{},
		pages:    newFakePageStore(),
		lister:   &fakeWebhookLister{},
		notifier: &fakeNotifier{},
		emitter:  &fakeEmitter{},
	}
	f.dispatcher = NewDispatcher(f.notes, f.pages, f.lister, f.notifier, f.emitter, getTestLogger())
	return f
}

func TestDispatchNoteInternal(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "true", value: "true", want: true},
		{name: "mixed case", value: "True", want: true},
		{name: "numeric true", value: "1", want: true},
		{name: "false", value: "false", want: false},
		{name: "garbage defaults to false", value: "banana", want: false},
		{name: "empty defaults to false", value: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture()
			id := uuid.New()

			f.dispatcher.Dispatch(context.Background(), models.EntityTypeNote, id, "internal", tt.value)

			require.Contains(t, f.notes.internal, id)
			assert.Equal(t, tt.want, f.notes.internal[id])
		})
	}
}

func TestDispatchPageAlias(t *testing.T) {
	t.Run("existing target sets alias", func(t *testing.T) {
		f := newDispatcherFixture()
		f.pages.pages["Projects"] = &models.Page{ID: uuid.New(), Name: "Projects"}
		id := uuid.New()

		f.dispatcher.Dispatch(context.Background(), models.EntityTypePage, id, "alias", "Projects")

		require.Contains(t, f.pages.aliases, id)
		require.NotNil(t, f.pages.aliases[id])
		assert.Equal(t, "Projects", *f.pages.aliases[id])
	})

	t.Run("dangling target clears alias", func(t *testing.T) {
		f := newDispatcherFixture()
		id := uuid.New()

		f.dispatcher.Dispatch(context.Background(), models.EntityTypePage, id, "alias", "NoSuchPage")

		require.Contains(t, f.pages.aliases, id)
		assert.Nil(t, f.pages.aliases[id])
	})

	t.Run("empty value clears alias", func(t *testing.T) {
		f := newDispatcherFixture()
		id := uuid.New()

		f.dispatcher.Dispatch(context.Background(), models.EntityTypePage, id, "alias", "  ")

		require.Contains(t, f.pages.aliases, id)
		assert.Nil(t, f.pages.aliases[id])
	})
}

func TestDispatchHandlerScopedToEntityType(t *testing.T) {
	f := newDispatcherFixture()
	id := uuid.New()

	// internal is a note property, a page write must not touch notes
	f.dispatcher.Dispatch(context.Background(), models.EntityTypePage, id, "internal", "true")

	assert.Empty(t, f.notes.internal)
}

func TestDispatchHandlerErrorDoesNotStopWebhooks(t *testing.T) {
	f := newDispatcherFixture()
	f.notes.err = errors.New("db down")
	f.lister.hooks = []models.Webhook{
		{ID: 1, URL: "http://example.test", PropertyNames: []string{"*"}, EventTypes: []string{models.EventTypePropertyChange}},
	}
	id := uuid.New()

	f.dispatcher.Dispatch(context.Background(), models.EntityTypeNote, id, "internal", "true")

	require.Len(t, f.notifier.calls, 1)
	assert.Equal(t, int64(1), f.notifier.calls[0].webhookID)
	require.Len(t, f.emitter.events, 1)
}

func TestDispatchWebhookMatching(t *testing.T) {
	f := newDispatcherFixture()
	f.lister.hooks = []models.Webhook{
		{ID: 1, PropertyNames: []string{"status"}, EventTypes: []string{models.EventTypePropertyChange}},
		{ID: 2, PropertyNames: []string{"*"}, EventTypes: []string{models.EventTypePropertyChange}},
		{ID: 3, PropertyNames: []string{"priority"}, EventTypes: []string{models.EventTypePropertyChange}},
		{ID: 4, PropertyNames: []string{"status"}, EventTypes: []string{models.EventTypeEntityDeleted}},
	}
	id := uuid.New()

	f.dispatcher.Dispatch(context.Background(), models.EntityTypeNote, id, "status", "DONE")

	require.Len(t, f.notifier.calls, 2)
	assert.Equal(t, int64(1), f.notifier.calls[0].webhookID)
	assert.Equal(t, int64(2), f.notifier.calls[1].webhookID)

	payload := f.notifier.calls[0].payload
	assert.Equal(t, models.EventTypePropertyChange, payload.Event)
	assert.Equal(t, int64(1), payload.WebhookID)
	assert.Equal(t, id.String(), payload.Data.EntityID)
	assert.Equal(t, "status", payload.Data.PropertyName)
	assert.Equal(t, "DONE", payload.Data.Value)
}

func TestDispatchEmitsChangeEvent(t *testing.T) {
	f := newDispatcherFixture()
	id := uuid.New()

	f.dispatcher.Dispatch(context.Background(), models.EntityTypeNote, id, "priority", "high")

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, models.EntityTypeNote, f.emitter.events[0].entityType)
	assert.Equal(t, id, f.emitter.events[0].entityID)
	assert.Equal(t, "priority", f.emitter.events[0].name)
	assert.Equal(t, "high", f.emitter.events[0].value)
}

func TestDispatchUnknownPropertyOnlyNotifies(t *testing.T) {
	f := newDispatcherFixture()
	id := uuid.New()

	f.dispatcher.Dispatch(context.Background(), models.EntityTypeNote, id, "mood", "curious")

	assert.Empty(t, f.notes.internal)
	assert.Empty(t, f.pages.aliases)
	require.Len(t, f.emitter.events, 1)
}
