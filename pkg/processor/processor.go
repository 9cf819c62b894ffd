// Package processor ties the save path together: run the pattern pipeline
// over incoming content, persist the rewritten content, and reconcile the
// extracted properties, all inside one transaction.
package processor

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/patterns"
	"github.com/Ramsey-B/fern/pkg/properties"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// SaveRequest is a request to save entity content. It arrives either over
// HTTP or as a message on the save topic.
type SaveRequest struct {
	EntityType models.EntityType `json:"entity_type" validate:"required"`
	EntityID   uuid.UUID         `json:"entity_id" validate:"required"`
	Content    string            `json:"content"`

	// Creation-only fields, ignored when the entity already exists.
	PageID   *uuid.UUID `json:"page_id,omitempty"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Name     string     `json:"name,omitempty"`
}

// SaveResult reports what a save did.
type SaveResult struct {
	EntityType models.EntityType          `json:"entity_type"`
	EntityID   uuid.UUID                  `json:"entity_id"`
	Content    string                     `json:"content"`
	Created    bool                       `json:"created"`
	Properties []models.ExtractedProperty `json:"properties"`
	Metadata   map[string]any             `json:"metadata,omitempty"`
}

// TxBeginner opens or joins the transaction on the context.
type TxBeginner interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

// NoteStore is the slice of the note repository the processor needs.
type NoteStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Note, error)
	Create(ctx context.Context, note *models.Note) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string) error
}

// PageStore is the slice of the page repository the processor needs.
type PageStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Page, error)
	Create(ctx context.Context, page *models.Page) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string) error
}

// Reconciler persists extracted properties and reports the written groups.
type Reconciler interface {
	Save(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, extracted []models.ExtractedProperty) ([]properties.Change, error)
}

// Dispatcher fires property triggers. It runs after the save transaction
// commits: trigger handlers update rows the save just wrote and webhooks must
// only report durable changes. May be nil.
type Dispatcher interface {
	Dispatch(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, name string, value string)
}

// LifecycleEmitter publishes entity lifecycle events. May be nil.
type LifecycleEmitter interface {
	EmitEntityEvent(ctx context.Context, event string, entityType models.EntityType, entityID uuid.UUID) error
}

// Processor runs the save path.
type Processor struct {
	db         TxBeginner
	pipeline   *patterns.Pipeline
	reconciler Reconciler
	notes      NoteStore
	pages      PageStore
	dispatcher Dispatcher
	emitter    LifecycleEmitter
	logger     ectologger.Logger
}

// NewProcessor creates a Processor. dispatcher and emitter may be nil.
func NewProcessor(db TxBeginner, pipeline *patterns.Pipeline, reconciler Reconciler, notes NoteStore, pages PageStore, dispatcher Dispatcher, emitter LifecycleEmitter, logger ectologger.Logger) *Processor {
	return &Processor{
		db:         db,
		pipeline:   pipeline,
		reconciler: reconciler,
		notes:      notes,
		pages:      pages,
		dispatcher: dispatcher,
		emitter:    emitter,
		logger:     logger,
	}
}

// Save processes and persists one piece of content. The pipeline run, the
// content write, and the property reconciliation commit or roll back
// together. Triggers and lifecycle events fire after the commit.
func (p *Processor) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "Processor.Save")
	defer span.End()

	start := time.Now()

	req, err := utils.Validate(req)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !req.EntityType.IsValid() {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", req.EntityType)
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"entity_type": req.EntityType,
		"entity_id":   req.EntityID,
	})

	ctx, tx, err := p.db.GetTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin save transaction")
	}
	defer tx.Rollback(ctx)

	pipelineResult, err := p.pipeline.Process(ctx, req.EntityType, req.EntityID, req.Content)
	if err != nil {
		metrics.SavesTotal.WithLabelValues(string(req.EntityType), "failure").Inc()
		return nil, err
	}

	created, err := p.persistContent(ctx, req, pipelineResult.Content)
	if err != nil {
		metrics.SavesTotal.WithLabelValues(string(req.EntityType), "failure").Inc()
		return nil, err
	}

	changes, err := p.reconciler.Save(ctx, req.EntityType, req.EntityID, pipelineResult.Properties)
	if err != nil {
		metrics.SavesTotal.WithLabelValues(string(req.EntityType), "failure").Inc()
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.SavesTotal.WithLabelValues(string(req.EntityType), "failure").Inc()
		return nil, errors.Wrap(err, "failed to commit save transaction")
	}

	metrics.SavesTotal.WithLabelValues(string(req.EntityType), "success").Inc()
	metrics.SaveDuration.WithLabelValues(string(req.EntityType)).Observe(time.Since(start).Seconds())

	// the rows are durable now, so triggers see them and webhooks cannot
	// report a change that rolls back
	if p.dispatcher != nil {
		for _, change := range changes {
			p.dispatcher.Dispatch(ctx, req.EntityType, req.EntityID, change.Name, change.Value)
		}
	}

	if p.emitter != nil {
		event := models.EventTypeEntityUpdated
		if created {
			event = models.EventTypeEntityCreated
		}
		if err := p.emitter.EmitEntityEvent(database.DetachTx(ctx), event, req.EntityType, req.EntityID); err != nil {
			log.WithError(err).Errorf("failed to emit %s event", event)
		}
	}

	log.Infof("saved %s with %d extracted properties", req.EntityType, len(pipelineResult.Properties))

	return &SaveResult{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Content:    pipelineResult.Content,
		Created:    created,
		Properties: pipelineResult.Properties,
		Metadata:   pipelineResult.Metadata,
	}, nil
}

// persistContent writes the post-pipeline content, creating the entity when
// it does not exist yet. Returns whether a new entity was created.
func (p *Processor) persistContent(ctx context.Context, req SaveRequest, content string) (bool, error) {
	switch req.EntityType {
	case models.EntityTypeNote:
		existing, err := p.notes.GetByID(ctx, req.EntityID)
		if err != nil && !isNotFound(err) {
			return false, err
		}
		if existing == nil {
			if req.PageID == nil {
				return false, httperror.NewHTTPError(http.StatusBadRequest, "page_id is required to create a note")
			}
			note := &models.Note{
				ID:       req.EntityID,
				PageID:   *req.PageID,
				ParentID: req.ParentID,
				Content:  content,
			}
			return true, p.notes.Create(ctx, note)
		}
		return false, p.notes.UpdateContent(ctx, req.EntityID, content)

	case models.EntityTypePage:
		existing, err := p.pages.GetByID(ctx, req.EntityID)
		if err != nil && !isNotFound(err) {
			return false, err
		}
		if existing == nil {
			if req.Name == "" {
				return false, httperror.NewHTTPError(http.StatusBadRequest, "name is required to create a page")
			}
			page := &models.Page{
				ID:      req.EntityID,
				Name:    req.Name,
				Content: &content,
			}
			return true, p.pages.Create(ctx, page)
		}
		return false, p.pages.UpdateContent(ctx, req.EntityID, content)

	default:
		return false, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", req.EntityType)
	}
}

func isNotFound(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound
}

// MessageHandler adapts the processor to the save topic. Malformed messages
// are logged and dropped so the consumer does not wedge on them.
func (p *Processor) MessageHandler() kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.ReceivedMessage) error {
		var req SaveRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			p.logger.WithContext(ctx).WithError(err).Errorf("dropping malformed save message at offset %d", msg.Offset)
			return nil
		}

		_, err := p.Save(ctx, req)
		return err
	}
}
