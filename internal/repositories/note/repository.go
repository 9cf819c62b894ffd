package note

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

const notesTable = "notes"

var noteStruct = database.NewStruct(new(models.Note))

type NoteRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Note, error)
	Create(ctx context.Context, note *models.Note) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string) error
	SetInternal(ctx context.Context, id uuid.UUID, internal bool) error
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new note repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	ctx, span := tracing.StartSpan(ctx, "NoteRepository.GetByID")
	defer span.End()

	sb := noteStruct.SelectFrom(notesTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var note models.Note
	err := r.db.GetContext(ctx, &note, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "note not found")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"note_id": id,
		}).Error("failed to get note")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get note")
	}

	return &note, nil
}

func (r *Repository) Create(ctx context.Context, note *models.Note) error {
	ctx, span := tracing.StartSpan(ctx, "NoteRepository.Create")
	defer span.End()

	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	now := time.Now().UTC()
	note.CreatedAt = now
	note.UpdatedAt = now

	ib := noteStruct.InsertInto(notesTable, note)
	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"note_id": note.ID,
			"page_id": note.PageID,
		}).Error("failed to create note")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create note")
	}

	return tx.Commit(ctx)
}

func (r *Repository) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	ctx, span := tracing.StartSpan(ctx, "NoteRepository.UpdateContent")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(notesTable)
	ub.Set(
		ub.Assign("content", content),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"note_id": id,
		}).Error("failed to update note content")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update note")
	}

	return tx.Commit(ctx)
}

// SetInternal flips the denormalized internal column. Fired by the trigger
// dispatcher when an "internal" property is written.
func (r *Repository) SetInternal(ctx context.Context, id uuid.UUID, internal bool) error {
	ctx, span := tracing.StartSpan(ctx, "NoteRepository.SetInternal")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(notesTable)
	ub.Set(
		ub.Assign("internal", internal),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"note_id":  id,
			"internal": internal,
		}).Error("failed to set note internal flag")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update note")
	}

	return nil
}
