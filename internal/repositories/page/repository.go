package page

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

const pagesTable = "pages"

var pageStruct = database.NewStruct(new(models.Page))

type PageRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Page, error)
	GetByName(ctx context.Context, name string) (*models.Page, error)
	Create(ctx context.Context, page *models.Page) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string) error
	SetAlias(ctx context.Context, id uuid.UUID, alias *string) error
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new page repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	ctx, span := tracing.StartSpan(ctx, "PageRepository.GetByID")
	defer span.End()

	sb := pageStruct.SelectFrom(pagesTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var page models.Page
	err := r.db.GetContext(ctx, &page, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "page not found")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"page_id": id,
		}).Error("failed to get page")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get page")
	}

	return &page, nil
}

// GetByName returns the page with the given name, or nil when it does not
// exist. Alias revalidation depends on the nil result.
func (r *Repository) GetByName(ctx context.Context, name string) (*models.Page, error) {
	ctx, span := tracing.StartSpan(ctx, "PageRepository.GetByName")
	defer span.End()

	sb := pageStruct.SelectFrom(pagesTable)
	sb.Where(sb.Equal("name", name))
	sb.Limit(1)

	query, args := sb.Build()

	var page models.Page
	err := r.db.GetContext(ctx, &page, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"name": name,
		}).Error("failed to get page by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get page")
	}

	return &page, nil
}

func (r *Repository) Create(ctx context.Context, page *models.Page) error {
	ctx, span := tracing.StartSpan(ctx, "PageRepository.Create")
	defer span.End()

	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	now := time.Now().UTC()
	page.CreatedAt = now
	page.UpdatedAt = now

	ib := pageStruct.InsertInto(pagesTable, page)
	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"page_id": page.ID,
			"name":    page.Name,
		}).Error("failed to create page")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create page")
	}

	return tx.Commit(ctx)
}

func (r *Repository) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	ctx, span := tracing.StartSpan(ctx, "PageRepository.UpdateContent")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(pagesTable)
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
			"page_id": id,
		}).Error("failed to update page content")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update page")
	}

	return tx.Commit(ctx)
}

// SetAlias updates the denormalized alias column. A nil alias clears it,
// which is what happens when the alias target page no longer exists.
func (r *Repository) SetAlias(ctx context.Context, id uuid.UUID, alias *string) error {
	ctx, span := tracing.StartSpan(ctx, "PageRepository.SetAlias")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(pagesTable)
	ub.Set(
		ub.Assign("alias", alias),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"page_id": id,
		}).Error("failed to set page alias")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update page")
	}

	return nil
}
