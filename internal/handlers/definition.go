package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/propertydefinition"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/properties"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// DefinitionHandler handles property definition management
type DefinitionHandler struct {
	definitions propertydefinition.DefinitionRepository
	reconciler  *properties.Reconciler
	logger      ectologger.Logger
}

// NewDefinitionHandler creates a new definition handler
func NewDefinitionHandler(definitions propertydefinition.DefinitionRepository, reconciler *properties.Reconciler, logger ectologger.Logger) *DefinitionHandler {
	return &DefinitionHandler{
		definitions: definitions,
		reconciler:  reconciler,
		logger:      logger,
	}
}

// UpsertDefinitionRequest represents the upsert definition request body
type UpsertDefinitionRequest struct {
	Name        string  `json:"name" validate:"required"`
	Internal    bool    `json:"internal"`
	AutoApply   bool    `json:"auto_apply"`
	Description *string `json:"description,omitempty"`
}

// Register registers definition routes
func (h *DefinitionHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.PUT("", h.Upsert)
	g.POST("/:name/apply", h.Apply)
}

// List returns all property definitions
func (h *DefinitionHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DefinitionHandler.List")
	defer span.End()

	definitions, err := h.definitions.List(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, definitions)
}

// Upsert creates or updates a property definition by name
func (h *DefinitionHandler) Upsert(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DefinitionHandler.Upsert")
	defer span.End()

	var req UpsertDefinitionRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	req, err := utils.Validate(req)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	definition := &models.PropertyDefinition{
		Name:        req.Name,
		Internal:    req.Internal,
		AutoApply:   req.AutoApply,
		Description: req.Description,
	}

	if err := h.definitions.Upsert(ctx, definition); err != nil {
		return err
	}

	return SuccessResponse(c, definition)
}

// Apply retroactively reclassifies existing properties to match the named
// definition. Only definitions marked auto_apply touch existing rows.
func (h *DefinitionHandler) Apply(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DefinitionHandler.Apply")
	defer span.End()

	name := c.Param("name")
	if name == "" {
		return BadRequest("missing definition name")
	}

	affected, err := h.reconciler.ApplyDefinition(ctx, name)
	if err != nil {
		return err
	}

	return SuccessResponse(c, map[string]any{
		"name":     name,
		"affected": affected,
	})
}
