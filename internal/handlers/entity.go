package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/processor"
	"github.com/Ramsey-B/fern/pkg/properties"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EntityHandler handles content saves and property reads
type EntityHandler struct {
	processor *processor.Processor
	readModel *properties.ReadModel
	logger    ectologger.Logger
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(p *processor.Processor, readModel *properties.ReadModel, logger ectologger.Logger) *EntityHandler {
	return &EntityHandler{
		processor: p,
		readModel: readModel,
		logger:    logger,
	}
}

// Register registers entity routes
func (h *EntityHandler) Register(g *echo.Group) {
	g.POST("/save", h.Save)
	g.GET("/:entity_type/:id/properties", h.GetProperties)
}

// Save runs the pattern pipeline over the posted content and persists the
// result along with the extracted properties.
func (h *EntityHandler) Save(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "EntityHandler.Save")
	defer span.End()

	var req processor.SaveRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	ctx = appctx.SetEntityID(ctx, req.EntityID.String())
	ctx = appctx.SetEntityType(ctx, string(req.EntityType))

	result, err := h.processor.Save(ctx, req)
	if err != nil {
		return err
	}

	if result.Created {
		return CreatedResponse(c, result)
	}
	return SuccessResponse(c, result)
}

// GetProperties returns the active properties of an entity. Internal
// properties are excluded unless include_internal=true is passed.
func (h *EntityHandler) GetProperties(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "EntityHandler.GetProperties")
	defer span.End()

	entityType, err := ParseEntityType(c, "entity_type")
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	includeInternal := c.QueryParam("include_internal") == "true"

	props, err := h.readModel.GetProperties(ctx, entityType, id, includeInternal)
	if err != nil {
		return err
	}

	return SuccessResponse(c, props)
}
