package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/webhook"
	"github.com/Ramsey-B/fern/internal/repositories/webhookevent"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
	"github.com/Ramsey-B/fern/pkg/webhooks"
)

const defaultEventLogLimit = 50

// WebhookHandler handles webhook registration and verification
type WebhookHandler struct {
	webhooks webhook.WebhookRepository
	events   webhookevent.EventRepository
	notifier *webhooks.Notifier
	logger   ectologger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookRepo webhook.WebhookRepository, eventRepo webhookevent.EventRepository, notifier *webhooks.Notifier, logger ectologger.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhookRepo,
		events:   eventRepo,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateWebhookRequest represents the create webhook request body
type CreateWebhookRequest struct {
	URL           string   `json:"url" validate:"required,url"`
	EntityType    string   `json:"entity_type" validate:"required"`
	PropertyNames []string `json:"property_names" validate:"required,min=1"`
	EventTypes    []string `json:"event_types" validate:"required,min=1"`
	Secret        string   `json:"secret,omitempty"`
}

// CreateWebhookResponse includes the secret exactly once, at creation time.
type CreateWebhookResponse struct {
	Webhook *models.Webhook `json:"webhook"`
	Secret  string          `json:"secret"`
}

// Register registers webhook routes
func (h *WebhookHandler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("/:id", h.GetByID)
	g.POST("/:id/verify", h.Verify)
	g.POST("/:id/test", h.SendTest)
	g.GET("/:id/events", h.ListEvents)
}

// Create registers a new webhook. A secret is generated when the caller does
// not supply one; it is returned only in this response.
func (h *WebhookHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WebhookHandler.Create")
	defer span.End()

	var req CreateWebhookRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	req, err := utils.Validate(req)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	entityType := models.EntityType(req.EntityType)
	if !entityType.IsValid() {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", req.EntityType)
	}

	secret := req.Secret
	if secret == "" {
		secret, err = generateSecret()
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to generate secret")
		}
	}

	hook := &models.Webhook{
		URL:           req.URL,
		EntityType:    entityType,
		PropertyNames: req.PropertyNames,
		EventTypes:    req.EventTypes,
		Secret:        secret,
		Active:        true,
		Verified:      false,
	}

	if err := h.webhooks.Create(ctx, hook); err != nil {
		return err
	}

	return CreatedResponse(c, CreateWebhookResponse{Webhook: hook, Secret: secret})
}

// GetByID returns a webhook by ID
func (h *WebhookHandler) GetByID(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WebhookHandler.GetByID")
	defer span.End()

	id, err := parseWebhookID(c)
	if err != nil {
		return err
	}

	hook, err := h.webhooks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, hook)
}

// Verify sends a verification event to the webhook's endpoint and flips the
// verified flag to match the outcome.
func (h *WebhookHandler) Verify(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WebhookHandler.Verify")
	defer span.End()

	id, err := parseWebhookID(c)
	if err != nil {
		return err
	}

	hook, err := h.webhooks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	result := h.notifier.Verify(ctx, hook)

	return SuccessResponse(c, map[string]any{
		"verified":    result.Success,
		"status_code": result.StatusCode,
	})
}

// SendTest delivers a test event to the webhook's endpoint without touching
// the verified flag.
func (h *WebhookHandler) SendTest(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WebhookHandler.SendTest")
	defer span.End()

	id, err := parseWebhookID(c)
	if err != nil {
		return err
	}

	hook, err := h.webhooks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	payload := webhooks.Payload{
		Event:     models.EventTypeTest,
		WebhookID: hook.ID,
		Timestamp: time.Now().Unix(),
		Data: webhooks.PayloadData{
			EntityType: hook.EntityType,
		},
	}
	result := h.notifier.DispatchEvent(ctx, hook, models.EventTypeTest, payload)

	return SuccessResponse(c, map[string]any{
		"success":     result.Success,
		"status_code": result.StatusCode,
	})
}

// ListEvents returns the most recent delivery log entries for a webhook
func (h *WebhookHandler) ListEvents(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WebhookHandler.ListEvents")
	defer span.End()

	id, err := parseWebhookID(c)
	if err != nil {
		return err
	}

	if _, err := h.webhooks.GetByID(ctx, id); err != nil {
		return err
	}

	limit := defaultEventLogLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return BadRequest("limit must be a positive integer")
		}
		limit = parsed
	}

	events, err := h.events.ListByWebhook(ctx, id, limit)
	if err != nil {
		return err
	}

	return SuccessResponse(c, events)
}

func parseWebhookID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "invalid webhook id")
	}
	return id, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
