// Package webhooks delivers signed event notifications to registered
// endpoints and records every attempt in the delivery log.
package webhooks

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// DefaultDeliveryTimeout bounds a single delivery attempt end to end.
	DefaultDeliveryTimeout = 10 * time.Second

	// maxLoggedBody caps the response body stored in the delivery log.
	maxLoggedBody = 4096
)

// Payload is the JSON body sent to webhook endpoints.
type Payload struct {
	Event     string      `json:"event"`
	WebhookID int64       `json:"webhook_id"`
	Timestamp int64       `json:"timestamp"`
	Data      PayloadData `json:"data"`
}

// PayloadData carries the entity and property the event is about.
// PropertyName and Value are only set for property_change events.
type PayloadData struct {
	EntityType   models.EntityType `json:"entity_type"`
	EntityID     string            `json:"entity_id"`
	PropertyName string            `json:"property_name,omitempty"`
	Value        string            `json:"value,omitempty"`
}

// NewPropertyChangePayload builds the payload for a property_change event.
func NewPropertyChangePayload(webhookID int64, entityType models.EntityType, entityID uuid.UUID, name, value string) Payload {
	return Payload{
		Event:     models.EventTypePropertyChange,
		WebhookID: webhookID,
		Timestamp: time.Now().Unix(),
		Data: PayloadData{
			EntityType:   entityType,
			EntityID:     entityID.String(),
			PropertyName: name,
			Value:        value,
		},
	}
}

// DeliveryResult is the outcome of a single delivery attempt. StatusCode is
// zero when the request never reached the endpoint.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
}

// WebhookStore is the slice of the webhook repository the notifier needs.
type WebhookStore interface {
	UpdateLastTriggered(ctx context.Context, id int64, triggeredAt time.Time) error
	SetVerified(ctx context.Context, id int64, verified bool) error
}

// DeliveryLog records delivery attempts.
type DeliveryLog interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
}

// Limiter bounds delivery rate per webhook. May be nil to disable limiting.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redis.RateLimitResult, error)
}

// NotifierConfig tunes delivery behavior.
type NotifierConfig struct {
	Timeout    time.Duration
	RateLimit  int64
	RateWindow time.Duration
}

// DefaultNotifierConfig returns the default notifier configuration.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		Timeout:    DefaultDeliveryTimeout,
		RateLimit:  60,
		RateWindow: time.Minute,
	}
}

// Notifier sends signed payloads to webhook endpoints.
type Notifier struct {
	client   *httpclient.Client
	webhooks WebhookStore
	events   DeliveryLog
	limiter  Limiter
	config   NotifierConfig
	logger   ectologger.Logger
	now      func() time.Time
}

// NewNotifier creates a Notifier. limiter may be nil.
func NewNotifier(client *httpclient.Client, webhooks WebhookStore, events DeliveryLog, limiter Limiter, config NotifierConfig, logger ectologger.Logger) *Notifier {
	if config.Timeout <= 0 {
		config.Timeout = DefaultDeliveryTimeout
	}
	return &Notifier{
		client:   client,
		webhooks: webhooks,
		events:   events,
		limiter:  limiter,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// DispatchEvent delivers one event to one webhook. Every attempt, successful
// or not, is appended to the delivery log. Transport failures are reported
// with a zero status code. A verification event flips the webhook's verified
// flag to match the outcome; last_triggered is only advanced on successful
// non-verification deliveries.
func (n *Notifier) DispatchEvent(ctx context.Context, webhook *models.Webhook, eventType string, payload Payload) *DeliveryResult {
	ctx, span := tracing.StartSpan(ctx, "webhooks.DispatchEvent")
	defer span.End()

	log := n.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"webhook_id": webhook.ID,
		"event_type": eventType,
		"url":        webhook.URL,
	})

	body, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Errorf("failed to marshal webhook payload")
		return &DeliveryResult{Success: false}
	}

	if n.limiter != nil && n.config.RateLimit > 0 {
		key := strconv.FormatInt(webhook.ID, 10)
		allowed, err := n.limiter.Allow(ctx, key, n.config.RateLimit, n.config.RateWindow)
		if err != nil {
			log.WithError(err).Warnf("rate limiter unavailable, delivering anyway")
		} else if !allowed.Allowed {
			log.Warnf("webhook delivery rate limited, retry in %s", allowed.RetryIn)
			result := &DeliveryResult{Success: false, ResponseBody: "rate limit exceeded"}
			n.record(ctx, webhook, eventType, string(body), result)
			return result
		}
	}

	start := n.now()
	result := n.send(ctx, webhook, eventType, body)
	metrics.WebhookDeliveryDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

	status := "failure"
	if result.Success {
		status = "success"
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues(eventType, status).Inc()

	n.record(ctx, webhook, eventType, string(body), result)

	if eventType == models.EventTypeVerification {
		if err := n.webhooks.SetVerified(ctx, webhook.ID, result.Success); err != nil {
			log.WithError(err).Errorf("failed to update webhook verified flag")
		}
	} else if result.Success {
		if err := n.webhooks.UpdateLastTriggered(ctx, webhook.ID, n.now().UTC()); err != nil {
			log.WithError(err).Errorf("failed to update webhook last_triggered")
		}
	}

	if result.Success {
		log.Debugf("webhook delivered with status %d", result.StatusCode)
	} else {
		log.Warnf("webhook delivery failed with status %d: %s", result.StatusCode, result.ResponseBody)
	}

	return result
}

// Verify sends a verification event to the webhook and flips its verified
// flag according to the outcome.
func (n *Notifier) Verify(ctx context.Context, webhook *models.Webhook) *DeliveryResult {
	payload := Payload{
		Event:     models.EventTypeVerification,
		WebhookID: webhook.ID,
		Timestamp: n.now().Unix(),
		Data: PayloadData{
			EntityType: webhook.EntityType,
		},
	}
	return n.DispatchEvent(ctx, webhook, models.EventTypeVerification, payload)
}

func (n *Notifier) send(ctx context.Context, webhook *models.Webhook, eventType string, body []byte) *DeliveryResult {
	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	headers := map[string]string{
		"Content-Type":  "application/json",
		SignatureHeader: Sign(body, webhook.Secret),
		EventTypeHeader: eventType,
	}

	resp, err := n.client.Post(ctx, webhook.URL, body, headers)
	if err != nil {
		return &DeliveryResult{Success: false, StatusCode: 0, ResponseBody: err.Error()}
	}

	return &DeliveryResult{
		Success:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:   resp.StatusCode,
		ResponseBody: string(resp.Body),
	}
}

func (n *Notifier) record(ctx context.Context, webhook *models.Webhook, eventType, payload string, result *DeliveryResult) {
	responseBody := result.ResponseBody
	if len(responseBody) > maxLoggedBody {
		responseBody = responseBody[:maxLoggedBody]
	}

	event := &models.WebhookEvent{
		WebhookID:    webhook.ID,
		EventType:    eventType,
		Payload:      payload,
		ResponseCode: result.StatusCode,
		ResponseBody: responseBody,
		Success:      result.Success,
	}
	if err := n.events.Create(ctx, event); err != nil {
		n.logger.WithContext(ctx).WithError(err).Errorf("failed to record webhook delivery for webhook %d", webhook.ID)
	}
}
