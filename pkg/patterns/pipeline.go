package patterns

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/patterns/handlers"
	"github.com/Ramsey-B/fern/pkg/patterns/registry"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Config is built once at startup and injected; there is no process-wide
// mutable registry of live handlers.
type Config struct {
	// TaskStatuses is the status vocabulary. Empty falls back to TODO only.
	TaskStatuses []string
	// TaskWeight is the weight emitted for status properties.
	TaskWeight int
}

// Pipeline runs every handler over the working content in priority order and
// merges the results into one envelope.
type Pipeline struct {
	logger   ectologger.Logger
	handlers []models.PatternHandler
}

// NewPipeline builds the built-in handler set from the definitions table.
func NewPipeline(logger ectologger.Logger, cfg Config) (*Pipeline, error) {
	handlerArgs := map[string]any{
		TaskStatusHandler: handlers.TaskStatusArguments{
			Statuses: cfg.TaskStatuses,
			Weight:   cfg.TaskWeight,
		},
	}

	hs := make([]models.PatternHandler, 0, len(HandlerDefinitions))
	for key := range HandlerDefinitions {
		handler, err := registry.GetHandler(key, handlerArgs[key])
		if err != nil {
			logger.WithError(err).WithField("handler", key).Error("Failed to build pattern handler")
			return nil, err
		}
		hs = append(hs, handler)
	}

	return NewPipelineWithHandlers(logger, hs...), nil
}

// NewPipelineWithHandlers builds a pipeline over an explicit handler set.
func NewPipelineWithHandlers(logger ectologger.Logger, hs ...models.PatternHandler) *Pipeline {
	sorted := make([]models.PatternHandler, len(hs))
	copy(sorted, hs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].GetPriority() != sorted[j].GetPriority() {
			return sorted[i].GetPriority() < sorted[j].GetPriority()
		}
		return sorted[i].GetKey() < sorted[j].GetKey()
	})

	return &Pipeline{
		logger:   logger,
		handlers: sorted,
	}
}

// Handlers returns the handlers in run order.
func (p *Pipeline) Handlers() []models.PatternHandler {
	return p.handlers
}

// Process scans the content with every handler. A handler that matches
// nothing contributes nothing; a handler that fails aborts the whole run so
// the caller can roll back.
func (p *Pipeline) Process(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, content string) (*models.PipelineResult, error) {
	ctx, span := tracing.StartSpan(ctx, "Pipeline.Process")
	defer span.End()

	result := &models.PipelineResult{
		Content:  content,
		Metadata: map[string]any{},
	}

	for _, handler := range p.handlers {
		matches := handler.GetPattern().FindAllStringSubmatch(result.Content, -1)
		if len(matches) == 0 {
			continue
		}

		input := models.PatternInput{
			EntityType: entityType,
			EntityID:   entityID,
			Content:    result.Content,
		}

		handlerResult, err := handler.Extract(ctx, matches, input)
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"handler":     handler.GetKey(),
				"entity_type": entityType,
				"entity_id":   entityID,
			}).Error("Pattern handler failed")
			return nil, errors.WrapPatternError(err).AddHandler(handler.GetKey()).AddEntity(string(entityType), entityID.String())
		}
		if handlerResult == nil {
			continue
		}

		if handler.GetOptions().ExtractProperties {
			result.Properties = append(result.Properties, handlerResult.Properties...)
			metrics.PropertiesExtracted.WithLabelValues(handler.GetKey()).Add(float64(len(handlerResult.Properties)))
		}
		if handler.GetOptions().ModifyContent {
			result.Content = handlerResult.Content
		}
		if len(handlerResult.Metadata) > 0 {
			result.Metadata[handler.GetKey()] = handlerResult.Metadata
		}
	}

	return result, nil
}
