package patterns

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()

	pipeline, err := NewPipeline(getTestLogger(), Config{
		TaskStatuses: []string{"TODO", "DOING", "DONE", "CANCELLED", "SOMEDAY", "WAITING", "NLR"},
	})
	require.NoError(t, err)
	return pipeline
}

func TestPipeline_HandlersRunInPriorityOrder(t *testing.T) {
	pipeline := newTestPipeline(t)

	keys := []string{}
	previous := -1
	for _, handler := range pipeline.Handlers() {
		assert.GreaterOrEqual(t, handler.GetPriority(), previous)
		previous = handler.GetPriority()
		keys = append(keys, handler.GetKey())
	}

	assert.Equal(t, []string{
		TaskStatusHandler,
		PropertyTagHandler,
		PageLinkHandler,
		URLHandler,
		BlockReferenceHandler,
		EmbeddedQueryHandler,
	}, keys)
}

func TestPipeline_Process(t *testing.T) {
	pipeline := newTestPipeline(t)
	entityID := uuid.New()

	t.Run("every tag occurrence is extracted", func(t *testing.T) {
		content := "{a::1} {b::2} {a::3}"
		result, err := pipeline.Process(context.Background(), models.EntityTypeNote, entityID, content)
		require.NoError(t, err)

		require.Len(t, result.Properties, 3)
		assert.Equal(t, content, result.Content)
	})

	t.Run("mixed syntaxes merge in priority order", func(t *testing.T) {
		content := "TODO review [[Project X]] {priority::high} see !{{block-1}}"
		result, err := pipeline.Process(context.Background(), models.EntityTypeNote, entityID, content)
		require.NoError(t, err)

		names := []string{}
		for _, property := range result.Properties {
			names = append(names, property.Name)
		}
		assert.Equal(t, []string{"status", "priority", "links_to_page", "references_block"}, names)

		assert.Contains(t, result.Metadata, TaskStatusHandler)
		assert.Contains(t, result.Metadata, PropertyTagHandler)
		assert.NotContains(t, result.Metadata, EmbeddedQueryHandler)
	})

	t.Run("no matches yields empty result", func(t *testing.T) {
		result, err := pipeline.Process(context.Background(), models.EntityTypeNote, entityID, "plain text")
		require.NoError(t, err)

		assert.Empty(t, result.Properties)
		assert.Empty(t, result.Metadata)
		assert.Equal(t, "plain text", result.Content)
	})

	t.Run("extraction is idempotent", func(t *testing.T) {
		content := "{tag::x} [[Page]] www.example.com"
		first, err := pipeline.Process(context.Background(), models.EntityTypeNote, entityID, content)
		require.NoError(t, err)
		second, err := pipeline.Process(context.Background(), models.EntityTypeNote, entityID, content)
		require.NoError(t, err)

		assert.Equal(t, first.Properties, second.Properties)
		assert.Equal(t, first.Content, second.Content)
	})
}

type explodingHandler struct {
	key      string
	priority int
}

func (h *explodingHandler) GetKey() string             { return h.key }
func (h *explodingHandler) GetPriority() int           { return h.priority }
func (h *explodingHandler) GetPattern() *regexp.Regexp { return regexp.MustCompile(`.`) }
func (h *explodingHandler) GetOptions() models.HandlerOptions {
	return models.HandlerOptions{ExtractProperties: true}
}
func (h *explodingHandler) Extract(ctx context.Context, matches [][]string, input models.PatternInput) (*models.PatternResult, error) {
	return nil, fmt.Errorf("boom")
}

func TestPipeline_HandlerErrorAbortsRun(t *testing.T) {
	pipeline := NewPipelineWithHandlers(getTestLogger(), &explodingHandler{key: "exploding", priority: 1})

	result, err := pipeline.Process(context.Background(), models.EntityTypePage, uuid.New(), "anything")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsPatternError(err))
}

type rewritingHandler struct{}

func (h *rewritingHandler) GetKey() string             { return "rewriting" }
func (h *rewritingHandler) GetPriority() int           { return 1 }
func (h *rewritingHandler) GetPattern() *regexp.Regexp { return regexp.MustCompile(`REDACT`) }
func (h *rewritingHandler) GetOptions() models.HandlerOptions {
	return models.HandlerOptions{ModifyContent: true}
}
func (h *rewritingHandler) Extract(ctx context.Context, matches [][]string, input models.PatternInput) (*models.PatternResult, error) {
	return &models.PatternResult{
		Content: regexp.MustCompile(`REDACT`).ReplaceAllString(input.Content, "____"),
	}, nil
}

func TestPipeline_LaterHandlersSeeRewrittenContent(t *testing.T) {
	tagHandler, err := HandlerDefinitions[PropertyTagHandler].Factory(PropertyTagHandler, nil)
	require.NoError(t, err)

	pipeline := NewPipelineWithHandlers(getTestLogger(), &rewritingHandler{}, tagHandler)

	result, err := pipeline.Process(context.Background(), models.EntityTypeNote, uuid.New(), "REDACT {key::REDACT}")
	require.NoError(t, err)

	require.Len(t, result.Properties, 1)
	assert.Equal(t, "____", result.Properties[0].Value)
	assert.Equal(t, "____ {key::____}", result.Content)
}

func TestPipeline_CountsExtractedProperties(t *testing.T) {
	pipeline := newTestPipeline(t)

	before := testutil.ToFloat64(metrics.PropertiesExtracted.WithLabelValues(PropertyTagHandler))

	_, err := pipeline.Process(context.Background(), models.EntityTypeNote, uuid.New(), "{a::1} {b::2}")
	require.NoError(t, err)

	after := testutil.ToFloat64(metrics.PropertiesExtracted.WithLabelValues(PropertyTagHandler))
	assert.Equal(t, float64(2), after-before)
}
