package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

const EmbeddedQueryPriority = 40

// embedded queries are extracted as opaque text; this engine never executes
// them.
var embeddedQueryPattern = regexp.MustCompile(`SQL\{([^{}]*)\}`)

type EmbeddedQueryArguments struct {
	Priority int `json:"priority" validate:"omitempty"`
}

func NewEmbeddedQueryHandler(key string, args any) (models.PatternHandler, error) {
	parsedArgs, err := utils.ParseArguments[EmbeddedQueryArguments](args)
	if err != nil {
		return nil, errors.WrapPatternError(err).AddHandler(key)
	}

	priority := parsedArgs.Priority
	if priority == 0 {
		priority = EmbeddedQueryPriority
	}

	return &EmbeddedQueryHandler{
		key:      key,
		priority: priority,
	}, nil
}

type EmbeddedQueryHandler struct {
	key      string
	priority int
}

func (h *EmbeddedQueryHandler) GetKey() string {
	return h.key
}

func (h *EmbeddedQueryHandler) GetPriority() int {
	return h.priority
}

func (h *EmbeddedQueryHandler) GetPattern() *regexp.Regexp {
	return embeddedQueryPattern
}

func (h *EmbeddedQueryHandler) GetOptions() models.HandlerOptions {
	return models.HandlerOptions{ExtractProperties: true, ModifyContent: false}
}

func (h *EmbeddedQueryHandler) Extract(ctx context.Context, matches [][]string, input models.PatternInput) (*models.PatternResult, error) {
	result := &models.PatternResult{
		Content:  input.Content,
		Metadata: map[string]any{},
	}

	for _, match := range matches {
		expr := strings.TrimSpace(match[1])
		if expr == "" {
			continue
		}

		result.Properties = append(result.Properties, models.ExtractedProperty{
			Name:     "sql_query",
			Value:    expr,
			Weight:   models.DefaultPropertyWeight,
			RawMatch: match[0],
			Kind:     models.PropertyKindSQLQuery,
		})
	}

	result.Metadata["count"] = len(result.Properties)
	return result, nil
}
