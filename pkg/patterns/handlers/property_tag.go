package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// PropertyTagPriority runs after task statuses so a status keyword inside a
// tag value has already been consumed.
const PropertyTagPriority = 10

// propertyTagPattern matches {name::value}. The colon run must be at least
// two long; its length becomes the property weight.
var propertyTagPattern = regexp.MustCompile(`\{([^{}:]+)(:{2,})([^{}]*)\}`)

type PropertyTagArguments struct {
	Priority int `json:"priority" validate:"omitempty"`
}

func NewPropertyTagHandler(key string, args any) (models.PatternHandler, error) {
	parsedArgs, err := utils.ParseArguments[PropertyTagArguments](args)
	if err != nil {
		return nil, errors.WrapPatternError(err).AddHandler(key)
	}

	priority := parsedArgs.Priority
	if priority == 0 {
		priority = PropertyTagPriority
	}

	return &PropertyTagHandler{
		key:      key,
		priority: priority,
	}, nil
}

type PropertyTagHandler struct {
	key      string
	priority int
}

func (h *PropertyTagHandler) GetKey() string {
	return h.key
}

func (h *PropertyTagHandler) GetPriority() int {
	return h.priority
}

func (h *PropertyTagHandler) GetPattern() *regexp.Regexp {
	return propertyTagPattern
}

func (h *PropertyTagHandler) GetOptions() models.HandlerOptions {
	return models.HandlerOptions{ExtractProperties: true, ModifyContent: false}
}

func (h *PropertyTagHandler) Extract(ctx context.Context, matches [][]string, input models.PatternInput) (*models.PatternResult, error) {
	result := &models.PatternResult{
		Content:  input.Content,
		Metadata: map[string]any{},
	}

	for _, match := range matches {
		name := strings.TrimSpace(match[1])
		if name == "" {
			continue // a tag without a name is noise, not an error
		}

		result.Properties = append(result.Properties, models.ExtractedProperty{
			Name:     name,
			Value:    strings.TrimSpace(match[3]),
			Weight:   len(match[2]),
			RawMatch: match[0],
			Kind:     models.PropertyKindProperty,
		})
	}

	result.Metadata["count"] = len(result.Properties)
	return result, nil
}
