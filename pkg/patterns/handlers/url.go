package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

const URLPriority = 25

var urlPattern = regexp.MustCompile(`(?:https?://|www\.)[^\s<>"]+`)

type URLArguments struct {
	Priority int `json:"priority" validate:"omitempty"`
}

func NewURLHandler(key string, args any) (models.PatternHandler, error) {
	parsedArgs, err := utils.ParseArguments[URLArguments](args)
	if err != nil {
		return nil, errors.WrapPatternError(err).AddHandler(key)
	}

	priority := parsedArgs.Priority
	if priority == 0 {
		priority = URLPriority
	}

	return &URLHandler{
		key:      key,
		priority: priority,
	}, nil
}

type URLHandler struct {
	key      string
	priority int
}

func (h *URLHandler) GetKey() string {
	return h.key
}

func (h *URLHandler) GetPriority() int {
	return h.priority
}

func (h *URLHandler) GetPattern() *regexp.Regexp {
	return urlPattern
}

func (h *URLHandler) GetOptions() models.HandlerOptions {
	return models.HandlerOptions{ExtractProperties: true, ModifyContent: false}
}

func (h *URLHandler) Extract(ctx context.Context, matches [][]string, input models.PatternInput) (*models.PatternResult, error) {
	result := &models.PatternResult{
		Content:  input.Content,
		Metadata: map[string]any{},
	}

	for _, match := range matches {
		url := match[0]
		if strings.HasPrefix(url, "www.") {
			url = "https://" + url
		}

		result.Properties = append(result.Properties, models.ExtractedProperty{
			Name:     "external_url",
			Value:    url,
			Weight:   models.DefaultPropertyWeight,
			RawMatch: match[0],
			Kind:     models.PropertyKindURL,
		})
	}

	result.Metadata["count"] = len(result.Properties)
	return result, nil
}
