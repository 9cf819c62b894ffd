package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

const PageLinkPriority = 20

var pageLinkPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

type PageLinkArguments struct {
	Priority int `json:"priority" validate:"omitempty"`
}

func NewPageLinkHandler(key string, args any) (models.PatternHandler, error) {
	parsedArgs, err := utils.ParseArguments[PageLinkArguments](args)
	if err != nil {
		return nil, errors.WrapPatternError(err).AddHandler(key)
	}

	priority := parsedArgs.Priority
	if priority == 0 {
		priority = PageLinkPriority
	}

	return &PageLinkHandler{
		key:      key,
		priority: priority,
	}, nil
}

type PageLinkHandler struct {
	key      string
	priority int
}

func (h *PageLinkHandler) GetKey() string {
	return h.key
}

func (h *PageLinkHandler) GetPriority() int {
	return h.priority
}

func (h *PageLinkHandler) GetPattern() *regexp.Regexp {
	return pageLinkPattern
}

func (h *PageLinkHandler) GetOptions() models.HandlerOptions {
	return models.HandlerOptions{ExtractProperties: true, ModifyContent: false}
}

func (h *PageLinkHandler) Extract(ctx context.Context, matches [][]string, input models.PatternInput) (*models.PatternResult, error) {
	result := &models.PatternResult{
		Content:  input.Content,
		Metadata: map[string]any{},
	}

	// identical targets within one body collapse to one link
	seen := map[string]bool{}
	targets := []string{}
	for _, match := range matches {
		target := strings.TrimSpace(match[1])
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)

		result.Properties = append(result.Properties, models.ExtractedProperty{
			Name:     "links_to_page",
			Value:    target,
			Weight:   models.DefaultPropertyWeight,
			RawMatch: match[0],
			Kind:     models.PropertyKindPageLink,
		})
	}

	result.Metadata["targets"] = targets
	return result, nil
}
