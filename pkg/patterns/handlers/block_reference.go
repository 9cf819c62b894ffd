package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

const BlockReferencePriority = 30

var blockReferencePattern = regexp.MustCompile(`!\{\{([^{}]+)\}\}`)

type BlockReferenceArguments struct {
	Priority int `json:"priority" validate:"omitempty"`
}

func NewBlockReferenceHandler(key string, args any) (models.PatternHandler, error) {
	parsedArgs, err := utils.ParseArguments[BlockReferenceArguments](args)
	if err != nil {
		return nil, errors.WrapPatternError(err).AddHandler(key)
	}

	priority := parsedArgs.Priority
	if priority == 0 {
		priority = BlockReferencePriority
	}

	return &BlockReferenceHandler{
		key:      key,
		priority: priority,
	}, nil
}

type BlockReferenceHandler struct {
	key      string
	priority int
}

func (h *BlockReferenceHandler) GetKey() string {
	return h.key
}

func (h *BlockReferenceHandler) GetPriority() int {
	return h.priority
}

func (h *BlockReferenceHandler) GetPattern() *regexp.Regexp {
	return blockReferencePattern
}

func (h *BlockReferenceHandler) GetOptions() models.HandlerOptions {
	return models.HandlerOptions{ExtractProperties: true, ModifyContent: false}
}

func (h *BlockReferenceHandler) Extract(ctx context.Context, matches [][]string, input models.PatternInput) (*models.PatternResult, error) {
	result := &models.PatternResult{
		Content:  input.Content,
		Metadata: map[string]any{},
	}

	for _, match := range matches {
		blockID := strings.TrimSpace(match[1])
		if blockID == "" {
			continue
		}

		result.Properties = append(result.Properties, models.ExtractedProperty{
			Name:     "references_block",
			Value:    blockID,
			Weight:   models.DefaultPropertyWeight,
			RawMatch: match[0],
			Kind:     models.PropertyKindBlockReference,
		})
	}

	result.Metadata["count"] = len(result.Properties)
	return result, nil
}
