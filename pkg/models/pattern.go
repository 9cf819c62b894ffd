package models

import (
	"context"
	"regexp"

	"github.com/google/uuid"
)

// HandlerOptions declares what a pattern handler is allowed to do with the
// content it matched.
type HandlerOptions struct {
	ExtractProperties bool `json:"extract_properties"`
	ModifyContent     bool `json:"modify_content"`
}

// PatternInput is the working state handed to a handler: the content as
// rewritten by earlier handlers plus the entity being saved.
type PatternInput struct {
	EntityType EntityType
	EntityID   uuid.UUID
	Content    string
}

// PatternResult is what one handler returns for all of its matches at once.
type PatternResult struct {
	Properties []ExtractedProperty
	Content    string
	Metadata   map[string]any
}

// PatternHandler recognizes one micro-syntax. The pipeline runs the pattern
// itself and hands the handler every match in one call.
type PatternHandler interface {
	GetKey() string
	GetPriority() int
	GetPattern() *regexp.Regexp
	GetOptions() HandlerOptions
	Extract(ctx context.Context, matches [][]string, input PatternInput) (*PatternResult, error)
}

// PipelineResult is the merged envelope of a full pipeline run.
type PipelineResult struct {
	Properties []ExtractedProperty `json:"properties"`
	Content    string              `json:"content"`
	Metadata   map[string]any      `json:"metadata"`
}
