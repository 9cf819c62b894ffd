package patterns

import (
	"github.com/Ramsey-B/fern/pkg/patterns/handlers"
	"github.com/Ramsey-B/fern/pkg/patterns/registry"
)

const (
	// Built-in handler keys, listed in run order.
	TaskStatusHandler     = "task_status"
	PropertyTagHandler    = "property_tag"
	PageLinkHandler       = "page_link"
	URLHandler            = "external_url"
	BlockReferenceHandler = "block_reference"
	EmbeddedQueryHandler  = "embedded_query"
)

// DefaultPriority applies to registered handlers that do not declare one.
const DefaultPriority = 50

type HandlerDefinition struct {
	Key         string                  `json:"key" validate:"required"`
	Name        string                  `json:"name" validate:"required"`
	Description string                  `json:"description" validate:"required"`
	Priority    int                     `json:"priority" validate:"required"`
	Factory     registry.HandlerFactory `json:"-"`
}

var HandlerDefinitions = map[string]HandlerDefinition{
	TaskStatusHandler: {
		Key:         TaskStatusHandler,
		Name:        "Task Status",
		Description: "Recognizes status keywords (TODO, DONE, ...) anchored at line start",
		Priority:    handlers.TaskStatusPriority,
		Factory:     handlers.NewTaskStatusHandler,
	},
	PropertyTagHandler: {
		Key:         PropertyTagHandler,
		Name:        "Property Tag",
		Description: "Extracts {name::value} tags; the colon-run length becomes the weight",
		Priority:    handlers.PropertyTagPriority,
		Factory:     handlers.NewPropertyTagHandler,
	},
	PageLinkHandler: {
		Key:         PageLinkHandler,
		Name:        "Page Link",
		Description: "Extracts [[page]] links, de-duplicated per content body",
		Priority:    handlers.PageLinkPriority,
		Factory:     handlers.NewPageLinkHandler,
	},
	URLHandler: {
		Key:         URLHandler,
		Name:        "External URL",
		Description: "Extracts bare http(s):// and www. URLs",
		Priority:    handlers.URLPriority,
		Factory:     handlers.NewURLHandler,
	},
	BlockReferenceHandler: {
		Key:         BlockReferenceHandler,
		Name:        "Block Reference",
		Description: "Extracts !{{id}} transclusion references",
		Priority:    handlers.BlockReferencePriority,
		Factory:     handlers.NewBlockReferenceHandler,
	},
	EmbeddedQueryHandler: {
		Key:         EmbeddedQueryHandler,
		Name:        "Embedded Query",
		Description: "Extracts SQL{...} expressions as data, never executes them",
		Priority:    handlers.EmbeddedQueryPriority,
		Factory:     handlers.NewEmbeddedQueryHandler,
	},
}

func init() {
	for key, definition := range HandlerDefinitions {
		registry.Handlers[key] = definition.Factory
	}
}
