package properties

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
)

// DefinitionLookup is the slice of the definition repository the classifier
// needs.
type DefinitionLookup interface {
	GetByName(ctx context.Context, name string) (*models.PropertyDefinition, error)
}

// defaultInternalNames are classified internal when no definition says
// otherwise.
var defaultInternalNames = map[string]bool{
	"internal":            true,
	"created_at":          true,
	"updated_at":          true,
	"order_index":         true,
	"type":                true,
	"alias":               true,
	"welcome_notes_added": true,
}

// Classifier resolves the internal flag for property names. It caches
// definition lookups for its own lifetime, which is one reconciliation run.
type Classifier struct {
	definitions DefinitionLookup
	logger      ectologger.Logger
	cache       map[string]*models.PropertyDefinition
}

func NewClassifier(definitions DefinitionLookup, logger ectologger.Logger) *Classifier {
	return &Classifier{
		definitions: definitions,
		logger:      logger,
		cache:       make(map[string]*models.PropertyDefinition),
	}
}

// Classify resolves internal classification by precedence: the caller's
// explicit flag, then the definition store, then the name heuristic.
func (c *Classifier) Classify(ctx context.Context, name string, explicit *bool) (bool, error) {
	if explicit != nil {
		return *explicit, nil
	}

	definition, err := c.lookup(ctx, name)
	if err != nil {
		return false, err
	}
	if definition != nil {
		return definition.Internal, nil
	}

	if strings.HasPrefix(name, "_") {
		return true, nil
	}

	return defaultInternalNames[name], nil
}

func (c *Classifier) lookup(ctx context.Context, name string) (*models.PropertyDefinition, error) {
	if definition, ok := c.cache[name]; ok {
		return definition, nil
	}

	definition, err := c.definitions.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	// nil results are cached too: a missing definition stays missing for
	// the rest of the run
	c.cache[name] = definition
	return definition, nil
}
