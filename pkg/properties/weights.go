package properties

import (
	"github.com/Ramsey-B/fern/pkg/models"
)

// WeightConfig maps weights to update policies. Loaded once at startup and
// read-only afterward.
type WeightConfig struct {
	rules map[int]models.WeightRule
}

// DefaultWeightConfig mirrors the shipped weight table: odd low weights keep
// history, the default weight replaces, high weights are hidden from views.
func DefaultWeightConfig() *WeightConfig {
	return NewWeightConfig(
		models.WeightRule{Weight: 1, UpdateBehavior: models.UpdateBehaviorAppend, VisibleInViewMode: true},
		models.WeightRule{Weight: 2, UpdateBehavior: models.UpdateBehaviorReplace, VisibleInViewMode: true},
		models.WeightRule{Weight: 3, UpdateBehavior: models.UpdateBehaviorReplace, VisibleInViewMode: true},
		models.WeightRule{Weight: 4, UpdateBehavior: models.UpdateBehaviorAppend, VisibleInViewMode: false},
		models.WeightRule{Weight: 5, UpdateBehavior: models.UpdateBehaviorReplace, VisibleInViewMode: false},
	)
}

func NewWeightConfig(rules ...models.WeightRule) *WeightConfig {
	config := &WeightConfig{
		rules: make(map[int]models.WeightRule, len(rules)),
	}
	for _, rule := range rules {
		config.rules[rule.Weight] = rule
	}
	return config
}

// Rule returns the rule for a weight. Unknown weights fall back to replace
// and visible.
func (c *WeightConfig) Rule(weight int) models.WeightRule {
	if rule, ok := c.rules[weight]; ok {
		return rule
	}
	return models.WeightRule{
		Weight:            weight,
		UpdateBehavior:    models.UpdateBehaviorReplace,
		VisibleInViewMode: true,
	}
}

// Normalize substitutes the default weight when extraction supplied none.
func (c *WeightConfig) Normalize(weight int) int {
	if weight <= 0 {
		return models.DefaultPropertyWeight
	}
	return weight
}
