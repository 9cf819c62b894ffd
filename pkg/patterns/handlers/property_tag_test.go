package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func runHandler(t *testing.T, handler models.PatternHandler, content string) *models.PatternResult {
	t.Helper()

	matches := handler.GetPattern().FindAllStringSubmatch(content, -1)
	result, err := handler.Extract(context.Background(), matches, models.PatternInput{
		EntityType: models.EntityTypeNote,
		Content:    content,
	})
	assert.NoError(t, err)
	return result
}

func TestPropertyTagHandler_Extract(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []models.ExtractedProperty
	}{
		{
			name:    "single tag",
			content: "some text {priority::high} more text",
			expected: []models.ExtractedProperty{
				{Name: "priority", Value: "high", Weight: 2, RawMatch: "{priority::high}", Kind: models.PropertyKindProperty},
			},
		},
		{
			name:    "colon run length becomes weight",
			content: "{priority:::high}",
			expected: []models.ExtractedProperty{
				{Name: "priority", Value: "high", Weight: 3, RawMatch: "{priority:::high}", Kind: models.PropertyKindProperty},
			},
		},
		{
			name:    "multiple tags all survive",
			content: "{tag::a} {tag::b} {other::c}",
			expected: []models.ExtractedProperty{
				{Name: "tag", Value: "a", Weight: 2, RawMatch: "{tag::a}", Kind: models.PropertyKindProperty},
				{Name: "tag", Value: "b", Weight: 2, RawMatch: "{tag::b}", Kind: models.PropertyKindProperty},
				{Name: "other", Value: "c", Weight: 2, RawMatch: "{other::c}", Kind: models.PropertyKindProperty},
			},
		},
		{
			name:    "name and value are trimmed",
			content: "{ priority :: high }",
			expected: []models.ExtractedProperty{
				{Name: "priority", Value: "high", Weight: 2, RawMatch: "{ priority :: high }", Kind: models.PropertyKindProperty},
			},
		},
		{
			name:    "empty value is allowed",
			content: "{flag::}",
			expected: []models.ExtractedProperty{
				{Name: "flag", Value: "", Weight: 2, RawMatch: "{flag::}", Kind: models.PropertyKindProperty},
			},
		},
		{
			name:     "empty name is skipped",
			content:  "{ ::value}",
			expected: nil,
		},
		{
			name:     "single colon is not a tag",
			content:  "{key:value}",
			expected: nil,
		},
		{
			name:     "no tags",
			content:  "plain text without syntax",
			expected: nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			handler, err := NewPropertyTagHandler("property_tag", nil)
			require.NoError(t, err)

			result := runHandler(t, handler, test.content)
			assert.Equal(t, test.expected, result.Properties)
		})
	}
}

func TestPropertyTagHandler_ValueMayContainColons(t *testing.T) {
	handler, err := NewPropertyTagHandler("property_tag", nil)
	require.NoError(t, err)

	result := runHandler(t, handler, "{source::https://example.com/a}")
	require.Len(t, result.Properties, 1)
	assert.Equal(t, "source", result.Properties[0].Name)
	assert.Equal(t, "https://example.com/a", result.Properties[0].Value)
	assert.Equal(t, 2, result.Properties[0].Weight)
}
