package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

var testStatuses = []string{"TODO", "DOING", "DONE", "CANCELLED", "SOMEDAY", "WAITING", "NLR"}

func TestTaskStatusHandler_Extract(t *testing.T) {
	handler, err := NewTaskStatusHandler("task_status", TaskStatusArguments{Statuses: testStatuses})
	require.NoError(t, err)

	t.Run("todo emits status only", func(t *testing.T) {
		result := runHandler(t, handler, "TODO Buy milk")

		require.Len(t, result.Properties, 1)
		assert.Equal(t, "status", result.Properties[0].Name)
		assert.Equal(t, "TODO", result.Properties[0].Value)
		assert.Equal(t, DefaultTaskWeight, result.Properties[0].Weight)
		assert.Equal(t, models.PropertyKindTaskStatus, result.Properties[0].Kind)
	})

	t.Run("done emits status and done_at", func(t *testing.T) {
		result := runHandler(t, handler, "DONE Buy milk")

		require.Len(t, result.Properties, 2)
		assert.Equal(t, "status", result.Properties[0].Name)
		assert.Equal(t, "DONE", result.Properties[0].Value)
		assert.Equal(t, "done_at", result.Properties[1].Name)
		assert.Equal(t, models.PropertyKindTimestamp, result.Properties[1].Kind)

		doneAt, err := time.Parse(time.RFC3339, result.Properties[1].Value)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC(), doneAt, time.Minute)
	})

	t.Run("status must anchor at line start", func(t *testing.T) {
		matches := handler.GetPattern().FindAllStringSubmatch("remember TODO later", -1)
		assert.Empty(t, matches)
	})

	t.Run("one status per matching line", func(t *testing.T) {
		result := runHandler(t, handler, "TODO first\nsome note\nDOING second\nDONE third")

		statuses := []string{}
		for _, property := range result.Properties {
			if property.Name == "status" {
				statuses = append(statuses, property.Value)
			}
		}
		assert.Equal(t, []string{"TODO", "DOING", "DONE"}, statuses)
	})

	t.Run("status keyword must end at word boundary", func(t *testing.T) {
		matches := handler.GetPattern().FindAllStringSubmatch("TODOS are not tasks", -1)
		assert.Empty(t, matches)
	})

	t.Run("task metadata records done flag", func(t *testing.T) {
		result := runHandler(t, handler, "DONE ship it")

		tasks, ok := result.Metadata["tasks"].([]map[string]any)
		require.True(t, ok)
		require.Len(t, tasks, 1)
		assert.Equal(t, "DONE", tasks[0]["status"])
		assert.Equal(t, true, tasks[0]["done"])
	})
}

func TestTaskStatusHandler_EmptyVocabularyFallsBackToTodo(t *testing.T) {
	handler, err := NewTaskStatusHandler("task_status", TaskStatusArguments{})
	require.NoError(t, err)

	result := runHandler(t, handler, "TODO one thing")
	require.Len(t, result.Properties, 1)
	assert.Equal(t, "TODO", result.Properties[0].Value)

	matches := handler.GetPattern().FindAllStringSubmatch("DONE other thing", -1)
	assert.Empty(t, matches)
}

func TestTaskStatusHandler_CustomWeight(t *testing.T) {
	handler, err := NewTaskStatusHandler("task_status", TaskStatusArguments{Statuses: testStatuses, Weight: 4})
	require.NoError(t, err)

	result := runHandler(t, handler, "TODO weighted")
	require.Len(t, result.Properties, 1)
	assert.Equal(t, 4, result.Properties[0].Weight)
}
