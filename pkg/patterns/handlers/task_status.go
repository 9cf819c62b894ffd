package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// TaskStatusPriority runs first so later handlers see the line as-is.
const TaskStatusPriority = 5

// DefaultTaskWeight keeps status history: weight 1 is append-policy, so
// recurring status changes accumulate instead of overwriting each other.
const DefaultTaskWeight = 1

const doneStatus = "DONE"

type TaskStatusArguments struct {
	Statuses []string `json:"statuses" validate:"omitempty"`
	Weight   int      `json:"weight" validate:"omitempty"`
	Priority int      `json:"priority" validate:"omitempty"`
}

func NewTaskStatusHandler(key string, args any) (models.PatternHandler, error) {
	parsedArgs, err := utils.ParseArguments[TaskStatusArguments](args)
	if err != nil {
		return nil, errors.WrapPatternError(err).AddHandler(key)
	}

	statuses := make([]string, 0, len(parsedArgs.Statuses))
	for _, status := range parsedArgs.Statuses {
		status = strings.TrimSpace(status)
		if status != "" {
			statuses = append(statuses, status)
		}
	}
	if len(statuses) == 0 {
		// an empty vocabulary degrades to the one status everyone has
		statuses = []string{"TODO"}
	}

	quoted := make([]string, len(statuses))
	for i, status := range statuses {
		quoted[i] = regexp.QuoteMeta(status)
	}

	pattern, err := regexp.Compile(fmt.Sprintf(`(?m)^(%s)\b`, strings.Join(quoted, "|")))
	if err != nil {
		return nil, errors.WrapPatternError(err).AddHandler(key)
	}

	weight := parsedArgs.Weight
	if weight == 0 {
		weight = DefaultTaskWeight
	}

	priority := parsedArgs.Priority
	if priority == 0 {
		priority = TaskStatusPriority
	}

	return &TaskStatusHandler{
		key:      key,
		priority: priority,
		weight:   weight,
		pattern:  pattern,
		now:      time.Now,
	}, nil
}

type TaskStatusHandler struct {
	key      string
	priority int
	weight   int
	pattern  *regexp.Regexp
	now      func() time.Time
}

func (h *TaskStatusHandler) GetKey() string {
	return h.key
}

func (h *TaskStatusHandler) GetPriority() int {
	return h.priority
}

func (h *TaskStatusHandler) GetPattern() *regexp.Regexp {
	return h.pattern
}

func (h *TaskStatusHandler) GetOptions() models.HandlerOptions {
	return models.HandlerOptions{ExtractProperties: true, ModifyContent: false}
}

func (h *TaskStatusHandler) Extract(ctx context.Context, matches [][]string, input models.PatternInput) (*models.PatternResult, error) {
	result := &models.PatternResult{
		Content:  input.Content,
		Metadata: map[string]any{},
	}

	tasks := make([]map[string]any, 0, len(matches))
	for _, match := range matches {
		status := match[1]
		done := status == doneStatus

		result.Properties = append(result.Properties, models.ExtractedProperty{
			Name:     "status",
			Value:    status,
			Weight:   h.weight,
			RawMatch: match[0],
			Kind:     models.PropertyKindTaskStatus,
		})

		if done {
			result.Properties = append(result.Properties, models.ExtractedProperty{
				Name:     "done_at",
				Value:    h.now().UTC().Format(time.RFC3339),
				Weight:   h.weight,
				RawMatch: match[0],
				Kind:     models.PropertyKindTimestamp,
			})
		}

		tasks = append(tasks, map[string]any{
			"status": status,
			"done":   done,
		})
	}

	result.Metadata["tasks"] = tasks
	return result, nil
}
