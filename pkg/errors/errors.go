package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// PatternError carries the location of a pipeline failure: which handler was
// running and which entity was being processed.
type PatternError struct {
	Handler    string
	EntityType string
	EntityID   string
	Message    string
}

func NewPatternError(msg string) *PatternError {
	return &PatternError{
		Message:    msg,
		Handler:    "",
		EntityType: "",
		EntityID:   "",
	}
}

func WrapPatternError(e error) *PatternError {
	if e == nil {
		return nil
	}

	if patternError, ok := e.(*PatternError); ok {
		return patternError
	}

	return &PatternError{
		Message:    e.Error(),
		Handler:    "",
		EntityType: "",
		EntityID:   "",
	}
}

// NewPatternErrorf creates a new PatternError with a formatted message
func NewPatternErrorf(format string, args ...any) *PatternError {
	// Handle error wrapping directive %w
	// If one of the args is an error and format contains %w,
	// extract the error message and replace %w with %v
	for i, arg := range args {
		if err, ok := arg.(error); ok && strings.Contains(format, "%w") {
			format = strings.Replace(format, "%w", "%v", 1)
			args[i] = err.Error()
		}
	}

	return &PatternError{
		Message:    fmt.Sprintf(format, args...),
		Handler:    "",
		EntityType: "",
		EntityID:   "",
	}
}

func (e *PatternError) Error() string {
	path := []string{}
	if e.Handler != "" {
		path = append(path, fmt.Sprintf("handler '%s'", e.Handler))
	}
	if e.EntityType != "" && e.EntityID != "" {
		path = append(path, fmt.Sprintf("entity '%s/%s'", e.EntityType, e.EntityID))
	}

	if len(path) == 0 {
		return e.Message
	}

	return strings.Join(path, " -> ") + ": " + e.Message
}

func (e *PatternError) AddHandler(handlerKey string) *PatternError {
	e.Handler = handlerKey
	return e
}

func (e *PatternError) AddEntity(entityType string, entityID string) *PatternError {
	e.EntityType = entityType
	e.EntityID = entityID
	return e
}

func (e *PatternError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusInternalServerError, e.Error()).AddMetaValue("handler", e.Handler).AddMetaValue("entity_type", e.EntityType).AddMetaValue("entity_id", e.EntityID)
}

func IsPatternError(err error) bool {
	_, ok := err.(*PatternError)
	return ok
}
