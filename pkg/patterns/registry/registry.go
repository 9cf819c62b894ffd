package registry

import (
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

type HandlerFactory func(key string, args any) (models.PatternHandler, error)

var Handlers = map[string]HandlerFactory{}

func GetHandler(key string, args any) (models.PatternHandler, error) {
	factory, ok := Handlers[key]
	if !ok {
		return nil, errors.NewPatternError("handler not found").AddHandler(key)
	}
	return factory(key, args)
}
