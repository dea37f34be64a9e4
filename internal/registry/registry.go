package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

var (
	// ErrUnknownModel is returned when no factory is registered under a model name.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnknownDiscretizer is returned when no factory is registered under a discretizer name.
	ErrUnknownDiscretizer = errors.New("unknown discretizer")
)

// Module is the interface that all core modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Factory builds a fresh, unfitted classifier.
type Factory func() Classifier

// DiscretizerFactory builds a fresh, unfitted discretizer.
type DiscretizerFactory func() Discretizer

// Registry holds the model and discretizer factories of a single application
// instance.
type Registry struct {
	models       map[string]Factory
	discretizers map[string]DiscretizerFactory
}

// New creates and initializes a new Registry instance.
func New(modules ...Module) *Registry {
	r := &Registry{
		models:       make(map[string]Factory),
		discretizers: make(map[string]DiscretizerFactory),
	}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterModel registers a classifier factory under name.
func (r *Registry) RegisterModel(name string, f Factory) {
	if _, exists := r.models[name]; exists {
		panic(fmt.Sprintf("model with name '%s' already registered", name))
	}
	slog.Debug("Registering model.", "name", name)
	r.models[name] = f
}

// CreateModel builds a new classifier for name.
func (r *Registry) CreateModel(name string) (Classifier, error) {
	f, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s, valid models are %v", ErrUnknownModel, name, r.Models())
	}
	return f(), nil
}

// HasModel reports whether a factory is registered under name.
func (r *Registry) HasModel(name string) bool {
	_, ok := r.models[name]
	return ok
}

// Models returns the registered model names in sorted order.
func (r *Registry) Models() []string {
	return sortedKeys(r.models)
}

// RegisterDiscretizer registers a discretizer factory under name.
func (r *Registry) RegisterDiscretizer(name string, f DiscretizerFactory) {
	if _, exists := r.discretizers[name]; exists {
		panic(fmt.Sprintf("discretizer with name '%s' already registered", name))
	}
	slog.Debug("Registering discretizer.", "name", name)
	r.discretizers[name] = f
}

// CreateDiscretizer builds a new discretizer for name.
func (r *Registry) CreateDiscretizer(name string) (Discretizer, error) {
	f, ok := r.discretizers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s, valid discretizers are %v", ErrUnknownDiscretizer, name, r.Discretizers())
	}
	return f(), nil
}

// Discretizers returns the registered discretizer names in sorted order.
func (r *Registry) Discretizers() []string {
	return sortedKeys(r.discretizers)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
