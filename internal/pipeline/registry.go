package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrStageAlreadyRegistered is returned when registering a duplicate stage.
	ErrStageAlreadyRegistered = errors.New("stage already registered")

	// ErrStageNotFound is returned when a stage depends on one that was never registered.
	ErrStageNotFound = errors.New("stage not found")

	// ErrDependencyCycle is returned when stage dependencies form a cycle.
	ErrDependencyCycle = errors.New("dependency cycle detected")
)

// Registry collects the stages of a pipeline before they are ordered.
// It is built once, in New, and is not safe for concurrent use.
type Registry struct {
	stages map[string]Stage
	order  []string
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage. Names must be unique.
func (r *Registry) Register(s Stage) error {
	name := s.Name()
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("%w: %s", ErrStageAlreadyRegistered, name)
	}
	r.stages[name] = s
	r.order = append(r.order, name)
	return nil
}

// Get returns a stage by name.
func (r *Registry) Get(name string) (Stage, bool) {
	s, ok := r.stages[name]
	return s, ok
}

// Names returns stage names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// GetOrdered returns the stages so that every stage follows its
// dependencies. Each pass walks registration order and emits the stages
// whose dependencies are already placed, so independent stages keep the
// order they were registered in.
func (r *Registry) GetOrdered() ([]Stage, error) {
	for _, name := range r.order {
		for _, dep := range r.stages[name].Dependencies() {
			if _, ok := r.stages[dep]; !ok {
				return nil, fmt.Errorf("%w: stage %q depends on %q", ErrStageNotFound, name, dep)
			}
		}
	}

	placed := make(map[string]bool, len(r.order))
	ordered := make([]Stage, 0, len(r.order))
	for len(ordered) < len(r.order) {
		var ready []string
		for _, name := range r.order {
			if !placed[name] && r.depsPlaced(name, placed) {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			return nil, ErrDependencyCycle
		}
		for _, name := range ready {
			placed[name] = true
			ordered = append(ordered, r.stages[name])
		}
	}
	return ordered, nil
}

func (r *Registry) depsPlaced(name string, placed map[string]bool) bool {
	for _, dep := range r.stages[name].Dependencies() {
		if !placed[dep] {
			return false
		}
	}
	return true
}
