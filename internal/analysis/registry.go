package analysis

import (
	"errors"
	"fmt"

	"token-spam-detector/internal/domain"
)

// Registry errors.
var (
	ErrDuplicateModule   = errors.New("analysis: module key registered twice")
	ErrUnknownDependency = errors.New("analysis: module depends on unregistered key")
	ErrDependencyCycle   = errors.New("analysis: dependency cycle")
)

// Registry holds the modules registered per token standard and resolves their
// execution order once at startup. Order is fixed by declared dependency, not
// by registration or key order.
type Registry struct {
	modules  map[domain.TokenStandard][]Module
	resolved bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[domain.TokenStandard][]Module)}
}

// Register adds a module for the given standards.
func (r *Registry) Register(m Module, standards ...domain.TokenStandard) {
	for _, std := range standards {
		r.modules[std] = append(r.modules[std], m)
	}
	r.resolved = false
}

// Resolve topologically sorts each standard's module list by declared
// dependencies. Must be called after registration and before ModulesFor.
func (r *Registry) Resolve() error {
	for std, mods := range r.modules {
		ordered, err := topoSort(mods)
		if err != nil {
			return fmt.Errorf("standard %s: %w", std, err)
		}
		r.modules[std] = ordered
	}
	r.resolved = true
	return nil
}

// ModulesFor returns the modules for a standard in execution order.
func (r *Registry) ModulesFor(std domain.TokenStandard) []Module {
	return r.modules[std]
}

// Resolved reports whether Resolve ran since the last registration.
func (r *Registry) Resolved() bool {
	return r.resolved
}

// topoSort orders modules so every module runs after its dependencies,
// breaking ties by registration order for determinism.
func topoSort(mods []Module) ([]Module, error) {
	byKey := make(map[string]Module, len(mods))
	for _, m := range mods {
		if _, dup := byKey[m.Key()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModule, m.Key())
		}
		byKey[m.Key()] = m
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(mods))
	ordered := make([]Module, 0, len(mods))

	var visit func(m Module) error
	visit = func(m Module) error {
		switch state[m.Key()] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: at %s", ErrDependencyCycle, m.Key())
		}
		state[m.Key()] = visiting

		for _, dep := range m.DependsOn() {
			depMod, ok := byKey[dep]
			if !ok {
				return fmt.Errorf("%w: %s needs %s", ErrUnknownDependency, m.Key(), dep)
			}
			if err := visit(depMod); err != nil {
				return err
			}
		}

		state[m.Key()] = done
		ordered = append(ordered, m)
		return nil
	}

	for _, m := range mods {
		if err := visit(m); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
