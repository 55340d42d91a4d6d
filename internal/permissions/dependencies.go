package permissions

import "fmt"

var (
	// ErrUnknownCapability indicates a lookup for an unregistered capability.
	ErrUnknownCapability = fmt.Errorf("permission: unknown capability")
	// ErrCircularDependency signals that a dependency graph contains a cycle.
	ErrCircularDependency = fmt.Errorf("permission: circular dependency detected")
)

// ResolveDependencies returns the transitive dependencies of id, deepest first.
func ResolveDependencies(id string) ([]string, error) {
	root, ok := Get(id)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCapability, id)
	}

	const (
		visiting = 1
		done     = 2
	)
	state := map[string]int{}
	var resolved []string

	var walk func(string) error
	walk = func(current string) error {
		switch state[current] {
		case visiting:
			return fmt.Errorf("%w at %s", ErrCircularDependency, current)
		case done:
			return nil
		}
		c, ok := Get(current)
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownCapability, current)
		}
		state[current] = visiting
		for _, dep := range c.DependsOn {
			if err := walk(dep); err != nil {
				return err
			}
		}
		state[current] = done
		resolved = append(resolved, current)
		return nil
	}

	for _, dep := range root.DependsOn {
		if err := walk(dep); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// expandImplied returns ids plus everything they imply, transitively.
func expandImplied(ids []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(ids))
	var visit func(string) error
	visit = func(id string) error {
		if _, seen := out[id]; seen {
			return nil
		}
		c, ok := Get(id)
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownCapability, id)
		}
		out[id] = struct{}{}
		for _, implied := range c.Implies {
			if err := visit(implied); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}
