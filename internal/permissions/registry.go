package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Capability describes an action a role may be granted.
type Capability struct {
	ID          string
	Module      string
	DependsOn   []string
	Implies     []string
	Description string
}

type registry struct {
	mu   sync.RWMutex
	caps map[string]*Capability
}

var global = &registry{caps: make(map[string]*Capability)}

var (
	errNilCapability   = errors.New("permission: nil definition")
	errEmptyID         = errors.New("permission: id is required")
	errDuplicateID     = errors.New("permission: already registered")
	errSelfDependency  = errors.New("permission: cannot depend on itself")
	errSelfImplication = errors.New("permission: cannot imply itself")
)

// Register adds a capability definition.
func Register(c *Capability) error {
	if c == nil {
		return errNilCapability
	}
	id := strings.TrimSpace(c.ID)
	if id == "" {
		return errEmptyID
	}

	def := c.clone()
	def.ID = id
	var err error
	if def.DependsOn, err = normaliseIDs(c.DependsOn, id, errSelfDependency); err != nil {
		return err
	}
	if def.Implies, err = normaliseIDs(c.Implies, id, errSelfImplication); err != nil {
		return err
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	if _, exists := global.caps[id]; exists {
		return fmt.Errorf("%w: %s", errDuplicateID, id)
	}
	global.caps[id] = def
	return nil
}

// MustRegister panics when Register fails. Used for the built-in definitions.
func MustRegister(caps ...*Capability) {
	for _, c := range caps {
		if err := Register(c); err != nil {
			panic(err)
		}
	}
}

// Get returns a copy of the capability definition when registered.
func Get(id string) (*Capability, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	c, ok := global.caps[id]
	if !ok {
		return nil, false
	}
	return c.clone(), true
}

// IDs returns the registered capability ids in sorted order.
func IDs() []string {
	global.mu.RLock()
	defer global.mu.RUnlock()
	ids := make([]string, 0, len(global.caps))
	for id := range global.caps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate ensures every dependency and implication references a known capability.
func Validate() error {
	global.mu.RLock()
	defer global.mu.RUnlock()
	for _, c := range global.caps {
		for _, ref := range append(append([]string(nil), c.DependsOn...), c.Implies...) {
			if _, ok := global.caps[ref]; !ok {
				return fmt.Errorf("%w %q referenced by %s", ErrUnknownCapability, ref, c.ID)
			}
		}
	}
	return nil
}

func (c *Capability) clone() *Capability {
	cp := *c
	cp.DependsOn = append([]string(nil), c.DependsOn...)
	cp.Implies = append([]string(nil), c.Implies...)
	return &cp
}

func normaliseIDs(values []string, self string, selfErr error) ([]string, error) {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if v == self {
			return nil, selfErr
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}
