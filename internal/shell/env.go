package shell

import (
	"fmt"
	"maps"
	"regexp"
	"sync"
)

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether name may be used as a variable name.
func ValidName(name string) bool { return validName.MatchString(name) }

// Environment is a stack of variable scopes. Lookups and writes use the top
// scope only; Push copies the top so inner scopes start with what the outer
// one had, and Pop restores the outer scope.
type Environment struct {
	mu     sync.RWMutex
	scopes []map[string]string
}

// NewEnvironment returns an environment whose base scope holds vars.
func NewEnvironment(vars map[string]string) *Environment {
	base := make(map[string]string, len(vars))
	maps.Copy(base, vars)
	return &Environment{scopes: []map[string]string{base}}
}

func (e *Environment) top() map[string]string { return e.scopes[len(e.scopes)-1] }

func (e *Environment) Push() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scopes = append(e.scopes, maps.Clone(e.top()))
}

// Pop discards the top scope. The base scope is never removed.
func (e *Environment) Pop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.scopes) == 1 {
		return ErrBaseScope
	}
	e.scopes = e.scopes[:len(e.scopes)-1]
	return nil
}

// Depth returns the number of scopes, 1 when only the base remains.
func (e *Environment) Depth() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.scopes)
}

func (e *Environment) Get(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.top()[name]
	return v, ok
}

func (e *Environment) Set(name, value string) error {
	if !ValidName(name) {
		return fmt.Errorf("'%s': %w", name, ErrInvalidName)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.top()[name] = value
	return nil
}

func (e *Environment) Unset(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.top(), name)
}

// All returns a copy of the top scope.
func (e *Environment) All() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.top())
}

// Clone returns an independent environment whose base scope is a copy of the
// current top scope.
func (e *Environment) Clone() *Environment {
	return NewEnvironment(e.All())
}
