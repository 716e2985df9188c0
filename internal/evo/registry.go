package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrOperatorExists   = errors.New("operator already registered")
	ErrOperatorNotFound = errors.New("operator not found")
)

var operatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]Operator
}{
	m: make(map[string]Operator),
}

func init() {
	resetOperatorRegistry()
}

// RegisterOperator makes op resolvable by name. Built-in operators are
// registered under cross, point, limb and randomize.
func RegisterOperator(name string, op Operator) error {
	if name == "" {
		return errors.New("operator name is required")
	}
	if op == nil {
		return errors.New("operator is required")
	}

	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()

	if _, exists := operatorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, name)
	}
	operatorRegistry.m[name] = op
	return nil
}

// ResolveOperator returns the operator registered under name.
func ResolveOperator(name string) (Operator, error) {
	operatorRegistry.mu.RLock()
	op, ok := operatorRegistry.m[name]
	operatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	return op, nil
}

func ListOperators() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(operatorRegistry.m))
	for name := range operatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resetOperatorRegistry drops custom registrations and restores
// the built-ins.
func resetOperatorRegistry() {
	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()
	operatorRegistry.m = make(map[string]Operator)
	for _, op := range []Operator{CrossOperator{}, PointOperator{}, LimbOperator{}, RandomizeOperator{}} {
		operatorRegistry.m[op.Name()] = op
	}
}
