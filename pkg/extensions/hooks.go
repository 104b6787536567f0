// Package extensions lets components react to schema changes without the
// class registry importing them.
package extensions

import (
	"context"
	"fmt"
	"sync"
)

// HookPoint names a schema event.
type HookPoint string

const (
	// HookClassDefined fires once per newly registered entity class with its
	// *classes.ClassMetadata.
	HookClassDefined HookPoint = "class_defined"

	// HookSchemaLoaded fires after a schema source was applied, with the
	// []string of class names it declared.
	HookSchemaLoaded HookPoint = "schema_loaded"
)

type Hook func(ctx context.Context, data interface{}) error

// HookManager is safe for concurrent use. A nil *HookManager runs no hooks.
type HookManager struct {
	mu    sync.RWMutex
	hooks map[HookPoint][]Hook
}

func NewHookManager() *HookManager {
	return &HookManager{hooks: make(map[HookPoint][]Hook)}
}

func (m *HookManager) Register(point HookPoint, hook Hook) {
	m.mu.Lock()
	m.hooks[point] = append(m.hooks[point], hook)
	m.mu.Unlock()
}

// Execute runs the hooks of point in registration order and returns the first
// failure. Hooks registered while it runs are not called.
func (m *HookManager) Execute(ctx context.Context, point HookPoint, data interface{}) error {
	if m == nil {
		return nil
	}

	m.mu.RLock()
	registered := m.hooks[point]
	m.mu.RUnlock()

	for i, hook := range registered {
		if err := hook(ctx, data); err != nil {
			return fmt.Errorf("%s hook #%d: %w", point, i+1, err)
		}
	}
	return nil
}
