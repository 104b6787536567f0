package classes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"neorest/pkg/extensions"
)

const (
	MetaNodeClass  = "MetaNode"
	MetaNodesClass = "MetaNodes"
)

// bootstrapClasses never fire HookClassDefined: their hook would create
// instances of themselves.
var bootstrapClasses = map[string]struct{}{
	MetaNodeClass:  {},
	MetaNodesClass: {},
}

// IsBootstrap reports whether name is one of the metadata classes.
func IsBootstrap(name string) bool {
	_, ok := bootstrapClasses[name]
	return ok
}

// Registry maps class names to metadata. Entries are never removed or replaced.
type Registry struct {
	classes sync.Map // string -> *ClassMetadata
	hooks   *extensions.HookManager
}

// NewRegistry creates a registry that announces new classes through hooks.
// hooks may be nil.
func NewRegistry(hooks *extensions.HookManager) *Registry {
	return &Registry{hooks: hooks}
}

// ValidateDefinition checks the class name and every relationship type of def
// without registering anything. Errors wrap ErrInvalidClassName.
func ValidateDefinition(def ClassDefinition) error {
	name := Normalize(def.Name)
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	for _, rel := range def.Relationships {
		if !ValidateIdentifier(rel) {
			return fmt.Errorf("%w: relationship type %q", ErrInvalidClassName, rel)
		}
	}
	return nil
}

// Define registers a class exactly once.
// Concurrent definitions of the same name all receive the single winning entry;
// only the winner reports created=true and fires HookClassDefined.
// A failing hook is returned but the class stays registered.
func (r *Registry) Define(ctx context.Context, def ClassDefinition) (*ClassMetadata, bool, error) {
	def.Name = Normalize(def.Name)
	if err := ValidateDefinition(def); err != nil {
		return nil, false, err
	}

	actual, loaded := r.classes.LoadOrStore(def.Name, newClassMetadata(def))
	meta := actual.(*ClassMetadata)
	if loaded {
		return meta, false, nil
	}

	if IsBootstrap(def.Name) {
		return meta, true, nil
	}
	if err := r.hooks.Execute(ctx, extensions.HookClassDefined, meta); err != nil {
		return meta, true, fmt.Errorf("class %s registered but hook failed: %w", def.Name, err)
	}
	return meta, true, nil
}

// Lookup returns the metadata for an exact class name.
func (r *Registry) Lookup(name string) (*ClassMetadata, bool) {
	v, ok := r.classes.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*ClassMetadata), true
}

// Resolve maps a request token to a registered class.
func (r *Registry) Resolve(token string) (*ClassMetadata, error) {
	name := Normalize(token)
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrClassNotFound, token)
	}
	meta, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrClassNotFound, token)
	}
	return meta, nil
}

// Names returns the sorted names of all non-bootstrap classes.
func (r *Registry) Names() []string {
	var names []string
	r.classes.Range(func(key, _ interface{}) bool {
		name := key.(string)
		if !IsBootstrap(name) {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	if names == nil {
		names = []string{}
	}
	return names
}

// Len counts every registered class including bootstrap ones.
func (r *Registry) Len() int {
	n := 0
	r.classes.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
