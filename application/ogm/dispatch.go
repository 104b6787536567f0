package ogm

import (
	"context"
	"fmt"
	"strings"

	"neorest/domain/core/valueobjects"
)

// SetterSuffix marks a dynamic accessor as an assignment.
const SetterSuffix = "="

// ArgumentError reports a dynamic accessor called with the wrong number of arguments.
type ArgumentError struct {
	Method   string
	Given    int
	Expected int
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("method '%s' has wrong number of arguments (%d for %d)", e.Method, e.Given, e.Expected)
}

// Dispatch resolves a dynamic accessor against the property bag. "name" reads
// and takes no arguments; "name=" writes and takes exactly one.
// A read of a missing property returns the invalid Value.
func (e *Entity) Dispatch(ctx context.Context, accessor string, args ...interface{}) (valueobjects.Value, error) {
	if name, ok := strings.CutSuffix(accessor, SetterSuffix); ok {
		if len(args) != 1 {
			return valueobjects.Value{}, &ArgumentError{Method: name, Given: len(args), Expected: 1}
		}
		v, err := valueobjects.FromAny(args[0])
		if err != nil {
			return valueobjects.Value{}, fmt.Errorf("%s: %w", accessor, err)
		}
		if err := e.Set(ctx, name, v); err != nil {
			return valueobjects.Value{}, err
		}
		return v, nil
	}

	if len(args) != 0 {
		return valueobjects.Value{}, &ArgumentError{Method: accessor, Given: len(args), Expected: 0}
	}
	v, _, err := e.Get(ctx, accessor)
	return v, err
}

// Property is the accessor pair for a declared property. It reads and writes
// the same bag as Get and Set.
type Property struct {
	entity *Entity
	name   string
}

// Accessor returns the accessor pair for a property declared by the entity's class.
func (e *Entity) Accessor(name string) (*Property, error) {
	if e.class == nil || !e.class.HasProperty(name) {
		return nil, fmt.Errorf("%w: %s.%s", ErrUndeclaredProperty, e.className, name)
	}
	return &Property{entity: e, name: name}, nil
}

func (p *Property) Name() string { return p.name }

func (p *Property) Get(ctx context.Context) (valueobjects.Value, bool, error) {
	return p.entity.Get(ctx, p.name)
}

func (p *Property) Set(ctx context.Context, v valueobjects.Value) error {
	return p.entity.Set(ctx, p.name, v)
}
