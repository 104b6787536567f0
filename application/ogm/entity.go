// Package ogm maps logical entity classes onto graph nodes. An Entity is a
// light handle: several handles may point at the same node, and every read or
// write goes to the engine through the current transaction.
package ogm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"neorest/application/ports"
	"neorest/application/transaction"
	"neorest/domain/core/classes"
	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
	"neorest/domain/events"
	"neorest/domain/search"
)

var (
	ErrNodeNotFound           = errors.New("node not found")
	ErrRelationshipNotFound   = errors.New("relationship not found")
	ErrReservedProperty       = errors.New("classname is reserved and set only at creation")
	ErrUndeclaredProperty     = errors.New("property is not declared by the class")
	ErrUndeclaredRelationship = errors.New("relationship type is not declared by the class")
	ErrMissingClass           = errors.New("class metadata is required")
)

// Initializer runs after a new node is stamped, inside the creating transaction.
type Initializer func(ctx context.Context, e *Entity) error

// Entity is a node-backed instance of a logical class.
type Entity struct {
	id        valueobjects.NodeID
	className string
	class     *classes.ClassMetadata
	scope     *transaction.Boundary
}

// New creates a node, stamps its classname and runs init, all in one transaction.
func New(ctx context.Context, scope *transaction.Boundary, class *classes.ClassMetadata, init Initializer) (*Entity, error) {
	if class == nil {
		return nil, ErrMissingClass
	}
	return transaction.Run(ctx, scope, func(ctx context.Context) (*Entity, error) {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return nil, err
		}
		id, err := tx.CreateNode(ctx)
		if err != nil {
			return nil, err
		}
		if err := tx.SetProperty(ctx, id, valueobjects.ClassNameProperty, valueobjects.String(class.Name())); err != nil {
			return nil, err
		}
		e := &Entity{id: id, className: class.Name(), class: class, scope: scope}
		transaction.Emit(ctx, events.NewNodeCreated(id, class.Name(), time.Now()))

		if init != nil {
			if err := init(ctx, e); err != nil {
				return nil, err
			}
		}
		return e, nil
	})
}

// Wrap binds an existing node to a class, stamping classname only when it is missing.
func Wrap(ctx context.Context, scope *transaction.Boundary, class *classes.ClassMetadata, id valueobjects.NodeID) (*Entity, error) {
	if class == nil {
		return nil, ErrMissingClass
	}
	return transaction.Run(ctx, scope, func(ctx context.Context) (*Entity, error) {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return nil, err
		}
		current, ok, err := tx.GetProperty(ctx, id, valueobjects.ClassNameProperty)
		if err != nil {
			return nil, nodeError(id, err)
		}
		name := current.String()
		if !ok || name == "" {
			if err := tx.SetProperty(ctx, id, valueobjects.ClassNameProperty, valueobjects.String(class.Name())); err != nil {
				return nil, err
			}
			name = class.Name()
		}
		return &Entity{id: id, className: name, class: class, scope: scope}, nil
	})
}

// Load wraps the node with the given id using the class recorded on it.
// Class is nil when the recorded class is not registered.
func Load(ctx context.Context, scope *transaction.Boundary, registry *classes.Registry, id valueobjects.NodeID) (*Entity, error) {
	return transaction.Run(ctx, scope, func(ctx context.Context) (*Entity, error) {
		node, err := loadNode(ctx, id)
		if err != nil {
			return nil, err
		}
		name := node.ClassName()
		var class *classes.ClassMetadata
		if registry != nil {
			class, _ = registry.Lookup(name)
		}
		return &Entity{id: id, className: name, class: class, scope: scope}, nil
	})
}

// LoadRelationship returns a relationship snapshot or ErrRelationshipNotFound.
func LoadRelationship(ctx context.Context, scope *transaction.Boundary, id valueobjects.RelationshipID) (entities.Relationship, error) {
	return transaction.Run(ctx, scope, func(ctx context.Context) (entities.Relationship, error) {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return entities.Relationship{}, err
		}
		rel, err := tx.LoadRelationship(ctx, id)
		if errors.Is(err, ports.ErrNotFound) {
			return entities.Relationship{}, fmt.Errorf("%w: %d", ErrRelationshipNotFound, id)
		}
		return rel, err
	})
}

func (e *Entity) ID() valueobjects.NodeID { return e.id }

func (e *Entity) ClassName() string { return e.className }

// Class returns the registered metadata, or nil for unregistered classes.
func (e *Entity) Class() *classes.ClassMetadata { return e.class }

// Get reads a property; the bool reports presence.
func (e *Entity) Get(ctx context.Context, name string) (valueobjects.Value, bool, error) {
	type result struct {
		v  valueobjects.Value
		ok bool
	}
	r, err := transaction.Run(ctx, e.scope, func(ctx context.Context) (result, error) {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return result{}, err
		}
		v, ok, err := tx.GetProperty(ctx, e.id, name)
		if err != nil {
			return result{}, nodeError(e.id, err)
		}
		return result{v: v, ok: ok}, nil
	})
	return r.v, r.ok, err
}

// Set stores one property. classname cannot be reassigned.
func (e *Entity) Set(ctx context.Context, name string, value valueobjects.Value) error {
	if name == valueobjects.ClassNameProperty {
		return ErrReservedProperty
	}
	return e.scope.Within(ctx, func(ctx context.Context) error {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return err
		}
		if err := tx.SetProperty(ctx, e.id, name, value); err != nil {
			return nodeError(e.id, err)
		}
		transaction.Emit(ctx, events.NewPropertySet(e.id, name, value, time.Now()))
		return nil
	})
}

// Props returns a snapshot of the property bag.
func (e *Entity) Props(ctx context.Context) (valueobjects.Properties, error) {
	return transaction.Run(ctx, e.scope, func(ctx context.Context) (valueobjects.Properties, error) {
		node, err := loadNode(ctx, e.id)
		if err != nil {
			return nil, err
		}
		return node.Properties, nil
	})
}

// Update applies every given property, declared or not. A classname key is ignored.
func (e *Entity) Update(ctx context.Context, props valueobjects.Properties) error {
	return e.scope.Within(ctx, func(ctx context.Context) error {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(props))
		for _, name := range props.Keys() {
			if name == valueobjects.ClassNameProperty {
				continue
			}
			if err := tx.SetProperty(ctx, e.id, name, props[name]); err != nil {
				return nodeError(e.id, err)
			}
			names = append(names, name)
		}
		transaction.Emit(ctx, events.NewNodeUpdated(e.id, names, time.Now()))
		return nil
	})
}

// Delete removes the node and its relationships.
func (e *Entity) Delete(ctx context.Context) error {
	return e.scope.Within(ctx, func(ctx context.Context) error {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return err
		}
		if err := tx.DeleteNode(ctx, e.id); err != nil {
			return nodeError(e.id, err)
		}
		transaction.Emit(ctx, events.NewNodeDeleted(e.id, e.className, time.Now()))
		return nil
	})
}

// Traverse follows outgoing relationships of one type up to depth hops.
func (e *Entity) Traverse(ctx context.Context, relType string, depth int) ([]entities.Node, error) {
	return transaction.Run(ctx, e.scope, func(ctx context.Context) ([]entities.Node, error) {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return nil, err
		}
		nodes, err := tx.TraverseOutgoing(ctx, e.id, relType, depth)
		if err != nil {
			return nil, nodeError(e.id, err)
		}
		return nodes, nil
	})
}

// RelationshipsByType lists outgoing relationships grouped by type, types sorted.
func (e *Entity) RelationshipsByType(ctx context.Context) (map[string][]entities.Relationship, []string, error) {
	rels, err := e.Outgoing("").List(ctx)
	if err != nil {
		return nil, nil, err
	}
	grouped := entities.RelationshipTypes(rels)
	types := make([]string, 0, len(grouped))
	for t := range grouped {
		types = append(types, t)
	}
	sort.Strings(types)
	return grouped, types, nil
}

func loadNode(ctx context.Context, id valueobjects.NodeID) (entities.Node, error) {
	tx, err := transaction.Current(ctx)
	if err != nil {
		return entities.Node{}, err
	}
	node, err := tx.LoadNode(ctx, id)
	if err != nil {
		return entities.Node{}, nodeError(id, err)
	}
	return node, nil
}

func nodeError(id valueobjects.NodeID, err error) error {
	if errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return err
}

// Search returns nodes of the class matching the criteria.
func Search(ctx context.Context, scope *transaction.Boundary, class *classes.ClassMetadata, criteria search.Criteria) ([]entities.Node, error) {
	if class == nil {
		return nil, ErrMissingClass
	}
	return transaction.Run(ctx, scope, func(ctx context.Context) ([]entities.Node, error) {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return nil, err
		}
		return tx.Search(ctx, class, criteria)
	})
}

// RefNode returns the engine's root node.
func RefNode(ctx context.Context, scope *transaction.Boundary) (entities.Node, error) {
	return transaction.Run(ctx, scope, func(ctx context.Context) (entities.Node, error) {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return entities.Node{}, err
		}
		return tx.RefNode(ctx)
	})
}
