package ogm

import (
	"context"
	"fmt"
	"time"

	"neorest/application/transaction"
	"neorest/domain/core/entities"
	"neorest/domain/events"
)

// Relations is the outgoing relationship collection of one type on one node.
// An empty type reads every outgoing relationship and cannot be appended to.
type Relations struct {
	entity  *Entity
	relType string
}

// Outgoing returns the collection for any relationship type.
func (e *Entity) Outgoing(relType string) *Relations {
	return &Relations{entity: e, relType: relType}
}

// Relations returns the collection for a relationship type declared by the class.
func (e *Entity) Relations(relType string) (*Relations, error) {
	if e.class == nil || !e.class.HasRelationship(relType) {
		return nil, fmt.Errorf("%w: %s.%s", ErrUndeclaredRelationship, e.className, relType)
	}
	return e.Outgoing(relType), nil
}

func (r *Relations) Type() string { return r.relType }

// Append links the owner to other with a new relationship of this type.
func (r *Relations) Append(ctx context.Context, other *Entity) (entities.Relationship, error) {
	if r.relType == "" {
		return entities.Relationship{}, fmt.Errorf("append requires a relationship type")
	}
	return transaction.Run(ctx, r.entity.scope, func(ctx context.Context) (entities.Relationship, error) {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return entities.Relationship{}, err
		}
		rel, err := tx.CreateRelationship(ctx, r.entity.id, other.id, r.relType)
		if err != nil {
			return entities.Relationship{}, err
		}
		transaction.Emit(ctx, events.NewRelationshipCreated(rel.ID, rel.Type, rel.Start, rel.End, time.Now()))
		return rel, nil
	})
}

// List returns the relationships in engine order.
func (r *Relations) List(ctx context.Context) ([]entities.Relationship, error) {
	return transaction.Run(ctx, r.entity.scope, func(ctx context.Context) ([]entities.Relationship, error) {
		tx, err := transaction.Current(ctx)
		if err != nil {
			return nil, err
		}
		rels, err := tx.OutgoingRelationships(ctx, r.entity.id, r.relType)
		if err != nil {
			return nil, nodeError(r.entity.id, err)
		}
		return rels, nil
	})
}

// Targets returns the end nodes of the relationships in the same order as List.
func (r *Relations) Targets(ctx context.Context) ([]entities.Node, error) {
	return transaction.Run(ctx, r.entity.scope, func(ctx context.Context) ([]entities.Node, error) {
		rels, err := r.List(ctx)
		if err != nil {
			return nil, err
		}
		nodes := make([]entities.Node, 0, len(rels))
		for _, rel := range rels {
			node, err := loadNode(ctx, rel.End)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
		return nodes, nil
	})
}
