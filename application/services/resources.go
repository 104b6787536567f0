package services

import (
	"context"
	"errors"
	"fmt"

	"neorest/application/ogm"
	"neorest/application/transaction"
	"neorest/domain/core/classes"
	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
	apperrors "neorest/pkg/errors"
)

// Resources resolves request tokens (class names, node and relationship ids)
// to registry entries and graph objects. Misses become 404 AppErrors that
// echo the requested token.
type Resources struct {
	scope    *transaction.Boundary
	registry *classes.Registry
}

func NewResources(scope *transaction.Boundary, registry *classes.Registry) *Resources {
	return &Resources{scope: scope, registry: registry}
}

func (r *Resources) Scope() *transaction.Boundary { return r.scope }

func (r *Resources) Registry() *classes.Registry { return r.registry }

// Class resolves a class token.
func (r *Resources) Class(token string) (*classes.ClassMetadata, error) {
	class, err := r.registry.Resolve(token)
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Can't find class '%s'", token)).WithCause(err)
	}
	return class, nil
}

// Node loads a node by its raw id. A malformed id is reported like a missing node.
func (r *Resources) Node(ctx context.Context, rawID string) (*ogm.Entity, error) {
	id, err := valueobjects.ParseNodeID(rawID)
	if err != nil {
		return nil, NodeNotFound(rawID)
	}
	entity, err := ogm.Load(ctx, r.scope, r.registry, id)
	if errors.Is(err, ogm.ErrNodeNotFound) {
		return nil, NodeNotFound(rawID)
	}
	return entity, err
}

// Relationship loads a relationship by its raw id.
func (r *Resources) Relationship(ctx context.Context, rawID string) (entities.Relationship, error) {
	id, err := valueobjects.ParseRelationshipID(rawID)
	if err != nil {
		return entities.Relationship{}, RelationshipNotFound(rawID)
	}
	rel, err := ogm.LoadRelationship(ctx, r.scope, id)
	if errors.Is(err, ogm.ErrRelationshipNotFound) {
		return entities.Relationship{}, RelationshipNotFound(rawID)
	}
	return rel, err
}

func NodeNotFound(rawID string) *apperrors.AppError {
	return apperrors.NewNotFoundError(fmt.Sprintf("Can't find node with id %s", rawID))
}

func RelationshipNotFound(rawID string) *apperrors.AppError {
	return apperrors.NewNotFoundError(fmt.Sprintf("Can't find relationship with id %s", rawID))
}
