package handlers

import (
	"context"
	"fmt"

	"neorest/application/ogm"
	"neorest/application/queries"
	"neorest/application/services"
	"neorest/domain/core/classes"
	"neorest/domain/core/entities"
	"neorest/domain/search"
	apperrors "neorest/pkg/errors"
)

// NodeQueryHandlers answers read-only node queries
type NodeQueryHandlers struct {
	resources *services.Resources
}

// NewNodeQueryHandlers creates the node query handlers
func NewNodeQueryHandlers(resources *services.Resources) *NodeQueryHandlers {
	return &NodeQueryHandlers{resources: resources}
}

// List searches the class with criteria built from the whole query string
func (h *NodeQueryHandlers) List(ctx context.Context, q queries.ListNodesQuery) ([]entities.Node, error) {
	class, err := h.resources.Class(q.ClassName)
	if err != nil {
		return nil, err
	}
	criteria, err := search.FromQuery(q.Params)
	if err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}
	nodes, err := ogm.Search(ctx, h.resources.Scope(), class, criteria)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []entities.Node{}
	}
	return nodes, nil
}

// Get loads the node with its relationships grouped by type
func (h *NodeQueryHandlers) Get(ctx context.Context, q queries.GetNodeQuery) (queries.GetNodeResult, error) {
	entity, err := h.resources.Node(ctx, q.NodeID)
	if err != nil {
		return queries.GetNodeResult{}, err
	}
	props, err := entity.Props(ctx)
	if err != nil {
		return queries.GetNodeResult{}, err
	}
	grouped, types, err := entity.RelationshipsByType(ctx)
	if err != nil {
		return queries.GetNodeResult{}, err
	}
	return queries.GetNodeResult{
		Node:          entities.Node{ID: entity.ID(), Properties: props},
		Relationships: grouped,
		Types:         types,
	}, nil
}

// GetProperty returns the related nodes when the name is a relationship type
// declared by the node's class, and the raw property value otherwise.
func (h *NodeQueryHandlers) GetProperty(ctx context.Context, q queries.GetPropertyQuery) (queries.GetPropertyResult, error) {
	entity, err := h.resources.Node(ctx, q.NodeID)
	if err != nil {
		return queries.GetPropertyResult{}, err
	}

	if class := entity.Class(); class != nil && class.HasRelationship(q.Property) {
		related, err := entity.Outgoing(q.Property).Targets(ctx)
		if err != nil {
			return queries.GetPropertyResult{}, err
		}
		return queries.GetPropertyResult{Property: q.Property, IsRelationship: true, Related: related}, nil
	}

	value, _, err := entity.Get(ctx, q.Property)
	if err != nil {
		return queries.GetPropertyResult{}, err
	}
	return queries.GetPropertyResult{Property: q.Property, Value: value}, nil
}

// Traverse returns the nodes reached within depth hops, nearest first
func (h *NodeQueryHandlers) Traverse(ctx context.Context, q queries.TraverseQuery) ([]entities.Node, error) {
	entity, err := h.resources.Node(ctx, q.NodeID)
	if err != nil {
		return nil, err
	}
	if !classes.ValidateIdentifier(q.Relationship) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("relationship '%s' is not a valid relationship type", q.Relationship))
	}
	nodes, err := entity.Traverse(ctx, q.Relationship, q.Depth)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []entities.Node{}
	}
	return nodes, nil
}
