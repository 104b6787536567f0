package handlers

import (
	"context"

	"neorest/application/ogm"
	"neorest/application/queries"
	"neorest/application/services"
	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
)

// GraphQueryHandlers answers relationship and status queries
type GraphQueryHandlers struct {
	resources *services.Resources
}

func NewGraphQueryHandlers(resources *services.Resources) *GraphQueryHandlers {
	return &GraphQueryHandlers{resources: resources}
}

// Relationship loads a relationship and snapshots both endpoints
func (h *GraphQueryHandlers) Relationship(ctx context.Context, q queries.GetRelationshipQuery) (queries.GetRelationshipResult, error) {
	rel, err := h.resources.Relationship(ctx, q.RelationshipID)
	if err != nil {
		return queries.GetRelationshipResult{}, err
	}
	start, err := h.snapshot(ctx, rel.Start)
	if err != nil {
		return queries.GetRelationshipResult{}, err
	}
	end, err := h.snapshot(ctx, rel.End)
	if err != nil {
		return queries.GetRelationshipResult{}, err
	}
	return queries.GetRelationshipResult{Relationship: rel, Start: start, End: end}, nil
}

// Status lists the registered classes and the reference node
func (h *GraphQueryHandlers) Status(ctx context.Context, _ queries.GetStatusQuery) (queries.GetStatusResult, error) {
	ref, err := ogm.RefNode(ctx, h.resources.Scope())
	if err != nil {
		return queries.GetStatusResult{}, err
	}
	return queries.GetStatusResult{
		Classes: h.resources.Registry().Names(),
		RefNode: ref,
	}, nil
}

func (h *GraphQueryHandlers) snapshot(ctx context.Context, id valueobjects.NodeID) (entities.Node, error) {
	entity, err := h.resources.Node(ctx, id.String())
	if err != nil {
		return entities.Node{}, err
	}
	props, err := entity.Props(ctx)
	if err != nil {
		return entities.Node{}, err
	}
	return entities.Node{ID: id, Properties: props}, nil
}
