package handlers

import (
	"neorest/application/queries"
	"neorest/application/queries/bus"
)

// Register binds every query handler to the bus
func Register(b *bus.QueryBus, nodes *NodeQueryHandlers, graph *GraphQueryHandlers) error {
	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandler
	}{
		{queries.ListNodesQuery{}, bus.Typed(nodes.List)},
		{queries.GetNodeQuery{}, bus.Typed(nodes.Get)},
		{queries.GetPropertyQuery{}, bus.Typed(nodes.GetProperty)},
		{queries.TraverseQuery{}, bus.Typed(nodes.Traverse)},
		{queries.GetRelationshipQuery{}, bus.Typed(graph.Relationship)},
		{queries.GetStatusQuery{}, bus.Typed(graph.Status)},
	}
	for _, r := range registrations {
		if err := b.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}
