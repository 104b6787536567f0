package entities

import (
	"neorest/domain/core/valueobjects"
)

// Node is a snapshot of an engine node: its id and property bag at load time.
// Snapshots are values; two snapshots of the same node never share state.
type Node struct {
	ID         valueobjects.NodeID
	Properties valueobjects.Properties
}

// ClassName returns the logical class recorded on the node, or "" when unstamped.
func (n Node) ClassName() string {
	return n.Properties.ClassName()
}

// Relationship is a snapshot of a directed, typed edge.
type Relationship struct {
	ID         valueobjects.RelationshipID
	Type       string
	Start      valueobjects.NodeID
	End        valueobjects.NodeID
	Properties valueobjects.Properties
}

// RelationshipTypes groups relationships by type preserving their order.
func RelationshipTypes(rels []Relationship) map[string][]Relationship {
	out := make(map[string][]Relationship)
	for _, r := range rels {
		out[r.Type] = append(out[r.Type], r)
	}
	return out
}
