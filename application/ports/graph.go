package ports

import (
	"context"
	"errors"

	"neorest/domain/core/classes"
	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
	"neorest/domain/search"
)

// ErrNotFound is returned by engines when a node or relationship id does not resolve.
var ErrNotFound = errors.New("not found")

// ErrProtectedNode is returned by DeleteNode for the reference node.
var ErrProtectedNode = errors.New("reference node cannot be deleted")

// GraphEngine defines the capability interface over the underlying graph store.
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type GraphEngine interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (GraphTx, error)

	// Close releases engine resources
	Close(ctx context.Context) error
}

// GraphTx is one open engine transaction. All reads and writes go through it.
type GraphTx interface {
	// CreateNode creates an empty node and returns its id
	CreateNode(ctx context.Context) (valueobjects.NodeID, error)

	// LoadNode returns a snapshot of the node or ErrNotFound
	LoadNode(ctx context.Context, id valueobjects.NodeID) (entities.Node, error)

	// DeleteNode removes the node and every relationship touching it.
	// The reference node yields ErrProtectedNode.
	DeleteNode(ctx context.Context, id valueobjects.NodeID) error

	// GetProperty reads one property; the bool reports presence
	GetProperty(ctx context.Context, id valueobjects.NodeID, name string) (valueobjects.Value, bool, error)

	// SetProperty stores one property
	SetProperty(ctx context.Context, id valueobjects.NodeID, name string, value valueobjects.Value) error

	// CreateRelationship links two existing nodes
	CreateRelationship(ctx context.Context, from, to valueobjects.NodeID, relType string) (entities.Relationship, error)

	// LoadRelationship returns a snapshot of the relationship or ErrNotFound
	LoadRelationship(ctx context.Context, id valueobjects.RelationshipID) (entities.Relationship, error)

	// OutgoingRelationships lists relationships starting at the node; an empty type means all types
	OutgoingRelationships(ctx context.Context, id valueobjects.NodeID, relType string) ([]entities.Relationship, error)

	// TraverseOutgoing walks outgoing relationships of one type breadth first up to depth hops.
	// The start node is not part of the result.
	TraverseOutgoing(ctx context.Context, id valueobjects.NodeID, relType string, depth int) ([]entities.Node, error)

	// Search returns nodes of the class that satisfy the criteria
	Search(ctx context.Context, class *classes.ClassMetadata, criteria search.Criteria) ([]entities.Node, error)

	// RefNode returns the well-known root node
	RefNode(ctx context.Context) (entities.Node, error)

	// Commit commits the transaction
	Commit(ctx context.Context) error

	// Rollback rolls back the transaction
	Rollback(ctx context.Context) error
}
