package queries

import "neorest/domain/core/entities"

// GetRelationshipQuery loads a relationship and both of its endpoints
type GetRelationshipQuery struct {
	RelationshipID string `json:"id" validate:"required"`
}

// Validate validates the GetRelationshipQuery
func (q GetRelationshipQuery) Validate() error {
	return validate(q)
}

// GetRelationshipResult carries the endpoint snapshots so their classes are known
type GetRelationshipResult struct {
	Relationship entities.Relationship
	Start        entities.Node
	End          entities.Node
}
