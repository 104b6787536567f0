package queries

import (
	"net/url"

	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
	"neorest/pkg/utils"

	apperrors "neorest/pkg/errors"
)

// GetNodeQuery loads a node with its outgoing relationships
type GetNodeQuery struct {
	NodeID string `json:"id" validate:"required"`
}

// Validate validates the GetNodeQuery
func (q GetNodeQuery) Validate() error {
	return validate(q)
}

// GetNodeResult is a node snapshot plus its outgoing relationships grouped by type
type GetNodeResult struct {
	Node          entities.Node
	Relationships map[string][]entities.Relationship
	// Types lists the keys of Relationships in sorted order.
	Types []string
}

// ListNodesQuery searches the nodes of one class
type ListNodesQuery struct {
	ClassName string     `json:"class" validate:"required"`
	Params    url.Values `json:"-"`
}

func (q ListNodesQuery) Validate() error {
	return validate(q)
}

// GetPropertyQuery reads one property, or the targets of a declared relationship type of the same name
type GetPropertyQuery struct {
	NodeID   string `json:"id" validate:"required"`
	Property string `json:"property" validate:"required"`
}

func (q GetPropertyQuery) Validate() error {
	return validate(q)
}

// GetPropertyResult holds either the property value or the related nodes
type GetPropertyResult struct {
	Property       string
	Value          valueobjects.Value
	IsRelationship bool
	Related        []entities.Node
}

// TraverseQuery walks outgoing relationships of one type
type TraverseQuery struct {
	NodeID       string `json:"id" validate:"required"`
	Relationship string `json:"relationship" validate:"required"`
	Depth        int    `json:"depth" validate:"min=1"`
}

func (q TraverseQuery) Validate() error {
	return validate(q)
}

func validate(q interface{}) error {
	if err := utils.ValidateStruct(q); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}
