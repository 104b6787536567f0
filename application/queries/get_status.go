package queries

import "neorest/domain/core/entities"

// GetStatusQuery reports the registered classes and the reference node
type GetStatusQuery struct{}

// Validate validates the GetStatusQuery
func (q GetStatusQuery) Validate() error { return nil }

// GetStatusResult lists class names in sorted order
type GetStatusResult struct {
	Classes []string
	RefNode entities.Node
}
