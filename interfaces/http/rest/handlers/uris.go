package handlers

import (
	"fmt"

	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
)

// fallbackClass names nodes that were never stamped with a class
const fallbackClass = "Node"

// URIs builds resource URIs. An empty base yields host-relative paths.
type URIs struct {
	base string
}

func NewURIs(base string) URIs {
	return URIs{base: base}
}

// Node returns {base}/nodes/{class}/{id}
func (u URIs) Node(n entities.Node) string {
	class := n.ClassName()
	if class == "" {
		class = fallbackClass
	}
	return fmt.Sprintf("%s/nodes/%s/%s", u.base, class, n.ID)
}

// Relationship returns {base}/relationships/{id}
func (u URIs) Relationship(id valueobjects.RelationshipID) string {
	return fmt.Sprintf("%s/relationships/%s", u.base, id)
}
