package ports

import "neorest/domain/core/classes"

// SchemaParser turns a class declaration source into definitions.
// filename is used for diagnostics only.
type SchemaParser interface {
	Parse(src []byte, filename string) ([]classes.ClassDefinition, error)
}
