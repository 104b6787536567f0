package commands

import (
	"neorest/pkg/utils"

	apperrors "neorest/pkg/errors"
)

// CreateNodeCommand creates a node of a registered class and applies the given properties
type CreateNodeCommand struct {
	ClassName  string                 `json:"class" validate:"required"`
	Properties map[string]interface{} `json:"properties"`
}

// Validate validates the command
func (c CreateNodeCommand) Validate() error {
	return validate(c)
}

// UpdateNodeCommand applies a permissive bulk update; new and undeclared properties are accepted
type UpdateNodeCommand struct {
	NodeID     string                 `json:"id" validate:"required"`
	Properties map[string]interface{} `json:"properties"`
}

func (c UpdateNodeCommand) Validate() error {
	return validate(c)
}

// DeleteNodeCommand removes a node together with its relationships
type DeleteNodeCommand struct {
	NodeID string `json:"id" validate:"required"`
}

func (c DeleteNodeCommand) Validate() error {
	return validate(c)
}

// SetPropertyCommand sets one property from a raw JSON body keyed by the property name
type SetPropertyCommand struct {
	NodeID   string `json:"id" validate:"required"`
	Property string `json:"property" validate:"required"`
	Body     []byte `json:"-"`
}

func (c SetPropertyCommand) Validate() error {
	return validate(c)
}

// LinkNodesCommand creates an outgoing relationship to the node named by URI.
// URI is checked by the handler so a malformed value gets its own message.
type LinkNodesCommand struct {
	NodeID  string `json:"id" validate:"required"`
	RelType string `json:"relationship" validate:"required"`
	URI     string `json:"uri"`
}

func (c LinkNodesCommand) Validate() error {
	return validate(c)
}

func validate(cmd interface{}) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}
