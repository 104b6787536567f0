package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"neorest/application/commands"
	"neorest/application/services"
	"neorest/domain/core/valueobjects"
	apperrors "neorest/pkg/errors"
)

// SetPropertyHandler handles single property writes
type SetPropertyHandler struct {
	resources *services.Resources
}

func NewSetPropertyHandler(resources *services.Resources) *SetPropertyHandler {
	return &SetPropertyHandler{resources: resources}
}

// Handle sets body[property] on the node. A body that does not carry a
// usable value under that key is a conflict naming the raw body.
func (h *SetPropertyHandler) Handle(ctx context.Context, cmd commands.SetPropertyCommand) (valueobjects.Value, error) {
	entity, err := h.resources.Node(ctx, cmd.NodeID)
	if err != nil {
		return valueobjects.Value{}, err
	}

	value, ok := propertyFromBody(cmd.Body, cmd.Property)
	if !ok {
		return valueobjects.Value{}, apperrors.NewConflictError(
			fmt.Sprintf("Can't set property %s with JSON data '%s'", cmd.Property, cmd.Body),
		)
	}
	if err := entity.Set(ctx, cmd.Property, value); err != nil {
		return valueobjects.Value{}, apperrors.NewConflictError(
			fmt.Sprintf("Can't set property %s with JSON data '%s'", cmd.Property, cmd.Body),
		).WithCause(err)
	}
	return value, nil
}

func propertyFromBody(body []byte, name string) (valueobjects.Value, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data map[string]interface{}
	if err := dec.Decode(&data); err != nil {
		return valueobjects.Value{}, false
	}
	raw, ok := data[name]
	if !ok || raw == nil {
		return valueobjects.Value{}, false
	}
	v, err := valueobjects.FromAny(raw)
	if err != nil {
		return valueobjects.Value{}, false
	}
	return v, true
}
