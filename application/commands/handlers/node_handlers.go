package handlers

import (
	"context"
	"errors"
	"fmt"

	"neorest/application/commands"
	"neorest/application/ogm"
	"neorest/application/ports"
	"neorest/application/services"
	"neorest/domain/core/classes"
	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
	apperrors "neorest/pkg/errors"

	"go.uber.org/zap"
)

// NodeHandlers handles node creation, update and deletion
type NodeHandlers struct {
	resources *services.Resources
	logger    *zap.Logger
}

// NewNodeHandlers creates the node command handlers
func NewNodeHandlers(resources *services.Resources, logger *zap.Logger) *NodeHandlers {
	return &NodeHandlers{
		resources: resources,
		logger:    logger,
	}
}

// Create resolves the class, creates the node and applies all properties in one transaction
func (h *NodeHandlers) Create(ctx context.Context, cmd commands.CreateNodeCommand) (entities.Node, error) {
	class, err := h.resources.Class(cmd.ClassName)
	if err != nil {
		return entities.Node{}, err
	}
	props, err := toProperties(cmd.Properties)
	if err != nil {
		return entities.Node{}, err
	}

	entity, err := ogm.New(ctx, h.resources.Scope(), class, func(ctx context.Context, e *ogm.Entity) error {
		return e.Update(ctx, props)
	})
	if err != nil {
		return entities.Node{}, err
	}
	stored, err := entity.Props(ctx)
	if err != nil {
		return entities.Node{}, err
	}

	h.logger.Debug("Node created",
		zap.String("class", class.Name()),
		zap.String("nodeID", entity.ID().String()),
	)
	return entities.Node{ID: entity.ID(), Properties: stored}, nil
}

// Update applies the properties and returns the refreshed bag
func (h *NodeHandlers) Update(ctx context.Context, cmd commands.UpdateNodeCommand) (valueobjects.Properties, error) {
	entity, err := h.resources.Node(ctx, cmd.NodeID)
	if err != nil {
		return nil, err
	}
	props, err := toProperties(cmd.Properties)
	if err != nil {
		return nil, err
	}
	if err := entity.Update(ctx, props); err != nil {
		return nil, err
	}
	return entity.Props(ctx)
}

// Delete removes the node and its relationships. The reference node and the
// meta graph mirroring the registry are structural and answer 409.
func (h *NodeHandlers) Delete(ctx context.Context, cmd commands.DeleteNodeCommand) (struct{}, error) {
	entity, err := h.resources.Node(ctx, cmd.NodeID)
	if err != nil {
		return struct{}{}, err
	}
	if classes.IsBootstrap(entity.ClassName()) {
		return struct{}{}, undeletable(cmd.NodeID, nil)
	}
	if err := entity.Delete(ctx); err != nil {
		if errors.Is(err, ports.ErrProtectedNode) {
			return struct{}{}, undeletable(cmd.NodeID, err)
		}
		return struct{}{}, err
	}

	h.logger.Debug("Node deleted",
		zap.String("class", entity.ClassName()),
		zap.String("nodeID", cmd.NodeID),
	)
	return struct{}{}, nil
}

func undeletable(rawID string, cause error) error {
	appErr := apperrors.NewConflictError(fmt.Sprintf("Can't delete node with id %s", rawID))
	if cause != nil {
		appErr.WithCause(cause)
	}
	return appErr
}

func toProperties(raw map[string]interface{}) (valueobjects.Properties, error) {
	props, err := valueobjects.PropertiesFromMap(raw)
	if err != nil {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("Invalid properties: %v", err))
	}
	return props, nil
}
