package handlers

import (
	"context"
	"fmt"

	"neorest/application/commands"
	"neorest/application/services"
	"neorest/domain/core/classes"
	"neorest/domain/core/entities"
	"neorest/domain/core/validators"
	apperrors "neorest/pkg/errors"

	"go.uber.org/zap"
)

// LinkNodesHandler creates relationships between nodes referenced by URI
type LinkNodesHandler struct {
	resources *services.Resources
	logger    *zap.Logger
}

func NewLinkNodesHandler(resources *services.Resources, logger *zap.Logger) *LinkNodesHandler {
	return &LinkNodesHandler{resources: resources, logger: logger}
}

// Handle checks, in order, that the URI is well formed, that its node exists
// and that the node's class matches the URI before creating the relationship.
// Each check fails with a 400 and nothing is written.
func (h *LinkNodesHandler) Handle(ctx context.Context, cmd commands.LinkNodesCommand) (entities.Relationship, error) {
	source, err := h.resources.Node(ctx, cmd.NodeID)
	if err != nil {
		return entities.Relationship{}, err
	}

	ref, err := validators.ParseNodeURI(cmd.URI)
	if err != nil {
		return entities.Relationship{}, apperrors.NewBadRequestError(fmt.Sprintf("Bad node uri '%s'", cmd.URI))
	}

	other, err := h.resources.Node(ctx, ref.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return entities.Relationship{}, apperrors.NewBadRequestError(fmt.Sprintf("Unknown other node with id '%s'", ref.ID))
		}
		return entities.Relationship{}, err
	}

	if classes.Normalize(ref.Class) != other.ClassName() {
		return entities.Relationship{}, apperrors.NewBadRequestError(
			fmt.Sprintf("Wrong type id '%s' expected '%s' got '%s'", ref.ID, ref.Class, other.ClassName()),
		)
	}

	rel, err := source.Outgoing(cmd.RelType).Append(ctx, other)
	if err != nil {
		return entities.Relationship{}, apperrors.NewBadRequestError(
			fmt.Sprintf("Can't create relationship to %s", ref.Class),
		).WithCause(err)
	}

	h.logger.Debug("Relationship created",
		zap.String("type", rel.Type),
		zap.String("start", rel.Start.String()),
		zap.String("end", rel.End.String()),
	)
	return rel, nil
}
